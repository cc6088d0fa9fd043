package forwarder

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"

	"k8s.io/client-go/tools/portforward"
	"k8s.io/client-go/transport/spdy"

	"github.com/kubeportal/kubeportal/internal/kube"
)

// kubeDialer implements the kubernetes variant (§4.2.b). Each dial opens a
// dedicated port-forward SPDY session to the first running pod backing the
// service, bound to an ephemeral local port, then connects to that port.
// This reuses client-go's own stream-negotiation code rather than
// reimplementing the SPDY port-forward wire protocol by hand, at the cost
// of one extra local hop per connection.
type kubeDialer struct {
	cache       *kube.AccessCache
	context     string
	namespace   string
	service     string
	servicePort int
}

func (d *kubeDialer) dial(ctx context.Context) (closer, error) {
	clientset, restConfig, err := d.cache.GetClientAndConfig(d.context)
	if err != nil {
		return nil, fmt.Errorf("resolving client for context %q: %w", d.context, err)
	}

	pods, err := d.cache.GetPodsForService(ctx, d.context, d.namespace, d.service)
	if err != nil {
		return nil, err
	}
	if len(pods) == 0 {
		return nil, fmt.Errorf("no running pods backing service %s/%s", d.namespace, d.service)
	}
	// First pod in the returned order, deliberately not random: stable
	// within a cache-TTL window, which favours long-lived protocols.
	pod := pods[0]

	transport, upgrader, err := spdy.RoundTripperFor(restConfig)
	if err != nil {
		return nil, fmt.Errorf("building SPDY transport: %w", err)
	}

	req := clientset.CoreV1().RESTClient().Post().
		Resource("pods").
		Namespace(d.namespace).
		Name(pod.Name).
		SubResource("portforward")

	dialer := spdy.NewDialer(upgrader, &http.Client{Transport: transport}, "POST", req.URL())

	stopCh := make(chan struct{})
	readyCh := make(chan struct{})
	ports := []string{fmt.Sprintf("0:%d", d.servicePort)}

	fw, err := portforward.New(dialer, ports, stopCh, readyCh, io.Discard, io.Discard)
	if err != nil {
		return nil, fmt.Errorf("setting up port-forward to pod %s: %w", pod.Name, err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- fw.ForwardPorts() }()

	select {
	case <-readyCh:
	case err := <-errCh:
		return nil, fmt.Errorf("port-forward to pod %s failed: %w", pod.Name, err)
	case <-ctx.Done():
		close(stopCh)
		return nil, ctx.Err()
	}

	forwarded, err := fw.GetPorts()
	if err != nil || len(forwarded) == 0 {
		close(stopCh)
		return nil, fmt.Errorf("port-forward to pod %s has no bound local port: %w", pod.Name, err)
	}

	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", forwarded[0].Local))
	if err != nil {
		close(stopCh)
		return nil, fmt.Errorf("dialing local port-forward endpoint: %w", err)
	}

	return &kubeStreamConn{Conn: conn, stopCh: stopCh}, nil
}

// kubeStreamConn wraps the local dialed connection so that closing it also
// tears down the underlying port-forward session exactly once.
type kubeStreamConn struct {
	net.Conn
	once   sync.Once
	stopCh chan struct{}
}

func (c *kubeStreamConn) Close() error {
	c.once.Do(func() { close(c.stopCh) })
	return c.Conn.Close()
}
