// Package kube is the process-wide Kubernetes access cache (C2): pooled
// API clients keyed by context, and TTL-bounded pod lists keyed by
// (context, namespace, service), so that new connections on a kubernetes
// forward stay fast under bursty workloads.
package kube

import (
	"context"
	"fmt"
	"sync"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/client-go/kubernetes"
	_ "k8s.io/client-go/plugin/pkg/client/auth" // register cloud auth providers
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/kubeportal/kubeportal/pkg/logging"
)

const subsystem = "k8s-access-cache"

// DefaultClientTTL and DefaultPodListTTL match §4.3.
const (
	DefaultClientTTL  = 10 * time.Minute
	DefaultPodListTTL = 30 * time.Second
)

// ClientFactory creates a Kubernetes clientset and its REST config for a
// named context. It is a seam for tests to substitute a fake clientset
// instead of the default kubeconfig-resolution path. restConfig may be nil
// when the caller only needs the clientset (e.g. in tests); the
// kubernetes-variant forwarder requires a non-nil restConfig to open a
// port-forward SPDY session.
type ClientFactory func(kubeContext string) (clientset kubernetes.Interface, restConfig *rest.Config, err error)

type cachedClient struct {
	clientset  kubernetes.Interface
	restConfig *rest.Config
	expiresAt  time.Time
}

type podListKey struct {
	context   string
	namespace string
	service   string
}

type cachedPodList struct {
	pods      []corev1.Pod
	expiresAt time.Time
}

// AccessCache is the C2 singleton. It is safe for concurrent use.
type AccessCache struct {
	mu      sync.Mutex
	clients map[string]*cachedClient
	pods    map[podListKey]*cachedPodList

	clientTTL  time.Duration
	podListTTL time.Duration
	newClient  ClientFactory

	stopSweep chan struct{}
}

// New constructs an AccessCache with the given TTLs and client factory. A
// nil factory defaults to resolving the named context from the default
// kubeconfig loading rules.
func New(clientTTL, podListTTL time.Duration, factory ClientFactory) *AccessCache {
	if clientTTL <= 0 {
		clientTTL = DefaultClientTTL
	}
	if podListTTL <= 0 {
		podListTTL = DefaultPodListTTL
	}
	if factory == nil {
		factory = defaultClientFactory
	}
	c := &AccessCache{
		clients:    make(map[string]*cachedClient),
		pods:       make(map[podListKey]*cachedPodList),
		clientTTL:  clientTTL,
		podListTTL: podListTTL,
		newClient:  factory,
	}
	return c
}

func defaultClientFactory(kubeContext string) (kubernetes.Interface, *rest.Config, error) {
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	overrides := &clientcmd.ConfigOverrides{CurrentContext: kubeContext}
	kubeConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, overrides)

	restConfig, err := kubeConfig.ClientConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("resolving kubeconfig for context %q: %w", kubeContext, err)
	}
	restConfig.Timeout = 30 * time.Second

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("building clientset for context %q: %w", kubeContext, err)
	}
	return clientset, restConfig, nil
}

// GetClient returns the live cached client for context, creating one on
// miss or expiry. Replacing an expired entry disposes of the prior value
// only in the sense of dropping kubeportald's reference to it — client-go
// clientsets hold no resources that need an explicit close.
func (c *AccessCache) GetClient(kubeContext string) (kubernetes.Interface, error) {
	clientset, _, err := c.GetClientAndConfig(kubeContext)
	return clientset, err
}

// GetClientAndConfig returns both the cached clientset and its REST config,
// needed by the kubernetes-variant forwarder to open a port-forward SPDY
// session directly (not via the clientset interface).
func (c *AccessCache) GetClientAndConfig(kubeContext string) (kubernetes.Interface, *rest.Config, error) {
	now := time.Now()

	c.mu.Lock()
	if cached, ok := c.clients[kubeContext]; ok && now.Before(cached.expiresAt) {
		clientset, restConfig := cached.clientset, cached.restConfig
		c.mu.Unlock()
		return clientset, restConfig, nil
	}
	c.mu.Unlock()

	clientset, restConfig, err := c.newClient(kubeContext)
	if err != nil {
		return nil, nil, err
	}

	c.mu.Lock()
	c.clients[kubeContext] = &cachedClient{clientset: clientset, restConfig: restConfig, expiresAt: now.Add(c.clientTTL)}
	c.mu.Unlock()

	logging.Debug(subsystem, "created API client for context %q (expires %s)", kubeContext, c.clientTTL)
	return clientset, restConfig, nil
}

// GetPodsForService returns the Running pods currently backing a Service,
// using the cached snapshot when fresh. On miss it resolves the Service's
// label selector, lists matching pods, and filters to phase=Running.
// Concurrent misses for the same key may each fetch independently; this
// cache does not single-flight them.
func (c *AccessCache) GetPodsForService(ctx context.Context, kubeContext, namespace, service string) ([]corev1.Pod, error) {
	key := podListKey{context: kubeContext, namespace: namespace, service: service}
	now := time.Now()

	c.mu.Lock()
	if cached, ok := c.pods[key]; ok && now.Before(cached.expiresAt) {
		pods := cached.pods
		c.mu.Unlock()
		return pods, nil
	}
	c.mu.Unlock()

	clientset, err := c.GetClient(kubeContext)
	if err != nil {
		return nil, err
	}

	svc, err := clientset.CoreV1().Services(namespace).Get(ctx, service, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("fetching service %s/%s: %w", namespace, service, err)
	}
	if len(svc.Spec.Selector) == 0 {
		return nil, fmt.Errorf("service %s/%s has no selector, cannot find backing pods", namespace, service)
	}

	selector := labels.SelectorFromSet(svc.Spec.Selector).String()
	podList, err := clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return nil, fmt.Errorf("listing pods for service %s/%s: %w", namespace, service, err)
	}

	running := make([]corev1.Pod, 0, len(podList.Items))
	for _, pod := range podList.Items {
		if pod.Status.Phase == corev1.PodRunning {
			running = append(running, pod)
		}
	}

	c.mu.Lock()
	c.pods[key] = &cachedPodList{pods: running, expiresAt: now.Add(c.podListTTL)}
	c.mu.Unlock()

	return running, nil
}

// InvalidatePodCache drops every cached pod-list entry.
func (c *AccessCache) InvalidatePodCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pods = make(map[podListKey]*cachedPodList)
}

// InvalidatePodCacheFor drops the cached pod-list entry for one service.
func (c *AccessCache) InvalidatePodCacheFor(kubeContext, namespace, service string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pods, podListKey{context: kubeContext, namespace: namespace, service: service})
}

// StartSweeper runs a background goroutine that removes expired cache
// entries every 60 seconds until ctx is cancelled.
func (c *AccessCache) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.sweep()
			}
		}
	}()
}

func (c *AccessCache) sweep() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	for ctxKey, cached := range c.clients {
		if now.After(cached.expiresAt) {
			delete(c.clients, ctxKey)
		}
	}
	for key, cached := range c.pods {
		if now.After(cached.expiresAt) {
			delete(c.pods, key)
		}
	}
	logging.Debug(subsystem, "sweep complete: %d clients, %d pod-lists cached", len(c.clients), len(c.pods))
}
