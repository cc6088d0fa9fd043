// Package forwarder implements the forwarder runtime (C3): one instance
// per enabled ForwardDefinition, binding a local TCP listener and bridging
// accepted connections to either a raw socket or a Kubernetes pod.
package forwarder

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/kubeportal/kubeportal/internal/forward"
	"github.com/kubeportal/kubeportal/internal/kube"
	"github.com/kubeportal/kubeportal/pkg/logging"
)

const subsystem = "forwarder"

// DefaultGraceTimeout is the bound Stop waits for in-flight connections to
// drain before abandoning them, per §4.2.
const DefaultGraceTimeout = 5 * time.Second

// remoteDialer opens the remote side of one connection. socket.go and
// kubernetes.go each provide a variant.
type remoteDialer interface {
	dial(ctx context.Context) (closer, error)
}

// BindError reports a listener bind failure, distinguishing "address
// already in use" (a definition-level failure per §4.2 Startup failure
// policy) from other causes such as a permission error.
type BindError struct {
	AddressInUse bool
	err          error
}

func (e *BindError) Error() string { return fmt.Sprintf("bind failed: %v", e.err) }
func (e *BindError) Unwrap() error { return e.err }

func classifyBindError(err error) *BindError {
	return &BindError{AddressInUse: errors.Is(err, syscall.EADDRINUSE), err: err}
}

// Forwarder is one running (or stopped) instance of a forward definition.
// Its exported state accessors are safe for concurrent use with Start/Stop.
type Forwarder struct {
	def          *forward.Definition
	dialer       remoteDialer
	graceTimeout time.Duration

	mu       sync.Mutex
	listener net.Listener
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	active            atomic.Bool
	connectionCount   atomic.Int64
	bytesTransferred  atomic.Uint64
	startTimeUnixNano atomic.Int64
}

// New builds a Forwarder for def. cache is required for the kubernetes
// variant and ignored for the socket variant. graceTimeout <= 0 falls back
// to DefaultGraceTimeout.
func New(def *forward.Definition, cache *kube.AccessCache, graceTimeout time.Duration) (*Forwarder, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	var dialer remoteDialer
	switch def.Type {
	case forward.TypeSocket:
		dialer = &socketDialer{host: def.RemoteHost, port: def.RemotePort}
	case forward.TypeKubernetes:
		if cache == nil {
			return nil, fmt.Errorf("forwarder: kubernetes variant %q requires an access cache", def.Name)
		}
		dialer = &kubeDialer{
			cache:       cache,
			context:     def.Context,
			namespace:   def.Namespace,
			service:     def.Service,
			servicePort: def.ServicePort,
		}
	default:
		return nil, fmt.Errorf("forwarder: unknown forward type %q", def.Type)
	}

	if graceTimeout <= 0 {
		graceTimeout = DefaultGraceTimeout
	}

	return &Forwarder{def: def.Clone(), dialer: dialer, graceTimeout: graceTimeout}, nil
}

// Name returns the forward's name, fixed at construction.
func (f *Forwarder) Name() string { return f.def.Name }

// Start binds the local listener and launches the accept loop. On bind
// failure it returns a *BindError without mutating any state; the caller
// (the manager) decides what AddressInUse means for the definition's
// enabled flag.
func (f *Forwarder) Start(ctx context.Context) error {
	addr := fmt.Sprintf("127.0.0.1:%d", f.def.LocalPort)
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return classifyBindError(err)
	}

	runCtx, cancel := context.WithCancel(ctx)

	f.mu.Lock()
	f.listener = listener
	f.cancel = cancel
	f.mu.Unlock()

	f.active.Store(true)
	f.startTimeUnixNano.Store(time.Now().UnixNano())

	f.wg.Add(1)
	go f.acceptLoop(runCtx)

	logging.Info(subsystem, "forward %q listening on %s", f.def.Name, addr)
	return nil
}

func (f *Forwarder) acceptLoop(ctx context.Context) {
	defer f.wg.Done()

	for {
		conn, err := f.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			logging.Error(subsystem, err, "forward %q: accept failed", f.def.Name)
			continue
		}

		id := uuid.NewString()
		f.connectionCount.Add(1)

		f.wg.Add(1)
		go func() {
			defer f.wg.Done()
			f.handleConnection(ctx, id, conn)
		}()
	}
}

// handleConnection never affects the accept loop or any other connection:
// every error is logged and swallowed here.
func (f *Forwarder) handleConnection(ctx context.Context, id string, client net.Conn) {
	defer client.Close()
	defer f.connectionCount.Add(-1)

	remote, err := f.dialer.dial(ctx)
	if err != nil {
		logging.Warn(subsystem, "forward %q: connection %s: dial failed: %v", f.def.Name, id, err)
		return
	}
	defer remote.Close()

	logging.Debug(subsystem, "forward %q: connection %s established", f.def.Name, id)
	bridge(ctx, client, remote, &f.bytesTransferred)
	logging.Debug(subsystem, "forward %q: connection %s closed", f.def.Name, id)
}

// Stop cancels the accept loop, closes the listener, and waits up to the
// grace period for the accept loop and connection handlers to return.
// Cancelling the run context makes each in-flight connection's pump
// force-close both of its streams, so open connections are torn down
// rather than left to drain; handlers still running when the grace period
// elapses are abandoned.
func (f *Forwarder) Stop() error {
	f.mu.Lock()
	cancel := f.cancel
	listener := f.listener
	f.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	if listener != nil {
		_ = listener.Close()
	}

	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(f.graceTimeout):
		logging.Warn(subsystem, "forward %q: grace period elapsed, abandoning in-flight connections", f.def.Name)
	}

	f.active.Store(false)
	return nil
}

// IsActive reports whether the forwarder is currently listening.
func (f *Forwarder) IsActive() bool { return f.active.Load() }

// ConnectionCount returns the number of connections currently in flight.
func (f *Forwarder) ConnectionCount() int64 { return f.connectionCount.Load() }

// BytesTransferred returns the running total of bytes moved in either
// direction across all connections since Start.
func (f *Forwarder) BytesTransferred() uint64 { return f.bytesTransferred.Load() }

// StartTime returns the time Start last succeeded, and whether it has ever
// been called.
func (f *Forwarder) StartTime() (time.Time, bool) {
	nanos := f.startTimeUnixNano.Load()
	if nanos == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, nanos), true
}
