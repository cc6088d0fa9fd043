// Package httpapi is the HTTP status transport (C10): a minimal
// gin-gonic/gin engine exposing liveness and status endpoints for shell
// scripts and simple probes that would be overkill to wire through a gRPC
// or MCP client. Grounded in waste3d-ghost-tunnel's
// internal/interfaces/http handler package.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kubeportal/kubeportal/internal/rpcapi"
)

// Server wraps the gin engine and its underlying http.Server so the
// bootstrap package can start and gracefully shut it down.
type Server struct {
	httpServer *http.Server
}

// New builds the HTTP status server bound to addr, backed by adapter.
func New(addr string, adapter *rpcapi.Adapter) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	engine.GET("/status", func(c *gin.Context) {
		status := adapter.GetStatus()
		c.JSON(http.StatusOK, gin.H{
			"running":            status.Running,
			"version":            status.Version,
			"activeForwardCount": status.ActiveForwardCount,
			"totalForwardCount":  status.TotalForwardCount,
			"uptimeSeconds":      status.UptimeSeconds,
			"active":             adapter.ListActive(),
			"forwards":           adapter.ListForwards(""),
		})
	})

	return &Server{httpServer: &http.Server{Addr: addr, Handler: engine}}
}

// Start begins serving in the background. The returned error channel
// receives ListenAndServe's terminal error, or nil on a clean Shutdown.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()
	return errCh
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
