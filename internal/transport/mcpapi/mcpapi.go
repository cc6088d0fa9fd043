// Package mcpapi is the MCP tool adapter (C8): one mcp.NewTool per
// rpcapi operation, so an IDE or AI assistant can manage forwards without
// going through the gRPC wire protocol. Grounded in the teacher's
// internal/api/tools and internal/aggregator packages, which register
// mcp-go tools the same way and serve them over an SSE-based HTTP
// transport (no streamable-HTTP helper appears anywhere in the retrieval
// pack, so this adopts the SSE transport the teacher actually wires up).
package mcpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kubeportal/kubeportal/internal/rpcapi"
)

// Server wraps an mcp-go MCPServer/SSEServer pair bound to one address.
type Server struct {
	mcpServer  *server.MCPServer
	sseServer  *server.SSEServer
	httpServer *http.Server
}

// New builds the MCP transport over adapter and registers every tool.
func New(addr string, adapter *rpcapi.Adapter) *Server {
	mcpServer := server.NewMCPServer(
		"kubeportald",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	tools := newToolSet(adapter)
	mcpServer.AddTools(tools...)

	baseURL := "http://" + addr
	sseServer := server.NewSSEServer(
		mcpServer,
		server.WithBaseURL(baseURL),
		server.WithSSEEndpoint("/sse"),
		server.WithMessageEndpoint("/message"),
		server.WithKeepAlive(true),
		server.WithKeepAliveInterval(30*time.Second),
	)

	return &Server{
		mcpServer:  mcpServer,
		sseServer:  sseServer,
		httpServer: &http.Server{Addr: addr, Handler: sseServer},
	}
}

// Start begins serving in the background.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.sseServer.Start(s.httpServer.Addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()
	return errCh
}

// Shutdown gracefully stops the SSE server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.sseServer.Shutdown(ctx)
}

func argString(req mcp.CallToolRequest, key, fallback string) string {
	args, ok := req.Params.Arguments.(map[string]interface{})
	if !ok {
		return fallback
	}
	v, ok := args[key].(string)
	if !ok {
		return fallback
	}
	return v
}

func argBool(req mcp.CallToolRequest, key string, fallback bool) bool {
	args, ok := req.Params.Arguments.(map[string]interface{})
	if !ok {
		return fallback
	}
	v, ok := args[key].(bool)
	if !ok {
		return fallback
	}
	return v
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err)), nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(data))},
	}, nil
}
