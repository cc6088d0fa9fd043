package grpcapi

import (
	"net"

	"google.golang.org/grpc"

	"github.com/kubeportal/kubeportal/internal/rpcapi"
)

// Server wraps the grpc.Server bound to one listener address.
type Server struct {
	grpcServer *grpc.Server
	addr       string
}

// New builds the gRPC transport over adapter and registers the daemon
// service.
func New(addr string, adapter *rpcapi.Adapter) *Server {
	grpcServer := grpc.NewServer()
	grpcServer.RegisterService(&serviceDesc, &service{adapter: adapter})
	return &Server{grpcServer: grpcServer, addr: addr}
}

// Start binds addr and begins serving in the background.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		errCh <- err
		return errCh
	}
	go func() {
		errCh <- s.grpcServer.Serve(lis)
	}()
	return errCh
}

// Shutdown stops accepting new RPCs and waits for in-flight ones to finish.
func (s *Server) Shutdown() {
	s.grpcServer.GracefulStop()
}
