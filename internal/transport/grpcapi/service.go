package grpcapi

import (
	"context"

	"google.golang.org/grpc"

	"github.com/kubeportal/kubeportal/internal/forward"
	"github.com/kubeportal/kubeportal/internal/rpcapi"
)

// service implements every §6 RPC method against one Adapter. It has no
// generated base type to embed because nothing in the retrieval pack ships
// a .pb.go pair this daemon's API could be grounded on; the handler
// methods below take the place of what a generated *_grpc.pb.go would
// dispatch to.
type service struct {
	adapter *rpcapi.Adapter
}

func (s *service) createForward(ctx context.Context, req *createForwardRequest) (*mutationResponse, error) {
	def := &forward.Definition{
		Name:        req.Name,
		Group:       req.Group,
		Type:        forward.Type(req.Type),
		LocalPort:   req.LocalPort,
		Enabled:     req.Enabled,
		RemoteHost:  req.RemoteHost,
		RemotePort:  req.RemotePort,
		Context:     req.Context,
		Namespace:   req.Namespace,
		Service:     req.Service,
		ServicePort: req.ServicePort,
	}
	resp := toMutationResponse(s.adapter.CreateForward(def))
	return resp, nil
}

func (s *service) deleteForward(ctx context.Context, req *forwardNameRequest) (*mutationResponse, error) {
	resp := toMutationResponse(s.adapter.DeleteForward(req.Name))
	return resp, nil
}

func toForwardWire(d *forward.Definition) *forwardWire {
	return &forwardWire{
		Name:        d.Name,
		Group:       d.Group,
		Type:        string(d.Type),
		LocalPort:   d.LocalPort,
		Enabled:     d.Enabled,
		RemoteHost:  d.RemoteHost,
		RemotePort:  d.RemotePort,
		Context:     d.Context,
		Namespace:   d.Namespace,
		Service:     d.Service,
		ServicePort: d.ServicePort,
	}
}

func (s *service) listForwards(ctx context.Context, req *listForwardsRequest) (*listForwardsResponse, error) {
	defs := s.adapter.ListForwards(req.Group)
	out := make([]*forwardWire, 0, len(defs))
	for _, d := range defs {
		out = append(out, toForwardWire(d))
	}
	return &listForwardsResponse{Forwards: out}, nil
}

func (s *service) getForward(ctx context.Context, req *forwardNameRequest) (*getForwardResponse, error) {
	def, result := s.adapter.GetForward(req.Name)
	resp := &getForwardResponse{Result: toMutationResponse(result)}
	if def != nil {
		resp.Forward = toForwardWire(def)
	}
	return resp, nil
}

func (s *service) startForward(ctx context.Context, req *forwardNameRequest) (*mutationResponse, error) {
	resp := toMutationResponse(s.adapter.StartForward(req.Name))
	return resp, nil
}

func (s *service) stopForward(ctx context.Context, req *forwardNameRequest) (*mutationResponse, error) {
	resp := toMutationResponse(s.adapter.StopForward(req.Name))
	return resp, nil
}

func (s *service) listGroups(ctx context.Context, req *emptyRequest) (*listGroupsResponse, error) {
	return &listGroupsResponse{Groups: s.adapter.ListGroups()}, nil
}

func (s *service) enableGroup(ctx context.Context, req *groupNameRequest) (*groupOpResponse, error) {
	return &groupOpResponse{AffectedCount: s.adapter.EnableGroup(req.Group)}, nil
}

func (s *service) disableGroup(ctx context.Context, req *groupNameRequest) (*groupOpResponse, error) {
	return &groupOpResponse{AffectedCount: s.adapter.DisableGroup(req.Group)}, nil
}

func (s *service) deleteGroup(ctx context.Context, req *groupNameRequest) (*groupOpResponse, error) {
	return &groupOpResponse{AffectedCount: s.adapter.DeleteGroup(req.Group)}, nil
}

func (s *service) applyConfig(ctx context.Context, req *applyConfigRequest) (*rpcapi.ApplyConfigResult, error) {
	result := s.adapter.ApplyConfig([]byte(req.ConfigJSON), req.TargetGroup, req.RemoveMissing)
	return &result, nil
}

func (s *service) exportConfig(ctx context.Context, req *exportConfigRequest) (*exportConfigResponse, error) {
	data, err := s.adapter.ExportConfig(req.IncludeDisabled, req.Group)
	if err != nil {
		return &exportConfigResponse{Error: err.Error()}, nil
	}
	return &exportConfigResponse{ConfigJSON: string(data)}, nil
}

func (s *service) reloadConfig(ctx context.Context, req *emptyRequest) (*mutationResponse, error) {
	resp := toMutationResponse(s.adapter.ReloadConfig())
	return resp, nil
}

func (s *service) listActive(ctx context.Context, req *emptyRequest) (*listActiveResponse, error) {
	return &listActiveResponse{Active: s.adapter.ListActive()}, nil
}

func (s *service) getStatus(ctx context.Context, req *emptyRequest) (*statusResponse, error) {
	st := s.adapter.GetStatus()
	return &statusResponse{
		Running:            st.Running,
		Version:            st.Version,
		ActiveForwardCount: st.ActiveForwardCount,
		TotalForwardCount:  st.TotalForwardCount,
		UptimeSeconds:      st.UptimeSeconds,
	}, nil
}

func (s *service) shutdown(ctx context.Context, req *emptyRequest) (*mutationResponse, error) {
	s.adapter.Shutdown()
	return &mutationResponse{Success: true}, nil
}

// unaryHandler wraps one service method into the grpc.methodHandler shape
// ServiceDesc expects, decoding the request with the codec the server is
// already bound to. Handler errors returned here are reserved for
// transport-level failures (decode errors); semantic failures travel back
// inside the response payload as {success: false, error: "..."} per §7.
func unaryHandler[Req, Resp any](fn func(*service, context.Context, *Req) (*Resp, error)) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		req := new(Req)
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return fn(srv.(*service), ctx, req)
		}
		info := &grpc.UnaryServerInfo{Server: srv}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return fn(srv.(*service), ctx, req.(*Req))
		}
		return interceptor(ctx, req, info, handler)
	}
}

// serviceDesc is the hand-written equivalent of a generated
// *_grpc.pb.go ServiceDesc: one MethodDesc per §6 RPC, each wired to its
// handler through unaryHandler.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: "kubeportal.DaemonService",
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateForward", Handler: unaryHandler((*service).createForward)},
		{MethodName: "DeleteForward", Handler: unaryHandler((*service).deleteForward)},
		{MethodName: "ListForwards", Handler: unaryHandler((*service).listForwards)},
		{MethodName: "GetForward", Handler: unaryHandler((*service).getForward)},
		{MethodName: "StartForward", Handler: unaryHandler((*service).startForward)},
		{MethodName: "StopForward", Handler: unaryHandler((*service).stopForward)},
		{MethodName: "ListGroups", Handler: unaryHandler((*service).listGroups)},
		{MethodName: "EnableGroup", Handler: unaryHandler((*service).enableGroup)},
		{MethodName: "DisableGroup", Handler: unaryHandler((*service).disableGroup)},
		{MethodName: "DeleteGroup", Handler: unaryHandler((*service).deleteGroup)},
		{MethodName: "ApplyConfig", Handler: unaryHandler((*service).applyConfig)},
		{MethodName: "ExportConfig", Handler: unaryHandler((*service).exportConfig)},
		{MethodName: "ReloadConfig", Handler: unaryHandler((*service).reloadConfig)},
		{MethodName: "ListActive", Handler: unaryHandler((*service).listActive)},
		{MethodName: "GetStatus", Handler: unaryHandler((*service).getStatus)},
		{MethodName: "Shutdown", Handler: unaryHandler((*service).shutdown)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "kubeportal.proto",
}
