package grpcapi

import "github.com/kubeportal/kubeportal/internal/rpcapi"

// Every request/response pair below is the JSON-over-gRPC wire shape for
// one Adapter operation. Field names match the Adapter's Go types so the
// codec's json tags round-trip without renaming.

type forwardNameRequest struct {
	Name string `json:"name"`
}

type groupNameRequest struct {
	Group string `json:"group"`
}

type mutationResponse struct {
	Success bool             `json:"success"`
	Error   string           `json:"error,omitempty"`
	Kind    rpcapi.ErrorKind `json:"kind,omitempty"`
}

func toMutationResponse(r rpcapi.MutationResult) *mutationResponse {
	return &mutationResponse{Success: r.Success, Error: r.Error, Kind: r.Kind}
}

type createForwardRequest struct {
	Name        string `json:"name"`
	Group       string `json:"group,omitempty"`
	Type        string `json:"type"`
	LocalPort   int    `json:"localPort"`
	Enabled     bool   `json:"enabled"`
	RemoteHost  string `json:"remoteHost,omitempty"`
	RemotePort  int    `json:"remotePort,omitempty"`
	Context     string `json:"context,omitempty"`
	Namespace   string `json:"namespace,omitempty"`
	Service     string `json:"service,omitempty"`
	ServicePort int    `json:"servicePort,omitempty"`
}

type listForwardsRequest struct {
	Group string `json:"group,omitempty"`
}

type listForwardsResponse struct {
	Forwards []*forwardWire `json:"forwards"`
}

type forwardWire struct {
	Name        string `json:"name"`
	Group       string `json:"group"`
	Type        string `json:"type"`
	LocalPort   int    `json:"localPort"`
	Enabled     bool   `json:"enabled"`
	RemoteHost  string `json:"remoteHost,omitempty"`
	RemotePort  int    `json:"remotePort,omitempty"`
	Context     string `json:"context,omitempty"`
	Namespace   string `json:"namespace,omitempty"`
	Service     string `json:"service,omitempty"`
	ServicePort int    `json:"servicePort,omitempty"`
}

type getForwardResponse struct {
	Forward *forwardWire      `json:"forward,omitempty"`
	Result  *mutationResponse `json:"result"`
}

type listGroupsResponse struct {
	Groups []rpcapi.GroupStatus `json:"groups"`
}

type groupOpResponse struct {
	AffectedCount int `json:"affectedCount"`
}

type applyConfigRequest struct {
	ConfigJSON    string `json:"configJson"`
	TargetGroup   string `json:"targetGroup,omitempty"`
	RemoveMissing bool   `json:"removeMissing"`
}

type exportConfigRequest struct {
	IncludeDisabled bool   `json:"includeDisabled"`
	Group           string `json:"group,omitempty"`
}

type exportConfigResponse struct {
	ConfigJSON string `json:"configJson"`
	Error      string `json:"error,omitempty"`
}

type listActiveResponse struct {
	Active []rpcapi.ForwardStatus `json:"active"`
}

type emptyRequest struct{}

type statusResponse struct {
	Running            bool    `json:"running"`
	Version            string  `json:"version"`
	ActiveForwardCount int     `json:"activeForwardCount"`
	TotalForwardCount  int     `json:"totalForwardCount"`
	UptimeSeconds      float64 `json:"uptimeSeconds"`
}
