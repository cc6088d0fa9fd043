// Package forward defines ForwardDefinition, the typed, validated,
// JSON-serializable description of one port forward. A definition is a
// discriminated union of two variants — socket and kubernetes — tagged by
// Type in both the in-memory struct and its JSON encoding.
package forward

import (
	"encoding/json"
	"fmt"
)

// Type discriminates the two ForwardDefinition variants.
type Type string

const (
	// TypeSocket forwards to a raw remote TCP endpoint.
	TypeSocket Type = "socket"
	// TypeKubernetes forwards to a pod selected from a Kubernetes Service.
	TypeKubernetes Type = "kubernetes"
)

// DefaultGroup is the group assigned to a definition that doesn't name one.
const DefaultGroup = "default"

// Definition is the common-plus-variant-specific shape of a forward. Only
// the fields relevant to Type are meaningful; the others are zero-valued
// and ignored by Validate and by the forwarder factory.
type Definition struct {
	Name      string `json:"name"`
	Group     string `json:"group"`
	LocalPort int    `json:"localPort"`
	Enabled   bool   `json:"enabled"`
	Type      Type   `json:"type"`

	// socket variant
	RemoteHost string `json:"remoteHost,omitempty"`
	RemotePort int    `json:"remotePort,omitempty"`

	// kubernetes variant
	Context     string `json:"context,omitempty"`
	Namespace   string `json:"namespace,omitempty"`
	Service     string `json:"service,omitempty"`
	ServicePort int    `json:"servicePort,omitempty"`
}

// ValidationError reports why a Definition failed Validate.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func validationErr(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func validPort(p int) bool { return p >= 1 && p <= 65535 }

// Validate enforces the per-variant invariants from the data model. A
// definition that fails Validate must never enter the manager's registry.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return validationErr("name", "must not be empty")
	}
	if !validPort(d.LocalPort) {
		return validationErr("localPort", "must be between 1 and 65535")
	}
	if d.Group == "" {
		d.Group = DefaultGroup
	}

	switch d.Type {
	case TypeSocket:
		if d.RemoteHost == "" {
			return validationErr("remoteHost", "must not be empty")
		}
		if !validPort(d.RemotePort) {
			return validationErr("remotePort", "must be between 1 and 65535")
		}
	case TypeKubernetes:
		if d.Context == "" {
			return validationErr("context", "must not be empty")
		}
		if d.Namespace == "" {
			return validationErr("namespace", "must not be empty")
		}
		if d.Service == "" {
			return validationErr("service", "must not be empty")
		}
		if !validPort(d.ServicePort) {
			return validationErr("servicePort", "must be between 1 and 65535")
		}
	default:
		return validationErr("type", fmt.Sprintf("unknown forward type %q", d.Type))
	}
	return nil
}

// Clone returns an independent copy of d.
func (d *Definition) Clone() *Definition {
	c := *d
	return &c
}

// ToJSON renders the definition to its wire/persisted JSON representation.
func (d *Definition) ToJSON() ([]byte, error) {
	return json.Marshal(d)
}

// FromJSON parses a single definition object. Unknown Type values are
// rejected rather than silently accepted, because the manager treats any
// object that reaches the registry as startable.
func FromJSON(data []byte) (*Definition, error) {
	var d Definition
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	switch d.Type {
	case TypeSocket, TypeKubernetes:
	default:
		return nil, fmt.Errorf("forward: unknown type %q", d.Type)
	}
	return &d, nil
}

// RestartParameters returns the fields whose change, per the manager's
// reconciliation rule, mandates tearing down and recreating a running
// forwarder: localPort, type, and variant-specific routing fields. Group
// and Enabled are deliberately excluded.
type RestartParameters struct {
	LocalPort   int
	Type        Type
	RemoteHost  string
	RemotePort  int
	Context     string
	Namespace   string
	Service     string
	ServicePort int
}

// Restart extracts the restart-relevant parameters of d.
func (d *Definition) Restart() RestartParameters {
	return RestartParameters{
		LocalPort:   d.LocalPort,
		Type:        d.Type,
		RemoteHost:  d.RemoteHost,
		RemotePort:  d.RemotePort,
		Context:     d.Context,
		Namespace:   d.Namespace,
		Service:     d.Service,
		ServicePort: d.ServicePort,
	}
}

// NeedsRestart reports whether moving from prev to next requires a
// forwarder restart (§4.4 "Reconciliation on AddOrUpdate").
func NeedsRestart(prev, next RestartParameters) bool {
	return prev != next
}
