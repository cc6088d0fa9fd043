// Package rpcapi is the pure adapter (C5) between the forward manager and
// kubeportald's transports. It converts the manager's typed operations
// into flat request/response values, projects live forwarder state into
// wire-friendly status values, and classifies failures into the error
// kinds that the transports return to their clients alongside the error
// text.
package rpcapi

import (
	"errors"
	"time"

	"github.com/kubeportal/kubeportal/internal/forward"
	"github.com/kubeportal/kubeportal/internal/forwarder"
	"github.com/kubeportal/kubeportal/internal/manager"
)

// ErrorKind classifies a failure per §7, independent of transport.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindValidation
	KindNotFound
	KindAddressInUse
	KindBindError
	KindInternal
)

// Classify maps an error returned by the manager into its ErrorKind.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var validationErr *forward.ValidationError
	if errors.As(err, &validationErr) {
		return KindValidation
	}
	if errors.Is(err, manager.ErrNotFound) {
		return KindNotFound
	}
	var bindErr *forwarder.BindError
	if errors.As(err, &bindErr) {
		if bindErr.AddressInUse {
			return KindAddressInUse
		}
		return KindBindError
	}
	return KindInternal
}

// Adapter is the process-wide RPC adapter instance, shared by every
// transport (gRPC, MCP, HTTP status).
type Adapter struct {
	mgr       *manager.Manager
	version   string
	startedAt time.Time
	shutdown  func()
}

// New constructs an Adapter over mgr. shutdown is invoked by the Shutdown
// operation; it is supplied by the bootstrap package, which owns the
// actual process-exit sequence.
func New(mgr *manager.Manager, version string, startedAt time.Time, shutdown func()) *Adapter {
	return &Adapter{mgr: mgr, version: version, startedAt: startedAt, shutdown: shutdown}
}

// MutationResult is the {success, error} pair every mutating operation in
// §7 returns instead of a transport-level error, whenever the failure is
// a semantic one (not-found, invalid, bind conflict).
type MutationResult struct {
	Success bool
	Error   string
	Kind    ErrorKind
}

func resultFor(err error) MutationResult {
	if err == nil {
		return MutationResult{Success: true}
	}
	return MutationResult{Success: false, Error: err.Error(), Kind: Classify(err)}
}

// CreateForward validates and upserts def (§4.4 AddOrUpdate).
func (a *Adapter) CreateForward(def *forward.Definition) MutationResult {
	return resultFor(a.mgr.AddOrUpdate(def))
}

// DeleteForward removes name.
func (a *Adapter) DeleteForward(name string) MutationResult {
	if a.mgr.Delete(name) {
		return MutationResult{Success: true}
	}
	return MutationResult{Success: false, Error: "forward not found", Kind: KindNotFound}
}

// ListForwards returns every definition, optionally filtered to one group.
func (a *Adapter) ListForwards(groupFilter string) []*forward.Definition {
	all := a.mgr.GetAll()
	out := make([]*forward.Definition, 0, len(all))
	for _, def := range all {
		if groupFilter != "" && def.Group != groupFilter {
			continue
		}
		out = append(out, def)
	}
	return out
}

// GetForward returns one definition by name.
func (a *Adapter) GetForward(name string) (*forward.Definition, MutationResult) {
	def, ok := a.mgr.GetByName(name)
	if !ok {
		return nil, MutationResult{Success: false, Error: "forward not found", Kind: KindNotFound}
	}
	return def, MutationResult{Success: true}
}

// StartForward starts name.
func (a *Adapter) StartForward(name string) MutationResult {
	return resultFor(a.mgr.Start(name))
}

// StopForward stops name.
func (a *Adapter) StopForward(name string) MutationResult {
	if a.mgr.Stop(name) {
		return MutationResult{Success: true}
	}
	return MutationResult{Success: false, Error: "forward not found or not running", Kind: KindNotFound}
}

// GroupStatus is the §4.5/§8 ListGroups projection: a group is "enabled"
// iff any member is enabled, alongside how many of its members are
// currently active.
type GroupStatus struct {
	Name               string
	Enabled            bool
	ActiveForwardCount int
	TotalForwardCount  int
}

// ListGroups aggregates per-group counts from the current registry and
// active-forwarder set.
func (a *Adapter) ListGroups() []GroupStatus {
	defsByGroup := make(map[string]int)
	enabledByGroup := make(map[string]bool)
	for _, def := range a.mgr.GetAll() {
		defsByGroup[def.Group]++
		if def.Enabled {
			enabledByGroup[def.Group] = true
		}
	}

	activeByGroup := make(map[string]int)
	for _, status := range a.mgr.GetActive() {
		activeByGroup[status.Group]++
	}

	out := make([]GroupStatus, 0, len(defsByGroup))
	for group, total := range defsByGroup {
		out = append(out, GroupStatus{
			Name:               group,
			Enabled:            enabledByGroup[group],
			ActiveForwardCount: activeByGroup[group],
			TotalForwardCount:  total,
		})
	}
	return out
}

// EnableGroup enables and starts every member of group.
func (a *Adapter) EnableGroup(group string) int { return a.mgr.EnableGroup(group) }

// DisableGroup stops and disables every member of group.
func (a *Adapter) DisableGroup(group string) int { return a.mgr.DisableGroup(group) }

// DeleteGroup deletes every member of group.
func (a *Adapter) DeleteGroup(group string) int { return a.mgr.DeleteGroup(group) }

// ApplyConfigResult mirrors manager.ApplyResult at the RPC boundary.
type ApplyConfigResult struct {
	Added   int
	Updated int
	Removed int
	Error   string
}

// ApplyConfig merges configJSON into the registry.
func (a *Adapter) ApplyConfig(configJSON []byte, targetGroup string, removeMissing bool) ApplyConfigResult {
	result, err := a.mgr.ApplyConfig(configJSON, targetGroup, removeMissing)
	if err != nil {
		return ApplyConfigResult{Error: err.Error()}
	}
	return ApplyConfigResult{Added: result.Added, Updated: result.Updated, Removed: result.Removed}
}

// ExportConfig serializes the current registry.
func (a *Adapter) ExportConfig(includeDisabled bool, groupFilter string) ([]byte, error) {
	return a.mgr.ExportConfig(includeDisabled, groupFilter)
}

// ReloadConfig reloads the registry from disk.
func (a *Adapter) ReloadConfig() MutationResult {
	return resultFor(a.mgr.ReloadConfig())
}

// ForwardStatus is the live-status projection for one forward (§4.5):
// active, byte/connection counters, and an ISO-8601 start time.
type ForwardStatus struct {
	Name             string
	Group            string
	Active           bool
	ConnectionCount  int64
	BytesTransferred uint64
	StartTime        string
}

// ListActive projects every currently active forwarder to its wire status.
func (a *Adapter) ListActive() []ForwardStatus {
	active := a.mgr.GetActive()
	out := make([]ForwardStatus, 0, len(active))
	for _, s := range active {
		startTime := ""
		if s.StartTimeKnown {
			startTime = s.StartTime.UTC().Format(time.RFC3339)
		}
		out = append(out, ForwardStatus{
			Name:             s.Name,
			Group:            s.Group,
			Active:           s.Active,
			ConnectionCount:  s.ConnectionCount,
			BytesTransferred: s.BytesTransferred,
			StartTime:        startTime,
		})
	}
	return out
}

// DaemonStatus is the §6 GetStatus response shape.
type DaemonStatus struct {
	Running            bool
	Version            string
	ActiveForwardCount int
	TotalForwardCount  int
	UptimeSeconds      float64
}

// GetStatus returns the daemon-level status projection.
func (a *Adapter) GetStatus() DaemonStatus {
	s := a.mgr.GetStatus(a.version, a.startedAt)
	return DaemonStatus{
		Running:            s.Running,
		Version:            s.Version,
		ActiveForwardCount: s.ActiveForwardCount,
		TotalForwardCount:  s.TotalForwardCount,
		UptimeSeconds:      s.UptimeSeconds,
	}
}

// Shutdown triggers the daemon's graceful shutdown sequence.
func (a *Adapter) Shutdown() {
	if a.shutdown != nil {
		a.shutdown()
	}
}
