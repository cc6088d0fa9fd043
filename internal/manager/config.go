package manager

import (
	"time"

	"github.com/kubeportal/kubeportal/internal/forward"
	"github.com/kubeportal/kubeportal/pkg/logging"
)

// ApplyResult reports how many definitions an ApplyConfig call touched.
type ApplyResult struct {
	Added   int
	Updated int
	Removed int
}

// ApplyConfig merges the definitions encoded in data into the registry.
// When targetGroup is non-empty, every incoming entry is forced into that
// group. When removeMissing is true, any existing definition within the
// target scope (targetGroup if set, otherwise the whole registry) that
// wasn't present in data is deleted. Malformed entries are logged and
// skipped rather than aborting the whole call.
func (m *Manager) ApplyConfig(data []byte, targetGroup string, removeMissing bool) (ApplyResult, error) {
	incoming, skipped, err := forward.DecodeRegistry(data)
	if err != nil {
		return ApplyResult{}, err
	}
	for _, name := range skipped {
		logging.Warn(subsystem, "ApplyConfig: skipping malformed entry %q", name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var result ApplyResult
	seen := make(map[string]bool, len(incoming))

	for name, def := range incoming {
		if targetGroup != "" {
			def.Group = targetGroup
		}
		if err := def.Validate(); err != nil {
			logging.Warn(subsystem, "ApplyConfig: rejecting %q: %v", name, err)
			continue
		}
		seen[name] = true

		prevDef, hadPrev := m.defs[name]
		m.defs[name] = def
		if hadPrev {
			result.Updated++
		} else {
			result.Added++
		}
		if err := m.reconcileLocked(def, prevDef, hadPrev); err != nil {
			logging.Warn(subsystem, "ApplyConfig: reconciling %q: %v", name, err)
		}
	}

	if removeMissing {
		scope := targetGroup
		var toRemove []string
		for name, def := range m.defs {
			if scope != "" && def.Group != scope {
				continue
			}
			if !seen[name] {
				toRemove = append(toRemove, name)
			}
		}
		for _, name := range toRemove {
			if fwd, running := m.forwarders[name]; running {
				fwd.Stop()
				delete(m.forwarders, name)
			}
			delete(m.defs, name)
			result.Removed++
		}
	}

	m.persistLocked()
	return result, nil
}

// ExportConfig serializes the current definitions, optionally filtered to
// one group and optionally excluding disabled definitions.
func (m *Manager) ExportConfig(includeDisabled bool, groupFilter string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	filtered := make(map[string]*forward.Definition)
	for name, def := range m.defs {
		if groupFilter != "" && def.Group != groupFilter {
			continue
		}
		if !includeDisabled && !def.Enabled {
			continue
		}
		filtered[name] = def.Clone()
	}
	return forward.EncodeRegistry(filtered)
}

// DaemonStatus is the §4.5 GetStatus projection.
type DaemonStatus struct {
	Running            bool
	Version            string
	ActiveForwardCount int
	TotalForwardCount  int
	UptimeSeconds       float64
}

// GetStatus returns the daemon-level status projection. startedAt is the
// daemon's own start time, tracked by the bootstrap package.
func (m *Manager) GetStatus(version string, startedAt time.Time) DaemonStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	return DaemonStatus{
		Running:            true,
		Version:            version,
		ActiveForwardCount: len(m.forwarders),
		TotalForwardCount:  len(m.defs),
		UptimeSeconds:      time.Since(startedAt).Seconds(),
	}
}
