// Package manager implements the forward manager (C4): the single
// authority over the name->definition registry and the name->forwarder
// runtime map, mutated under one coarse exclusive lock per operation.
package manager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kubeportal/kubeportal/internal/forward"
	"github.com/kubeportal/kubeportal/internal/forwarder"
	"github.com/kubeportal/kubeportal/internal/kube"
	"github.com/kubeportal/kubeportal/pkg/logging"
)

const subsystem = "manager"

// ErrNotFound is wrapped into the error returned by operations that look
// up a forward by name (Start), so callers can classify it with errors.Is.
var ErrNotFound = errors.New("forward not found")

// ForwarderStatus is a point-in-time projection of one forwarder's live
// state, safe to copy and hand across the RPC boundary.
type ForwarderStatus struct {
	Name              string
	Group             string
	Active            bool
	ConnectionCount   int64
	BytesTransferred  uint64
	StartTime         time.Time
	StartTimeKnown    bool
}

// Manager is the C4 singleton. All exported methods are safe for
// concurrent use; each takes the single coarse lock for its duration.
type Manager struct {
	mu         sync.Mutex
	defs       map[string]*forward.Definition
	forwarders map[string]*forwarder.Forwarder

	cache        *kube.AccessCache
	configPath   string
	graceTimeout time.Duration
	persist      bool // false in test mode

	suppressWatch atomic.Bool
	watchCancel   context.CancelFunc
}

// New constructs a Manager. persist=false disables all config-file writes,
// for use in tests that don't want filesystem side effects.
func New(configPath string, cache *kube.AccessCache, graceTimeout time.Duration, persist bool) *Manager {
	return &Manager{
		defs:         make(map[string]*forward.Definition),
		forwarders:   make(map[string]*forwarder.Forwarder),
		cache:        cache,
		configPath:   configPath,
		graceTimeout: graceTimeout,
		persist:      persist,
	}
}

// Initialize loads the config file if present and attempts to start every
// definition that is enabled in an enabled group. Per-forward start
// failures leave the definition present and do not fail Initialize
// itself; an address-in-use failure also disables it (see startLocked),
// while other failures leave its enabled flag unchanged.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	defs, err := m.loadLocked()
	if err != nil {
		logging.Error(subsystem, err, "loading config %s, starting with an empty registry", m.configPath)
		m.defs = make(map[string]*forward.Definition)
		return nil
	}
	m.defs = defs

	for name, def := range m.defs {
		if def.Enabled {
			m.startLocked(name)
		}
	}
	return nil
}

func (m *Manager) loadLocked() (map[string]*forward.Definition, error) {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]*forward.Definition), nil
		}
		return nil, err
	}
	defs, skipped, err := forward.DecodeRegistry(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", m.configPath, err)
	}
	for _, name := range skipped {
		logging.Warn(subsystem, "skipping malformed entry %q in %s", name, m.configPath)
	}
	return defs, nil
}

// GetAll returns a snapshot of every known definition, keyed by name.
func (m *Manager) GetAll() map[string]*forward.Definition {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*forward.Definition, len(m.defs))
	for name, def := range m.defs {
		out[name] = def.Clone()
	}
	return out
}

// GetByName returns the named definition and whether it exists.
func (m *Manager) GetByName(name string) (*forward.Definition, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	def, ok := m.defs[name]
	if !ok {
		return nil, false
	}
	return def.Clone(), true
}

// AddOrUpdate validates def, stores it, persists, and reconciles the
// running forwarder per §4.4's restart rule.
func (m *Manager) AddOrUpdate(def *forward.Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := def.Clone()
	prevDef, hadPrev := m.defs[stored.Name]
	m.defs[stored.Name] = stored
	m.persistLocked()

	return m.reconcileLocked(stored, prevDef, hadPrev)
}

// reconcileLocked implements the restart decision from §4.4. Must be
// called with m.mu held.
func (m *Manager) reconcileLocked(next *forward.Definition, prevDef *forward.Definition, hadPrev bool) error {
	prevFwd, running := m.forwarders[next.Name]

	needsRestart := running && hadPrev && forward.NeedsRestart(prevDef.Restart(), next.Restart())

	if needsRestart {
		prevFwd.Stop()
		delete(m.forwarders, next.Name)
		running = false
	}

	if next.Enabled && !running {
		if err := m.startLocked(next.Name); err != nil {
			return err
		}
	}
	return nil
}

// startLocked starts the named definition's forwarder. On
// AddressAlreadyInUse it flips the definition's enabled flag to false and
// persists that, per §4.2's Startup failure policy. Must be called with
// m.mu held.
func (m *Manager) startLocked(name string) error {
	def, ok := m.defs[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	fwd, err := forwarder.New(def, m.cache, m.graceTimeout)
	if err != nil {
		logging.Error(subsystem, err, "building forwarder %q", name)
		return err
	}

	if err := fwd.Start(context.Background()); err != nil {
		var bindErr *forwarder.BindError
		if asBindError(err, &bindErr) && bindErr.AddressInUse {
			def.Enabled = false
			m.persistLocked()
		}
		logging.Error(subsystem, err, "starting forward %q", name)
		return err
	}

	m.forwarders[name] = fwd
	def.Enabled = true
	return nil
}

func asBindError(err error, target **forwarder.BindError) bool {
	be, ok := err.(*forwarder.BindError)
	if ok {
		*target = be
	}
	return ok
}

// Delete stops the forward if running, removes it, and persists. Returns
// false if the name doesn't exist.
func (m *Manager) Delete(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.defs[name]; !ok {
		return false
	}
	if fwd, ok := m.forwarders[name]; ok {
		fwd.Stop()
		delete(m.forwarders, name)
	}
	delete(m.defs, name)
	m.persistLocked()
	return true
}

// Start marks the named definition enabled and starts it if not running.
func (m *Manager) Start(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	def, ok := m.defs[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if _, running := m.forwarders[name]; running {
		return nil
	}
	def.Enabled = true
	m.persistLocked()
	return m.startLocked(name)
}

// Stop stops the named forward if running, marks it disabled, and
// persists. Returns false if not found or not running.
func (m *Manager) Stop(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	fwd, running := m.forwarders[name]
	if !running {
		return false
	}
	fwd.Stop()
	delete(m.forwarders, name)

	if def, ok := m.defs[name]; ok {
		def.Enabled = false
	}
	m.persistLocked()
	return true
}

// EnableGroup enables and attempts to start every member of group, then
// persists once. Per-member start failures are swallowed; it returns the
// number of members enabled.
func (m *Manager) EnableGroup(group string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for name, def := range m.defs {
		if def.Group != group {
			continue
		}
		def.Enabled = true
		count++
		if _, running := m.forwarders[name]; !running {
			if err := m.startLocked(name); err != nil {
				logging.Warn(subsystem, "enabling group %q: forward %q failed to start: %v", group, name, err)
			}
		}
	}
	m.persistLocked()
	return count
}

// DisableGroup stops every running member of group, marks all disabled,
// and persists once.
func (m *Manager) DisableGroup(group string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for name, def := range m.defs {
		if def.Group != group {
			continue
		}
		if fwd, running := m.forwarders[name]; running {
			fwd.Stop()
			delete(m.forwarders, name)
		}
		def.Enabled = false
		count++
	}
	m.persistLocked()
	return count
}

// DeleteGroup deletes every member of group, as per Delete, persisting
// once at the end.
func (m *Manager) DeleteGroup(group string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	var names []string
	for name, def := range m.defs {
		if def.Group == group {
			names = append(names, name)
		}
	}
	for _, name := range names {
		if fwd, running := m.forwarders[name]; running {
			fwd.Stop()
			delete(m.forwarders, name)
		}
		delete(m.defs, name)
	}
	m.persistLocked()
	return len(names)
}

// GetGroupStatuses returns, for every group with at least one member,
// whether any member is enabled.
func (m *Manager) GetGroupStatuses() map[string]bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]bool)
	for _, def := range m.defs {
		out[def.Group] = out[def.Group] || def.Enabled
	}
	return out
}

// StopAll stops every active forwarder without mutating the definitions'
// enabled flags or persisting (used for shutdown and before a reload).
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopAllLocked()
}

func (m *Manager) stopAllLocked() {
	for name, fwd := range m.forwarders {
		fwd.Stop()
		delete(m.forwarders, name)
	}
}

// GetActive returns a status snapshot for every currently active forwarder.
func (m *Manager) GetActive() []ForwarderStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]ForwarderStatus, 0, len(m.forwarders))
	for name, fwd := range m.forwarders {
		def := m.defs[name]
		group := ""
		if def != nil {
			group = def.Group
		}
		startTime, known := fwd.StartTime()
		out = append(out, ForwarderStatus{
			Name:             name,
			Group:            group,
			Active:           fwd.IsActive(),
			ConnectionCount:  fwd.ConnectionCount(),
			BytesTransferred: fwd.BytesTransferred(),
			StartTime:        startTime,
			StartTimeKnown:   known,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ReloadConfig stops everything, reloads definitions from disk, and
// starts those enabled under enabled groups.
func (m *Manager) ReloadConfig() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopAllLocked()
	defs, err := m.loadLocked()
	if err != nil {
		return err
	}
	m.defs = defs
	for name, def := range m.defs {
		if def.Enabled {
			if err := m.startLocked(name); err != nil {
				logging.Warn(subsystem, "reload: forward %q failed to start: %v", name, err)
			}
		}
	}
	return nil
}

func (m *Manager) persistLocked() {
	if !m.persist {
		return
	}
	data, err := forward.EncodeRegistry(m.defs)
	if err != nil {
		logging.Error(subsystem, err, "encoding config for persistence")
		return
	}

	m.suppressWatch.Store(true)
	if err := atomicWriteFile(m.configPath, data); err != nil {
		logging.Error(subsystem, err, "writing config %s", m.configPath)
	}
}

// atomicWriteFile writes data to path via a temp file in the same
// directory followed by a rename, so a reader never observes a partial
// write. The directory is created on demand.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}
