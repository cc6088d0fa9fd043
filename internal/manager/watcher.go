package manager

import (
	"context"
	"os"
	"time"

	"github.com/kubeportal/kubeportal/pkg/logging"
)

const watchInterval = 2 * time.Second

// WatchConfig polls the config file's modification time and reloads on
// change, until ctx is cancelled. No filesystem-event library is present
// anywhere in the retrieval pack, so this watches by polling mtime rather
// than reaching for inotify/ReadDirectoryChangesW directly.
//
// While the manager itself writes the file (persistLocked), it marks the
// write as self-triggered via suppressWatch so the watcher's next tick
// doesn't reload what it just wrote.
func (m *Manager) WatchConfig(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.watchCancel = cancel

	go func() {
		var lastModTime time.Time
		if info, err := os.Stat(m.configPath); err == nil {
			lastModTime = info.ModTime()
		}

		ticker := time.NewTicker(watchInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				info, err := os.Stat(m.configPath)
				if err != nil {
					continue
				}
				if !info.ModTime().After(lastModTime) {
					continue
				}
				lastModTime = info.ModTime()

				if m.suppressWatch.CompareAndSwap(true, false) {
					continue
				}

				logging.Info(subsystem, "config file %s changed on disk, reloading", m.configPath)
				if err := m.ReloadConfig(); err != nil {
					logging.Error(subsystem, err, "reloading config after external change")
				}
			}
		}
	}()
}

// StopWatching cancels the background config-file watcher, if running.
func (m *Manager) StopWatching() {
	if m.watchCancel != nil {
		m.watchCancel()
	}
}
