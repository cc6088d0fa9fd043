// Package lockfile implements the daemon's PID lock file (§6 "Lock
// file"): one process per RPC port, detected across restarts by checking
// whether the PID recorded in the lock file still belongs to a live
// kubeportald process.
package lockfile

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// ErrHeldByLiveProcess is returned by Acquire when the lock file names a
// PID that is still alive and still looks like a kubeportald process.
var ErrHeldByLiveProcess = fmt.Errorf("lock file is held by a live kubeportald process")

// Lock represents an acquired lock file. Release removes it.
type Lock struct {
	path string
}

// Acquire checks the lock file at path. If it names a PID that's still
// alive and whose process name contains "kubeportal", Acquire refuses to
// start. Otherwise — missing file, stale PID, or live PID belonging to an
// unrelated process — it creates/overwrites the file with the current PID.
func Acquire(path string) (*Lock, error) {
	if existingPID, err := readPID(path); err == nil {
		if processIsLive(existingPID) && processNameContains(existingPID, "kubeportal") {
			return nil, ErrHeldByLiveProcess
		}
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return nil, fmt.Errorf("writing lock file %s: %w", path, err)
	}
	return &Lock{path: path}, nil
}

// Release removes the lock file. Safe to call once; a missing file is not
// an error.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing lock file %s: %w", l.path, err)
	}
	return nil
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// processIsLive sends signal 0, which checks liveness without delivering
// an actual signal; ESRCH means the process doesn't exist.
func processIsLive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

// processNameContains is a best-effort, Linux-specific check via
// /proc/<pid>/comm. On platforms without /proc, it degrades to "assume
// yes" — Acquire then relies on liveness alone, matching the spec's intent
// that a live process at that PID is reason enough to refuse.
func processNameContains(pid int, substr string) bool {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/comm", pid))
	if err != nil {
		return true
	}
	return strings.Contains(strings.ToLower(string(data)), substr)
}
