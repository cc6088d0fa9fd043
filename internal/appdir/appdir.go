// Package appdir resolves the per-user application-data directory that
// holds kubeportald's config file, settings file, and lock file.
package appdir

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Dir returns the platform-standard per-user application-data directory
// for kubeportald, creating it if it does not already exist.
//
//   - Windows: %LOCALAPPDATA%/KubePortal
//   - macOS:   ~/Library/Application Support/KubePortal
//   - Linux:   ~/.kubeportal
func Dir() (string, error) {
	dir, err := path()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating app data directory %s: %w", dir, err)
	}
	return dir, nil
}

func path() (string, error) {
	switch runtime.GOOS {
	case "windows":
		base := os.Getenv("LOCALAPPDATA")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			base = filepath.Join(home, "AppData", "Local")
		}
		return filepath.Join(base, "KubePortal"), nil
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", "KubePortal"), nil
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".kubeportal"), nil
	}
}

// ConfigPath returns the path to the persisted forward registry (config.json).
func ConfigPath(dir string) string {
	return filepath.Join(dir, "config.json")
}

// SettingsPath returns the path to the daemon settings file (settings.yaml).
func SettingsPath(dir string) string {
	return filepath.Join(dir, "settings.yaml")
}

// LockPath returns the path to the daemon's lock file for the given RPC port.
func LockPath(dir string, port int) string {
	return filepath.Join(dir, fmt.Sprintf("kubeportal-%d.lock", port))
}
