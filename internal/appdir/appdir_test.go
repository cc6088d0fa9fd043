package appdir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigPath(t *testing.T) {
	assert.Equal(t, "/home/u/.kubeportal/config.json", ConfigPath("/home/u/.kubeportal"))
}

func TestSettingsPath(t *testing.T) {
	assert.Equal(t, "/home/u/.kubeportal/settings.yaml", SettingsPath("/home/u/.kubeportal"))
}

func TestLockPath(t *testing.T) {
	assert.Equal(t, "/home/u/.kubeportal/kubeportal-50051.lock", LockPath("/home/u/.kubeportal", 50051))
}

func TestDir_CreatesDirectory(t *testing.T) {
	dir, err := Dir()
	assert.NoError(t, err)
	assert.NotEmpty(t, dir)
}
