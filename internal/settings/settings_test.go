package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), got)
}

func TestLoad_OverlaysOntoDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logLevel: debug\nmcpListenAddress: 127.0.0.1:50053\n"), 0o644))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", got.LogLevel)
	assert.Equal(t, "127.0.0.1:50053", got.MCPListenAddress)
	// Untouched fields keep their defaults.
	assert.Equal(t, Default().RPCListenAddress, got.RPCListenAddress)
	assert.Equal(t, Default().KubeClientTTL, got.KubeClientTTL)
}

func TestLoad_DurationOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("connectionGraceTimeout: 10s\n"), 0o644))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, got.ConnectionGraceTimeout)
}

func TestLoad_MalformedFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logLevel: [this is not a string\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
