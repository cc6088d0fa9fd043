package lockfile

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire_CreatesFileWithOwnPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kubeportal-50051.lock")
	lock, err := Acquire(path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))

	require.NoError(t, lock.Release())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestAcquire_StalePIDIsOverwritten(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kubeportal-50051.lock")
	// A PID astronomically unlikely to be live.
	require.NoError(t, os.WriteFile(path, []byte("999999999"), 0o644))

	lock, err := Acquire(path)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))
	require.NoError(t, lock.Release())
}

func TestRelease_MissingFileIsNotAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kubeportal-50051.lock")
	lock := &Lock{path: path}
	assert.NoError(t, lock.Release())
}
