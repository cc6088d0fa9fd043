package rpcapi

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubeportal/kubeportal/internal/forward"
	"github.com/kubeportal/kubeportal/internal/manager"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	mgr := manager.New(path, nil, 200*time.Millisecond, true)
	return New(mgr, "test", time.Now(), nil)
}

func socketDef(name string, localPort int) *forward.Definition {
	return &forward.Definition{
		Name:       name,
		Group:      "default",
		Type:       forward.TypeSocket,
		LocalPort:  localPort,
		Enabled:    true,
		RemoteHost: "127.0.0.1",
		RemotePort: 9,
	}
}

func TestCreateAndGetForward(t *testing.T) {
	a := newTestAdapter(t)
	def := socketDef("a", freePort(t))

	result := a.CreateForward(def)
	assert.True(t, result.Success)

	got, result := a.GetForward("a")
	assert.True(t, result.Success)
	assert.Equal(t, "a", got.Name)

	_, result = a.GetForward("missing")
	assert.False(t, result.Success)
	assert.Equal(t, KindNotFound, result.Kind)
}

func TestDeleteForward_NotFound(t *testing.T) {
	a := newTestAdapter(t)
	result := a.DeleteForward("missing")
	assert.False(t, result.Success)
	assert.Equal(t, KindNotFound, result.Kind)
}

func TestCreateForward_BindInUseClassified(t *testing.T) {
	a := newTestAdapter(t)
	port := freePort(t)
	require.True(t, a.CreateForward(socketDef("a", port)).Success)

	result := a.CreateForward(socketDef("b", port))
	assert.False(t, result.Success)
	assert.Equal(t, KindAddressInUse, result.Kind)

	got, _ := a.GetForward("b")
	assert.False(t, got.Enabled)
}

func TestCreateForward_ValidationClassified(t *testing.T) {
	a := newTestAdapter(t)
	bad := socketDef("a", 0) // invalid port
	result := a.CreateForward(bad)
	assert.False(t, result.Success)
	assert.Equal(t, KindValidation, result.Kind)
}

func TestListGroupsAggregatesCounts(t *testing.T) {
	a := newTestAdapter(t)
	x := socketDef("x", freePort(t))
	x.Group = "cache"
	y := socketDef("y", freePort(t))
	y.Group = "cache"
	require.True(t, a.CreateForward(x).Success)
	require.True(t, a.CreateForward(y).Success)

	groups := a.ListGroups()
	require.Len(t, groups, 1)
	assert.Equal(t, "cache", groups[0].Name)
	assert.Equal(t, 2, groups[0].ActiveForwardCount)
	assert.Equal(t, 2, groups[0].TotalForwardCount)
	assert.True(t, groups[0].Enabled)
}

func TestGetStatus(t *testing.T) {
	a := newTestAdapter(t)
	require.True(t, a.CreateForward(socketDef("a", freePort(t))).Success)

	status := a.GetStatus()
	assert.True(t, status.Running)
	assert.Equal(t, "test", status.Version)
	assert.Equal(t, 1, status.ActiveForwardCount)
	assert.Equal(t, 1, status.TotalForwardCount)
}

func TestShutdownInvokesCallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	mgr := manager.New(path, nil, 200*time.Millisecond, true)

	called := false
	a := New(mgr, "test", time.Now(), func() { called = true })
	a.Shutdown()
	assert.True(t, called)
}
