package grpcapi

import (
	"context"
	"net"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/kubeportal/kubeportal/internal/manager"
	"github.com/kubeportal/kubeportal/internal/rpcapi"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func dial(t *testing.T, addr string) *grpc.ClientConn {
	t.Helper()
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	return conn
}

func TestCreateForwardAndGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	mgr := manager.New(path, nil, 200*time.Millisecond, true)
	adapter := rpcapi.New(mgr, "test", time.Now(), nil)

	port := freePort(t)
	addr := "127.0.0.1:" + strconv.Itoa(port)
	srv := New(addr, adapter)
	errCh := srv.Start()
	defer srv.Shutdown()

	require.Eventually(t, func() bool {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)

	conn := dial(t, addr)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	createReq := &createForwardRequest{
		Name:       "web",
		Type:       "socket",
		LocalPort:  18080,
		Enabled:    false,
		RemoteHost: "127.0.0.1",
		RemotePort: 19090,
	}
	var createResp mutationResponse
	require.NoError(t, conn.Invoke(ctx, "/kubeportal.DaemonService/CreateForward", createReq, &createResp))
	assert.True(t, createResp.Success)

	var getResp getForwardResponse
	require.NoError(t, conn.Invoke(ctx, "/kubeportal.DaemonService/GetForward", &forwardNameRequest{Name: "web"}, &getResp))
	require.True(t, getResp.Result.Success)
	require.NotNil(t, getResp.Forward)
	assert.Equal(t, "web", getResp.Forward.Name)
	assert.Equal(t, 18080, getResp.Forward.LocalPort)

	var listResp listForwardsResponse
	require.NoError(t, conn.Invoke(ctx, "/kubeportal.DaemonService/ListForwards", &listForwardsRequest{}, &listResp))
	assert.Len(t, listResp.Forwards, 1)

	var deleteResp mutationResponse
	require.NoError(t, conn.Invoke(ctx, "/kubeportal.DaemonService/DeleteForward", &forwardNameRequest{Name: "web"}, &deleteResp))
	assert.True(t, deleteResp.Success)

	select {
	case err := <-errCh:
		t.Fatalf("server exited early: %v", err)
	default:
	}
}

func TestDeleteForward_NotFoundReturnsFailurePayloadNotStatusError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	mgr := manager.New(path, nil, 200*time.Millisecond, true)
	adapter := rpcapi.New(mgr, "test", time.Now(), nil)

	port := freePort(t)
	addr := "127.0.0.1:" + strconv.Itoa(port)
	srv := New(addr, adapter)
	srv.Start()
	defer srv.Shutdown()

	require.Eventually(t, func() bool {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)

	conn := dial(t, addr)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var deleteResp mutationResponse
	require.NoError(t, conn.Invoke(ctx, "/kubeportal.DaemonService/DeleteForward", &forwardNameRequest{Name: "missing"}, &deleteResp))
	assert.False(t, deleteResp.Success)
	assert.Equal(t, rpcapi.KindNotFound, deleteResp.Kind)
	assert.NotEmpty(t, deleteResp.Error)
}
