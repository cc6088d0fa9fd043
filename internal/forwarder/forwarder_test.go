package forwarder

import (
	"context"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubeportal/kubeportal/internal/forward"
)

// freePort asks the OS for an unused TCP port by binding and releasing it.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

// echoServer accepts connections and echoes whatever it reads back.
func echoServer(t *testing.T) (addr string, closeFn func()) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				_, _ = io.Copy(conn, conn)
			}()
		}
	}()
	return l.Addr().String(), func() { _ = l.Close() }
}

func socketDef(t *testing.T, remoteAddr string, localPort int) *forward.Definition {
	t.Helper()
	host, portStr, err := net.SplitHostPort(remoteAddr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return &forward.Definition{
		Name:       "echo",
		Type:       forward.TypeSocket,
		LocalPort:  localPort,
		RemoteHost: host,
		RemotePort: port,
	}
}

func TestForwarder_StartStopSocket(t *testing.T) {
	remoteAddr, closeRemote := echoServer(t)
	defer closeRemote()

	def := socketDef(t, remoteAddr, freePort(t))
	f, err := New(def, nil, 2*time.Second)
	require.NoError(t, err)

	require.NoError(t, f.Start(context.Background()))
	assert.True(t, f.IsActive())
	startTime, ok := f.StartTime()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now(), startTime, 2*time.Second)

	conn, err := net.Dial("tcp", "127.0.0.1:"+strconv.Itoa(def.LocalPort))
	require.NoError(t, err)

	_, err = conn.Write([]byte("hello"))
	require.NoError(t, err)

	buf := make([]byte, 5)
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf))
	conn.Close()

	assert.Eventually(t, func() bool { return f.BytesTransferred() > 0 }, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return f.ConnectionCount() == 0 }, time.Second, 10*time.Millisecond,
		"connection count must drop back to 0 once the closed connection's handler finishes")

	require.NoError(t, f.Stop())
	assert.False(t, f.IsActive())
}

func TestForwarder_StartBindAddressInUse(t *testing.T) {
	remoteAddr, closeRemote := echoServer(t)
	defer closeRemote()

	port := freePort(t)
	def1 := socketDef(t, remoteAddr, port)
	f1, err := New(def1, nil, time.Second)
	require.NoError(t, err)
	require.NoError(t, f1.Start(context.Background()))
	defer f1.Stop()

	def2 := socketDef(t, remoteAddr, port)
	f2, err := New(def2, nil, time.Second)
	require.NoError(t, err)

	err = f2.Start(context.Background())
	require.Error(t, err)

	var bindErr *BindError
	require.ErrorAs(t, err, &bindErr)
	assert.True(t, bindErr.AddressInUse)
}

func TestForwarder_DialFailureKeepsForwarderActive(t *testing.T) {
	def := &forward.Definition{
		Name:       "unreachable",
		Type:       forward.TypeSocket,
		LocalPort:  freePort(t),
		RemoteHost: "127.0.0.1",
		RemotePort: freePort(t), // nothing listening here
	}
	f, err := New(def, nil, time.Second)
	require.NoError(t, err)
	require.NoError(t, f.Start(context.Background()))
	defer f.Stop()

	conn, err := net.Dial("tcp", "127.0.0.1:"+strconv.Itoa(def.LocalPort))
	require.NoError(t, err)
	conn.Close()

	assert.Eventually(t, func() bool { return f.ConnectionCount() == 0 }, time.Second, 10*time.Millisecond,
		"the failed dial's connection must be cleaned up, not left counted forever")
	assert.True(t, f.IsActive(), "a failed dial must not deactivate the forwarder")
}
