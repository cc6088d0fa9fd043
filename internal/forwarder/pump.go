package forwarder

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
)

// pumpBufferSize is within the 64-80 KiB range the spec calls for per read.
const pumpBufferSize = 64 * 1024

// closer is the minimal interface the pump needs to unblock a stuck read
// on cancellation. Both net.Conn and the kubernetes stream pair implement it.
type closer interface {
	io.ReadWriteCloser
}

// bridge runs the bidirectional stream pump for one connection: two
// independent copiers, client->remote and remote->client, each adding its
// byte count to counter per chunk so throughput is observable live. The
// connection completes when either direction sees EOF or error. Cancelling
// ctx force-closes both streams to unblock any blocked read.
func bridge(ctx context.Context, client, remote closer, counter *atomic.Uint64) {
	var once sync.Once
	closeBoth := func() {
		once.Do(func() {
			_ = client.Close()
			_ = remote.Close()
		})
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			closeBoth()
		case <-done:
		}
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		copyChunks(remote, client, counter)
		// Either direction finishing means the connection is over; close
		// both ends so the other copier's blocked read unblocks
		// immediately instead of waiting out an idle timeout.
		closeBoth()
	}()
	go func() {
		defer wg.Done()
		copyChunks(client, remote, counter)
		closeBoth()
	}()

	wg.Wait()
}

func copyChunks(dst io.Writer, src io.Reader, counter *atomic.Uint64) {
	buf := make([]byte, pumpBufferSize)
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				return
			}
			counter.Add(uint64(n))
		}
		if readErr != nil {
			return
		}
	}
}
