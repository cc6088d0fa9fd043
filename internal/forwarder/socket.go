package forwarder

import (
	"context"
	"fmt"
	"net"
)

// socketDialer implements the socket variant (§4.2.a): a fresh TCP
// connection to (host, port), opened per accepted client.
type socketDialer struct {
	host string
	port int
}

func (d *socketDialer) dial(ctx context.Context) (closer, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", d.host, d.port))
	if err != nil {
		return nil, err
	}
	return conn, nil
}
