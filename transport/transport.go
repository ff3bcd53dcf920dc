// Package transport opens the byte streams requests travel on:
// plain TCP, TLS, and tunnels through an HTTP proxy.
package transport

import (
	"context"
	"net"
	"time"
)

// ConnectTimeout bounds establishing a single TCP connection.
const ConnectTimeout = 10 * time.Second

type Dialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

// NewDialer returns a TCP dialer bounded by timeout.
// A zero timeout means [ConnectTimeout].
func NewDialer(timeout time.Duration) *net.Dialer {
	if timeout == 0 {
		timeout = ConnectTimeout
	}
	return &net.Dialer{Timeout: timeout}
}

// Connection is an open stream to the origin or to a proxy.
type Connection struct {
	net.Conn

	// AbsoluteForm is set when the stream goes to a proxy that expects
	// requests in absolute-form rather than through a tunnel.
	//
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-3.2.2
	AbsoluteForm bool

	// TLSMode names the TLS mode that was negotiated, empty for plain streams.
	TLSMode string
}
