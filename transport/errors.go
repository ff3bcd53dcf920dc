package transport

import (
	"strconv"
	"syscall"

	"github.com/pkg/errors"
)

// ConnectionError reports a stream that could not be opened.
type ConnectionError struct {
	Addr string
	// Code is the OS error number, zero when unknown.
	Code  int
	cause error
}

func newConnectionError(addr string, err error) *ConnectionError {
	ce := &ConnectionError{Addr: addr, cause: err}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		ce.Code = int(errno)
	}
	return ce
}

func (e *ConnectionError) Error() string {
	msg := "connecting to " + e.Addr
	if e.Code != 0 {
		msg += " (errno " + strconv.Itoa(e.Code) + ")"
	}
	return msg + ": " + e.cause.Error()
}

func (e *ConnectionError) Cause() error  { return e.cause }
func (e *ConnectionError) Unwrap() error { return e.cause }

var (
	ErrTunnelRefused   = errors.New("proxy refused tunnel")
	ErrTLSModesFailed  = errors.New("every tls mode failed")
	ErrEarlyTunnelData = errors.New("proxy sent data before tls handshake")
)

// ProxyError reports a proxy that refused the tunnel or a tunnel no TLS mode could secure.
type ProxyError struct {
	// Reply is the status line of the proxy, if one was read.
	Reply string
	cause error
}

func (e *ProxyError) Error() string {
	if e.Reply == "" {
		return "proxy: " + e.cause.Error()
	}
	return "proxy: " + e.cause.Error() + ": " + strconv.Quote(e.Reply)
}

func (e *ProxyError) Cause() error  { return e.cause }
func (e *ProxyError) Unwrap() error { return e.cause }
