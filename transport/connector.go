package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"net"
	"net/netip"

	"httpwire/application/http"
	"httpwire/application/util/domain"
	"httpwire/application/util/uri"
	iolib "httpwire/lib/io"
	bytesutil "httpwire/util/bytes"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// TLSMode is one protocol range tried when securing a tunnel.
type TLSMode struct {
	Name       string
	MinVersion uint16
	MaxVersion uint16
}

// DefaultTLSModes lists tunnel TLS modes in order of preference.
var DefaultTLSModes = []TLSMode{
	{Name: "tls", MinVersion: tls.VersionTLS12, MaxVersion: tls.VersionTLS13},
	{Name: "tls1.1", MinVersion: tls.VersionTLS11, MaxVersion: tls.VersionTLS11},
	{Name: "tls1.0", MinVersion: tls.VersionTLS10, MaxVersion: tls.VersionTLS10},
}

type ConnectorOptions struct {
	// TLSConfig is the base configuration for every handshake.
	// ServerName is filled from the target when empty.
	TLSConfig *tls.Config

	// TLSModes overrides [DefaultTLSModes] for tunnels.
	TLSModes []TLSMode

	// Lookuper overrides name resolution for the hosts it knows.
	// Other hosts are left to the dialer.
	Lookuper domain.Lookuper
}

// Connector opens connections to a target, directly or through a proxy.
type Connector struct {
	dialer Dialer
	logger *zap.Logger
	opts   ConnectorOptions
}

// NewConnector creates a Connector. A nil dialer dials TCP with [ConnectTimeout]
// and a nil logger discards logs.
func NewConnector(dialer Dialer, logger *zap.Logger, opts ConnectorOptions) *Connector {
	if dialer == nil {
		dialer = NewDialer(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(opts.TLSModes) == 0 {
		opts.TLSModes = DefaultTLSModes
	}
	return &Connector{dialer: dialer, logger: logger, opts: opts}
}

// Connect opens a stream carrying requests for target.
// The returned connection is owned by the caller. No connection is left open on error.
func (c *Connector) Connect(ctx context.Context, target uri.Target, proxy ProxyConfig) (*Connection, error) {
	if err := target.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating target")
	}

	if !proxy.Enabled() {
		return c.connectDirect(ctx, target)
	}

	if target.Scheme == uri.SchemeHTTP {
		conn, err := c.dial(ctx, proxy.Addr())
		if err != nil {
			return nil, err
		}
		c.logger.Debug("connected to proxy", zap.String("proxy", proxy.Addr()))
		return &Connection{Conn: conn, AbsoluteForm: true}, nil
	}

	return c.connectTunnel(ctx, target, proxy)
}

func (c *Connector) dial(ctx context.Context, addr string) (net.Conn, error) {
	dialAddr, err := c.resolve(ctx, addr)
	if err != nil {
		return nil, newConnectionError(addr, err)
	}

	conn, err := c.dialer.DialContext(ctx, "tcp", dialAddr)
	if err != nil {
		return nil, newConnectionError(addr, err)
	}
	return conn, nil
}

// resolve replaces the host of addr when the lookuper knows it.
func (c *Connector) resolve(ctx context.Context, addr string) (string, error) {
	if c.opts.Lookuper == nil {
		return addr, nil
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", errors.Wrap(err, "splitting address")
	}
	if _, err := netip.ParseAddr(host); err == nil {
		return addr, nil
	}

	addrs, err := c.opts.Lookuper.LookupHost(ctx, host)
	if err != nil {
		if errors.Is(err, domain.ErrDomainNotFound) {
			return addr, nil
		}
		return "", errors.Wrap(err, "looking up host")
	}
	if len(addrs) == 0 {
		return addr, nil
	}

	resolved := net.JoinHostPort(addrs[0].String(), port)
	c.logger.Debug("host overridden", zap.String("host", host), zap.String("addr", resolved))
	return resolved, nil
}

func (c *Connector) connectDirect(ctx context.Context, target uri.Target) (*Connection, error) {
	addr := target.Addr()
	conn, err := c.dial(ctx, addr)
	if err != nil {
		return nil, err
	}

	if target.Scheme != uri.SchemeHTTPS {
		c.logger.Debug("connected", zap.String("addr", addr))
		return &Connection{Conn: conn}, nil
	}

	mode := c.opts.TLSModes[0]
	tlsConn, err := c.handshake(ctx, conn, target.Host, mode)
	if err != nil {
		conn.Close()
		return nil, newConnectionError(addr, err)
	}

	c.logger.Debug("connected", zap.String("addr", addr), zap.String("tls", mode.Name))
	return &Connection{Conn: tlsConn, TLSMode: mode.Name}, nil
}

// connectTunnel asks the proxy for a tunnel and secures it, trying each TLS mode in turn.
// A failed handshake leaves the tunnel unusable, so every mode gets a fresh tunnel.
func (c *Connector) connectTunnel(ctx context.Context, target uri.Target, proxy ProxyConfig) (*Connection, error) {
	var lastErr error
	for _, mode := range c.opts.TLSModes {
		conn, err := c.dial(ctx, proxy.Addr())
		if err != nil {
			return nil, err
		}

		if err := c.requestTunnel(conn, target, proxy); err != nil {
			conn.Close()
			return nil, err
		}

		tlsConn, err := c.handshake(ctx, conn, target.Host, mode)
		if err != nil {
			conn.Close()
			c.logger.Warn("tls mode failed on tunnel",
				zap.String("mode", mode.Name),
				zap.String("target", target.Addr()),
				zap.Error(err),
			)
			lastErr = err
			continue
		}

		c.logger.Debug("tunnel established",
			zap.String("proxy", proxy.Addr()),
			zap.String("target", target.Addr()),
			zap.String("tls", mode.Name),
		)
		return &Connection{Conn: tlsConn, TLSMode: mode.Name}, nil
	}

	return nil, &ProxyError{cause: errors.Wrap(ErrTLSModesFailed, lastErr.Error())}
}

// requestTunnel sends CONNECT and reads the reply head.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-9.3.6
func (c *Connector) requestTunnel(conn net.Conn, target uri.Target, proxy ProxyConfig) error {
	authority := target.Addr()

	var headers http.Headers
	headers.Set("Host", authority)
	if value, ok := proxy.Authorization(); ok {
		headers.Set("Proxy-Authorization", value)
	}

	head := http.RequestHead{
		Method:  "CONNECT",
		Target:  authority,
		Version: http.Version11,
		Headers: headers,
	}
	if _, err := iolib.WriteFull(conn, head.Text()); err != nil {
		return newConnectionError(proxy.Addr(), errors.Wrap(err, "writing CONNECT"))
	}

	br := bufio.NewReader(conn)
	line, err := bytesutil.ReadLine(br)
	if err != nil {
		return &ProxyError{cause: errors.Wrap(err, "reading CONNECT reply")}
	}

	sl, err := http.ParseStatusLine(string(line))
	if err != nil {
		return &ProxyError{Reply: string(line), cause: err}
	}
	if sl.StatusCode != 200 {
		return &ProxyError{Reply: string(line), cause: ErrTunnelRefused}
	}

	for {
		field, err := bytesutil.ReadLine(br)
		if err != nil {
			return &ProxyError{Reply: string(line), cause: errors.Wrap(err, "reading CONNECT reply headers")}
		}
		if len(field) == 0 {
			break
		}
	}

	if br.Buffered() > 0 {
		return &ProxyError{Reply: string(line), cause: ErrEarlyTunnelData}
	}

	return nil
}

func (c *Connector) handshake(ctx context.Context, conn net.Conn, host string, mode TLSMode) (*tls.Conn, error) {
	cfg := &tls.Config{}
	if c.opts.TLSConfig != nil {
		cfg = c.opts.TLSConfig.Clone()
	}
	if cfg.ServerName == "" {
		cfg.ServerName = host
	}
	cfg.MinVersion = mode.MinVersion
	cfg.MaxVersion = mode.MaxVersion

	tlsConn := tls.Client(conn, cfg)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return nil, errors.Wrapf(err, "tls handshake (%s)", mode.Name)
	}
	return tlsConn, nil
}
