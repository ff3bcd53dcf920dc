package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"crypto/x509"
	"io"
	"net"
	nethttp "net/http"
	"net/netip"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"

	"httpwire/application/util/domain"
	"httpwire/application/util/uri"
	"httpwire/transport/test"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type countingDialer struct {
	Dialer
	calls atomic.Int32
}

func (d *countingDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	d.calls.Add(1)
	return d.Dialer.DialContext(ctx, network, addr)
}

type ConnectorTestSuite struct {
	suite.Suite

	origin *httptest.Server
	dialer *countingDialer
	conn   *Connector
}

func TestConnectorTestSuite(t *testing.T) {
	suite.Run(t, new(ConnectorTestSuite))
}

func (s *ConnectorTestSuite) SetupTest() {
	s.origin = httptest.NewTLSServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		io.WriteString(w, "secret of "+r.URL.Path)
	}))

	pool := x509.NewCertPool()
	pool.AddCert(s.origin.Certificate())

	s.dialer = &countingDialer{Dialer: NewDialer(0)}
	s.conn = NewConnector(s.dialer, nil, ConnectorOptions{
		TLSConfig: &tls.Config{RootCAs: pool},
	})
}

func (s *ConnectorTestSuite) TearDownTest() {
	s.origin.Close()
}

func (s *ConnectorTestSuite) target(raw string) uri.Target {
	target, err := uri.Parse(raw)
	s.Require().NoError(err)
	return target
}

func (s *ConnectorTestSuite) originTarget(path string) uri.Target {
	return s.target(s.origin.URL + path)
}

// roundtrip sends a minimal request and returns everything read until close.
func (s *ConnectorTestSuite) roundtrip(conn net.Conn, requestTarget, host string) string {
	_, err := io.WriteString(conn, "GET "+requestTarget+" HTTP/1.1\r\nHost: "+host+"\r\nConnection: close\r\n\r\n")
	s.Require().NoError(err)

	b, err := io.ReadAll(conn)
	s.Require().NoError(err)
	return string(b)
}

func (s *ConnectorTestSuite) TestDirectPlain() {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)
	defer ln.Close()

	done := make(chan string, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			done <- ""
			return
		}
		defer c.Close()
		line, _ := bufio.NewReader(c).ReadString('\n')
		done <- line
	}()

	conn, err := s.conn.Connect(context.Background(), s.target("http://"+ln.Addr().String()+"/"), ProxyConfig{})
	s.Require().NoError(err)
	defer conn.Close()

	s.False(conn.AbsoluteForm)
	s.Empty(conn.TLSMode)

	_, err = io.WriteString(conn, "hello\n")
	s.Require().NoError(err)
	s.Equal("hello\n", <-done)
}

func (s *ConnectorTestSuite) TestDirectTLS() {
	target := s.originTarget("/direct")

	conn, err := s.conn.Connect(context.Background(), target, ProxyConfig{})
	s.Require().NoError(err)
	defer conn.Close()

	s.Equal("tls", conn.TLSMode)
	s.Contains(s.roundtrip(conn, "/direct", target.HostHeader()), "secret of /direct")
}

func (s *ConnectorTestSuite) TestDirectTLSUntrusted() {
	conn := NewConnector(nil, nil, ConnectorOptions{})

	_, err := conn.Connect(context.Background(), s.originTarget("/"), ProxyConfig{})

	var connErr *ConnectionError
	s.True(errors.As(err, &connErr))
}

func (s *ConnectorTestSuite) TestTunnel() {
	proxy, err := test.NewProxy(test.ProxyOptions{})
	s.Require().NoError(err)
	defer proxy.Close()

	target := s.originTarget("/tunnel")
	cfg := ProxyConfig{Host: proxy.Host(), Port: proxy.Port(), User: "pu", Password: "pp"}

	conn, err := s.conn.Connect(context.Background(), target, cfg)
	s.Require().NoError(err)

	s.Equal("tls", conn.TLSMode)
	s.Contains(s.roundtrip(conn, "/tunnel", target.HostHeader()), "secret of /tunnel")
	s.NoError(conn.Close())

	heads := proxy.Heads()
	s.Require().Len(heads, 1)
	s.True(strings.HasPrefix(heads[0], "CONNECT "+target.Addr()+" HTTP/1.1\r\n"))
	s.Contains(heads[0], "Host: "+target.Addr()+"\r\n")
	s.Contains(heads[0], "Proxy-Authorization: Basic cHU6cHA=\r\n")
}

func (s *ConnectorTestSuite) TestTunnelRefused() {
	proxy, err := test.NewProxy(test.ProxyOptions{Reply: "HTTP/1.1 407 Proxy Authentication Required"})
	s.Require().NoError(err)
	defer proxy.Close()

	cfg := ProxyConfig{Host: proxy.Host(), Port: proxy.Port()}
	_, err = s.conn.Connect(context.Background(), s.originTarget("/"), cfg)

	var proxyErr *ProxyError
	s.Require().True(errors.As(err, &proxyErr))
	s.ErrorIs(err, ErrTunnelRefused)
	s.Equal("HTTP/1.1 407 Proxy Authentication Required", proxyErr.Reply)
	s.Len(proxy.Heads(), 1)
	s.NotContains(proxy.Heads()[0], "Proxy-Authorization")
}

func (s *ConnectorTestSuite) TestTunnelEveryTLSModeFails() {
	proxy, err := test.NewProxy(test.ProxyOptions{DropTunnels: true})
	s.Require().NoError(err)
	defer proxy.Close()

	cfg := ProxyConfig{Host: proxy.Host(), Port: proxy.Port()}
	_, err = s.conn.Connect(context.Background(), s.originTarget("/"), cfg)

	var proxyErr *ProxyError
	s.Require().True(errors.As(err, &proxyErr))
	s.ErrorIs(err, ErrTLSModesFailed)

	// One fresh tunnel per mode.
	s.Len(proxy.Heads(), len(DefaultTLSModes))
	s.Equal(int32(len(DefaultTLSModes)), s.dialer.calls.Load())
}

func (s *ConnectorTestSuite) TestPlainThroughProxy() {
	proxy, err := test.NewProxy(test.ProxyOptions{})
	s.Require().NoError(err)
	defer proxy.Close()

	cfg := ProxyConfig{Host: proxy.Host(), Port: proxy.Port()}
	conn, err := s.conn.Connect(context.Background(), s.target("http://example.invalid/"), cfg)
	s.Require().NoError(err)
	defer conn.Close()

	s.True(conn.AbsoluteForm)
	s.Equal(int32(1), s.dialer.calls.Load())
}

func (s *ConnectorTestSuite) TestConnectionRefused() {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)
	addr := ln.Addr().String()
	s.Require().NoError(ln.Close())

	_, err = s.conn.Connect(context.Background(), s.target("http://"+addr+"/"), ProxyConfig{})

	var connErr *ConnectionError
	s.Require().True(errors.As(err, &connErr))
	s.Equal(addr, connErr.Addr)
	s.Equal(int(syscall.ECONNREFUSED), connErr.Code)
	s.Contains(err.Error(), "errno "+strconv.Itoa(int(syscall.ECONNREFUSED)))
}

func (s *ConnectorTestSuite) TestLookuperOverride() {
	lookuper := domain.NewMapLookuper(map[string][]netip.Addr{
		"origin.test": {netip.MustParseAddr("127.0.0.1")},
	})

	pool := x509.NewCertPool()
	pool.AddCert(s.origin.Certificate())
	conn := NewConnector(s.dialer, nil, ConnectorOptions{
		// The test certificate is issued for example.com.
		TLSConfig: &tls.Config{RootCAs: pool, ServerName: "example.com"},
		Lookuper:  lookuper,
	})

	_, port, err := net.SplitHostPort(s.originTarget("/").Addr())
	s.Require().NoError(err)

	c, err := conn.Connect(context.Background(), s.target("https://origin.test:"+port+"/"), ProxyConfig{})
	s.Require().NoError(err)
	defer c.Close()

	s.Contains(s.roundtrip(c, "/resolved", "origin.test"), "secret of /resolved")
}

func (s *ConnectorTestSuite) TestLookuperSkipsAddresses() {
	conn := NewConnector(s.dialer, nil, ConnectorOptions{Lookuper: domain.NewMapLookuper(nil)})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)
	defer ln.Close()

	go func() {
		if c, err := ln.Accept(); err == nil {
			c.Close()
		}
	}()

	c, err := conn.Connect(context.Background(), s.target("http://"+ln.Addr().String()+"/"), ProxyConfig{})
	s.Require().NoError(err)
	s.NoError(c.Close())
}

func (s *ConnectorTestSuite) TestInvalidTarget() {
	_, err := s.conn.Connect(context.Background(), s.target("ftp://example.com/"), ProxyConfig{})
	s.ErrorIs(err, uri.ErrInvalidScheme)
	s.Zero(s.dialer.calls.Load())
}

func TestProxyConfig(t *testing.T) {
	cfg := ProxyConfig{Host: "proxy.local"}
	assert.True(t, cfg.Enabled())
	assert.Equal(t, "proxy.local:8080", cfg.Addr())

	_, ok := cfg.Authorization()
	assert.False(t, ok)

	cfg.Port, cfg.User, cfg.Password = 3128, "Aladdin", "open sesame"
	assert.Equal(t, "proxy.local:3128", cfg.Addr())

	value, ok := cfg.Authorization()
	assert.True(t, ok)
	assert.Equal(t, "Basic QWxhZGRpbjpvcGVuIHNlc2FtZQ==", value)

	assert.False(t, ProxyConfig{}.Enabled())
}
