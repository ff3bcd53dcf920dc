package transport

import (
	"net"
	"strconv"

	"httpwire/application/http/auth"
)

const DefaultProxyPort = 8080

type ProxyConfig struct {
	Host     string
	Port     uint16
	User     string
	Password string
}

// Enabled reports whether requests go through the proxy.
func (pc ProxyConfig) Enabled() bool { return pc.Host != "" }

func (pc ProxyConfig) Addr() string {
	port := pc.Port
	if port == 0 {
		port = DefaultProxyPort
	}
	return net.JoinHostPort(pc.Host, strconv.FormatUint(uint64(port), 10))
}

// Authorization returns the value of the Proxy-Authorization field.
// ok is false when no user is configured.
func (pc ProxyConfig) Authorization() (value string, ok bool) {
	if pc.User == "" {
		return "", false
	}
	return auth.Basic(auth.Credentials{Username: pc.User, Password: pc.Password}), true
}
