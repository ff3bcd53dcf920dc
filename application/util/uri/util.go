package uri

import (
	"net"
	"strings"

	"httpwire/application/util/rule"
)

func containsCTL(s string) bool {
	for i := 0; i < len(s); i++ {
		b := s[i]
		if b < ' ' || b == 0x7f {
			return true
		}
	}
	return false
}

// Reference: https://datatracker.ietf.org/doc/html/rfc3986#section-3.1
func isValidScheme(scheme string) bool {
	if len(scheme) == 0 || !rule.IsAlpha(rune(scheme[0])) {
		return false
	}

	for idx := 1; idx < len(scheme); idx++ {
		c := scheme[idx]
		switch {
		case rule.IsAlpha(rune(c)) || rule.IsDigit(rune(c)):
		case c == '+' || c == '-' || c == '.':
		default:
			return false
		}
	}

	return true
}

// IsIPv6 reports whether host is an IPv6 address literal.
func IsIPv6(host string) bool {
	ip := net.ParseIP(host)
	return ip != nil && strings.Contains(host, ":")
}

func bracketHost(host string) string {
	if IsIPv6(host) {
		return "[" + host + "]"
	}
	return host
}
