package uri

import (
	"net"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"
)

var (
	ErrInvalidScheme = errors.New("scheme must be http or https")
	ErrMissingHost   = errors.New("target has no host")
)

// Target is a parsed request target.
// A Target parsed from a relative reference has an empty Scheme and Host.
type Target struct {
	Scheme   string
	UserInfo *string
	Host     string // IPv6 literals are stored without brackets.
	Port     *uint16
	Path     string
	Query    *string
	Fragment *string
}

// Reference: https://datatracker.ietf.org/doc/html/rfc3986#section-4.2
func (t Target) IsRelativeRef() bool { return t.Scheme == "" }

// Validate reports whether the target can be requested.
func (t Target) Validate() error {
	switch t.Scheme {
	case SchemeHTTP, SchemeHTTPS:
	default:
		return errors.Wrapf(ErrInvalidScheme, "got %q", t.Scheme)
	}
	if t.Host == "" {
		return ErrMissingHost
	}
	return nil
}

func DefaultPort(scheme string) uint16 {
	switch scheme {
	case SchemeHTTP:
		return 80
	case SchemeHTTPS:
		return 443
	}
	return 0
}

// EffectivePort returns the explicit port or the scheme's default one.
func (t Target) EffectivePort() uint16 {
	if t.Port != nil {
		return *t.Port
	}
	return DefaultPort(t.Scheme)
}

// Addr returns host:port suitable for dialing or a CONNECT request.
func (t Target) Addr() string {
	return net.JoinHostPort(t.Host, strconv.FormatUint(uint64(t.EffectivePort()), 10))
}

// HostHeader returns the value of the Host field.
// The port is only present when it differs from the scheme's default.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-7.2
func (t Target) HostHeader() string {
	host := bracketHost(t.Host)
	if t.Port != nil && *t.Port != DefaultPort(t.Scheme) {
		host += ":" + strconv.FormatUint(uint64(*t.Port), 10)
	}
	return host
}

// FullPath returns the origin-form of the target (path and query).
// An empty path becomes "*" for OPTIONS, meaning the server as a whole, and "/" otherwise.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-3.2
func (t Target) FullPath(method string) string {
	path := t.Path
	if path == "" {
		path = "/"
		if strings.EqualFold(method, "OPTIONS") {
			path = "*"
		}
	}

	if t.Query != nil {
		// HTML escaped ampersands are not valid inside a query.
		path += "?" + strings.ReplaceAll(*t.Query, "&amp;", "&")
	}

	return path
}

// Credentials returns user and password given in the userinfo, percent-decoded.
// ok is false unless both are present. Malformed escapes are kept as written.
func (t Target) Credentials() (user, password string, ok bool) {
	if t.UserInfo == nil {
		return "", "", false
	}

	user, password, ok = strings.Cut(*t.UserInfo, ":")
	if decoded, err := Unescape(user); err == nil {
		user = decoded
	}
	if decoded, err := Unescape(password); err == nil {
		password = decoded
	}
	return user, password, ok
}

// Reference: https://datatracker.ietf.org/doc/html/rfc3986#section-5.3
func (t Target) String() string {
	b := new(strings.Builder)
	if t.Scheme != "" {
		b.WriteString(t.Scheme)
		b.WriteString("://")
	}

	if t.UserInfo != nil {
		b.WriteString(*t.UserInfo)
		b.WriteByte('@')
	}
	b.WriteString(bracketHost(t.Host))
	if t.Port != nil {
		b.WriteByte(':')
		b.WriteString(strconv.FormatUint(uint64(*t.Port), 10))
	}

	b.WriteString(t.Path)

	if t.Query != nil {
		b.WriteByte('?')
		b.WriteString(*t.Query)
	}

	if t.Fragment != nil {
		b.WriteByte('#')
		b.WriteString(*t.Fragment)
	}

	return b.String()
}

// Parse parses an absolute URI or a relative reference.
func Parse(raw string) (Target, error) {
	if containsCTL(raw) {
		return Target{}, errors.New("target should not contain CTL bytes")
	}

	var t Target

	scheme, rest := cutScheme(raw)
	// Scheme is case-insensitive.
	t.Scheme = strings.ToLower(scheme)

	if strings.HasPrefix(rest, "//") {
		var authority string
		authority, rest = rest[2:], ""
		if i := strings.IndexAny(authority, "/?#"); i >= 0 {
			authority, rest = authority[:i], authority[i:]
		}

		if err := parseAuthority(authority, &t); err != nil {
			return Target{}, errors.Wrap(err, "parsing authority")
		}
	}

	path, query, frag := splitPathQueryFrag(rest)
	t.Path = path
	if query != "" {
		q := query[1:]
		t.Query = &q
	}
	if frag != "" {
		f := frag[1:]
		t.Fragment = &f
	}

	return t, nil
}

// cutScheme cuts scheme from raw. A colon only ends the scheme
// when it comes before any of "/?#" and everything before it is a valid scheme.
func cutScheme(raw string) (scheme, rest string) {
	idx := strings.IndexAny(raw, ":/?#")
	if idx <= 0 || raw[idx] != ':' {
		return "", raw
	}

	if !isValidScheme(raw[:idx]) {
		return "", raw
	}

	return raw[:idx], raw[idx+1:]
}

func parseAuthority(raw string, t *Target) error {
	host := raw
	if i := strings.LastIndex(raw, "@"); i >= 0 {
		userInfo := raw[:i]
		t.UserInfo = &userInfo
		host = raw[i+1:]
	}

	host, portPart, err := splitHostPort(host)
	if err != nil {
		return err
	}

	if portPart != "" {
		n, err := strconv.ParseUint(portPart, 10, 16)
		if err != nil {
			return errors.Wrapf(err, "port is not valid: %q", portPart)
		}
		port := uint16(n)
		t.Port = &port
	}

	// Host is case-insensitive.
	t.Host = strings.ToLower(host)

	return nil
}

func splitHostPort(raw string) (host, port string, err error) {
	if strings.HasPrefix(raw, "[") {
		// This is IP Literal.
		idx := strings.LastIndex(raw, "]")
		if idx < 0 {
			return "", "", errors.New("missing ']' in IP Literal")
		}

		host, rest := raw[1:idx], raw[idx+1:]
		if rest == "" {
			return host, "", nil
		}
		if rest[0] != ':' {
			return "", "", errors.New("unexpected bytes after IP Literal")
		}
		return host, rest[1:], nil
	}

	if idx := strings.LastIndexByte(raw, ':'); idx >= 0 {
		return raw[:idx], raw[idx+1:], nil
	}

	return raw, "", nil
}

func splitPathQueryFrag(raw string) (path, query, frag string) {
	if idx := strings.IndexByte(raw, '#'); idx >= 0 {
		frag = raw[idx:]
		raw = raw[:idx]
	}

	if idx := strings.IndexByte(raw, '?'); idx >= 0 {
		query = raw[idx:]
		raw = raw[:idx]
	}

	path = raw
	return
}
