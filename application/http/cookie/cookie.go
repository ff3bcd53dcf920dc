// Package cookie parses Set-Cookie fields and keeps the cookies of one logical session.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc6265
package cookie

import (
	"strconv"
	"strings"
	"time"

	"httpwire/application/util/rule"
	"httpwire/application/util/uri"

	"github.com/pkg/errors"
)

type Cookie struct {
	Name  string
	Value string

	Domain  string
	Path    string
	Expires *time.Time
	Secure  bool
	Comment string
	Version string
}

var ErrMissingName = errors.New("cookie has no name")

// Layouts accepted for the expires attribute.
var expiresLayouts = []string{
	time.RFC1123,
	"Mon, 02-Jan-2006 15:04:05 MST",
	time.RFC850,
	time.ANSIC,
	"Mon, 02 Jan 2006 15:04:05 -0700",
}

// Parse parses the value of a Set-Cookie field.
// The first pair is the cookie itself, attribute names are case-insensitive
// and unknown attributes are ignored. now resolves Max-Age.
func Parse(line string, now time.Time) (Cookie, error) {
	parts := strings.Split(line, ";")

	name, value, _ := strings.Cut(parts[0], "=")
	name = strings.TrimFunc(name, rule.IsWhitespace)
	if name == "" {
		return Cookie{}, ErrMissingName
	}

	c := Cookie{Name: name, Value: strings.TrimFunc(value, rule.IsWhitespace)}

	var maxAge *time.Time
	for _, part := range parts[1:] {
		k, v, _ := strings.Cut(part, "=")
		k = strings.ToLower(strings.TrimFunc(k, rule.IsWhitespace))
		v = strings.TrimFunc(v, rule.IsWhitespace)

		switch k {
		case "domain":
			c.Domain = strings.ToLower(strings.TrimPrefix(v, "."))
		case "path":
			c.Path = v
		case "expires":
			if t, ok := parseExpires(v); ok {
				c.Expires = &t
			}
		case "max-age":
			secs, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				continue
			}
			t := now.Add(time.Duration(secs) * time.Second)
			maxAge = &t
		case "secure":
			c.Secure = true
		case "comment":
			c.Comment = rule.Unquote(v)
		case "version":
			c.Version = rule.Unquote(v)
		}
	}

	// Reference: https://datatracker.ietf.org/doc/html/rfc6265#section-5.3-7.3
	if maxAge != nil {
		c.Expires = maxAge
	}

	return c, nil
}

func parseExpires(v string) (time.Time, bool) {
	v = rule.Unquote(v)
	for _, layout := range expiresLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// String returns the name=value pair as sent in a Cookie field.
func (c Cookie) String() string { return c.Name + "=" + c.Value }

// ValidFor reports whether the cookie may be stored from or sent to target at now.
func (c Cookie) ValidFor(target uri.Target, fullPath string, now time.Time) bool {
	if c.Expires != nil && c.Expires.Before(now) {
		return false
	}

	if c.Domain != "" && !domainMatch(strings.ToLower(target.Host), c.Domain) {
		return false
	}

	if c.Path != "" && !strings.HasPrefix(fullPath, c.Path) {
		return false
	}

	if c.Secure && target.Scheme != uri.SchemeHTTPS {
		return false
	}

	return true
}

// Reference: https://datatracker.ietf.org/doc/html/rfc6265#section-5.1.3
func domainMatch(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}
