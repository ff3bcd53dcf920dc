package uri

import (
	"sort"
	"strings"

	"httpwire/application/util/rule"

	"github.com/pkg/errors"
)

func hex(c byte) (h [2]byte) {
	const hexSet = "0123456789ABCDEF"
	h[0] = hexSet[c>>4]
	h[1] = hexSet[c&0xF]
	return
}

func unhex(h [2]byte) (c byte) {
	return (hexToNum(h[0]) << 4) | hexToNum(h[1])
}

func hexToNum(h byte) byte {
	switch {
	case '0' <= h && h <= '9':
		return h - '0'
	case 'a' <= h && h <= 'f':
		return h - 'a' + 10
	case 'A' <= h && h <= 'F':
		return h - 'A' + 10
	}
	return 0
}

func isHex(c byte) bool {
	return rule.IsDigit(rune(c)) || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

// Reference: https://datatracker.ietf.org/doc/html/rfc3986#section-2.3
func isUnreserved(c byte) bool {
	return rule.IsAlpha(rune(c)) || rule.IsDigit(rune(c)) ||
		c == '-' || c == '.' || c == '_' || c == '~'
}

// QueryEscape encodes s as one name or value of an urlencoded form.
// Everything but unreserved characters is percent-encoded and spaces become '+'.
//
// Reference: https://url.spec.whatwg.org/#application/x-www-form-urlencoded
func QueryEscape(s string) string {
	b := new(strings.Builder)
	b.Grow(len(s))

	for idx := 0; idx < len(s); idx++ {
		c := s[idx]
		switch {
		case c == ' ':
			b.WriteByte('+')
		case isUnreserved(c):
			b.WriteByte(c)
		default:
			hex := hex(c)
			b.Write([]byte{'%', hex[0], hex[1]})
		}
	}

	return b.String()
}

// Unescape decodes percent-encoded octets of s.
func Unescape(s string) (string, error) {
	b := new(strings.Builder)
	b.Grow(len(s))

	for idx := 0; idx < len(s); idx++ {
		c := s[idx]
		if c == '%' {
			if idx+2 >= len(s) || !isHex(s[idx+1]) || !isHex(s[idx+2]) {
				bad := s[idx:min(len(s), idx+3)]
				return "", errors.Errorf("percent encoding not properly applied: %q", bad)
			}
			b.WriteByte(unhex([2]byte{s[idx+1], s[idx+2]}))
			idx += 2
			continue
		}
		b.WriteByte(c)
	}

	return b.String(), nil
}

// EncodeForm serializes data as application/x-www-form-urlencoded, sorted by name.
// Each value of a name becomes its own pair.
func EncodeForm(data map[string][]string) string {
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)

	b := new(strings.Builder)
	for _, name := range names {
		key := QueryEscape(name)
		for _, value := range data[name] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(key)
			b.WriteByte('=')
			b.WriteString(QueryEscape(value))
		}
	}

	return b.String()
}
