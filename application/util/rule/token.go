package rule

import (
	"strings"
)

// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-5.6.2-2
func IsValidToken(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, c := range s {
		if IsAlpha(c) || IsDigit(c) {
			continue
		}

		switch c {
		case '!', '#', '$', '%', '&', '\'', '*', '+',
			'-', '.', '^', '_', '`', '|', '~':
			continue
		}

		return false
	}

	return true
}

// StartsFieldLine reports whether line opens a new header field,
// i.e. it begins with a name made of letters, digits and '-' directly followed by ':'.
func StartsFieldLine(line string) bool {
	name, _, found := strings.Cut(line, ":")
	if !found || len(name) == 0 {
		return false
	}
	for _, c := range name {
		if !IsAlpha(c) && !IsDigit(c) && c != '-' {
			return false
		}
	}
	return true
}

// Unquote unquotes token if it was quoted with double quotes.
// If quoted string includes escaped character, it will be un-escaped.
func Unquote(token string) string {
	if len(token) < 2 || token[0] != '"' || token[len(token)-1] != '"' {
		return token
	}
	token = token[1 : len(token)-1]

	var b strings.Builder
	b.Grow(len(token))
	for idx := 0; idx < len(token); idx++ {
		c := token[idx]
		if c == '\\' && idx+1 < len(token) {
			idx++
			c = token[idx]
		}
		b.WriteByte(c)
	}

	return b.String()
}

// SplitList splits a comma separated field value.
// Commas inside quoted strings do not split, and empty members are dropped.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-5.6.1
func SplitList(s string) []string {
	members := make([]string, 0)

	quoted, escaped := false, false
	start := 0
	for idx := 0; idx < len(s); idx++ {
		c := s[idx]
		switch {
		case escaped:
			escaped = false
		case quoted && c == '\\':
			escaped = true
		case c == '"':
			quoted = !quoted
		case c == ',' && !quoted:
			members = appendMember(members, s[start:idx])
			start = idx + 1
		}
	}

	return appendMember(members, s[start:])
}

func appendMember(members []string, member string) []string {
	member = strings.TrimFunc(member, IsWhitespace)
	if member == "" {
		return members
	}
	return append(members, member)
}
