package auth

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// NonceCount is fixed since every challenge is answered once.
const NonceCount = "00000001"

// Negotiator answers challenges. It owns the source of client nonces.
type Negotiator struct {
	rand io.Reader
}

// NewNegotiator creates a Negotiator. A nil source means crypto/rand.
func NewNegotiator(source io.Reader) *Negotiator {
	if source == nil {
		source = rand.Reader
	}
	return &Negotiator{rand: source}
}

// Authorize returns the value of the Authorization field answering ch
// for a request of method on uri.
func (n *Negotiator) Authorize(ch Challenge, creds Credentials, method, uri string) (string, error) {
	switch ch.Scheme {
	case SchemeBasic:
		return Basic(creds), nil
	case SchemeDigest:
		return n.Digest(ch, creds, method, uri)
	}
	return "", &Error{Scheme: string(ch.Scheme), cause: ErrUnsupportedScheme}
}

func (n *Negotiator) cnonce() (string, error) {
	b := make([]byte, 16)
	if _, err := io.ReadFull(n.rand, b); err != nil {
		return "", errors.Wrap(err, "reading client nonce")
	}
	return hex.EncodeToString(b), nil
}

// Digest answers a Digest challenge with qop=auth.
// Empty fields are left out.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc2617#section-3.2.2
func (n *Negotiator) Digest(ch Challenge, creds Credentials, method, uri string) (string, error) {
	cnonce, err := n.cnonce()
	if err != nil {
		return "", err
	}

	ha1 := md5Hex(creds.Username + ":" + ch.Realm + ":" + creds.Password)
	ha2 := md5Hex(strings.ToUpper(method) + ":" + uri)
	response := md5Hex(strings.Join([]string{ha1, ch.Nonce, NonceCount, cnonce, ch.Qop, ha2}, ":"))

	params := []struct {
		key, value string
		quoted     bool
	}{
		{"username", creds.Username, true},
		{"realm", ch.Realm, true},
		{"nonce", ch.Nonce, true},
		{"uri", uri, true},
		{"algorithm", ch.Algorithm, false},
		{"response", response, true},
		{"opaque", ch.Opaque, true},
		{"qop", ch.Qop, false},
		{"nc", NonceCount, false},
		{"cnonce", cnonce, true},
	}

	fields := make([]string, 0, len(params))
	for _, p := range params {
		if p.value == "" {
			continue
		}
		if p.quoted {
			fields = append(fields, p.key+"="+quote(p.value))
		} else {
			fields = append(fields, p.key+"="+p.value)
		}
	}

	return string(SchemeDigest) + " " + strings.Join(fields, ", "), nil
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
