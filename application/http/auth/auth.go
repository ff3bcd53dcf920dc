// Package auth computes Authorization fields answering a WWW-Authenticate challenge.
//
// Reference:
//
// - https://datatracker.ietf.org/doc/html/rfc7617
//
// - https://datatracker.ietf.org/doc/html/rfc2617
package auth

import (
	"strings"

	"httpwire/application/util/rule"

	"github.com/pkg/errors"
)

type Scheme string

const (
	SchemeBasic  Scheme = "Basic"
	SchemeDigest Scheme = "Digest"
)

var (
	ErrUnsupportedScheme = errors.New("auth scheme is unsupported")
	ErrUnsupportedQop    = errors.New("digest qop is unsupported")
	ErrUnsupportedAlgo   = errors.New("digest algorithm is unsupported")
	ErrUnknownParam      = errors.New("digest parameter is unknown")
	ErrMissingNonce      = errors.New("digest challenge has no nonce")
)

// Error is returned for challenges that cannot be answered.
type Error struct {
	Scheme string
	cause  error
}

func (e *Error) Error() string {
	if e.Scheme == "" {
		return "auth: " + e.cause.Error()
	}
	return "auth " + e.Scheme + ": " + e.cause.Error()
}

func (e *Error) Cause() error  { return e.cause }
func (e *Error) Unwrap() error { return e.cause }

type Challenge struct {
	Scheme    Scheme
	Realm     string
	Nonce     string
	Qop       string
	Algorithm string
	Opaque    string
	Domain    string
	Stale     bool
}

// ParseChallenge parses the value of a WWW-Authenticate field.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-11.6.1
func ParseChallenge(value string) (Challenge, error) {
	value = strings.TrimFunc(value, rule.IsWhitespace)
	name, params, _ := strings.Cut(value, " ")

	var ch Challenge
	switch {
	case strings.EqualFold(name, string(SchemeBasic)):
		ch.Scheme = SchemeBasic
	case strings.EqualFold(name, string(SchemeDigest)):
		ch.Scheme = SchemeDigest
	default:
		return Challenge{}, &Error{Scheme: name, cause: ErrUnsupportedScheme}
	}

	for _, member := range rule.SplitList(params) {
		k, v, _ := strings.Cut(member, "=")
		k = strings.ToLower(strings.TrimFunc(k, rule.IsWhitespace))
		v = rule.Unquote(strings.TrimFunc(v, rule.IsWhitespace))

		if err := ch.set(k, v); err != nil {
			return Challenge{}, &Error{Scheme: string(ch.Scheme), cause: errors.Wrap(err, k)}
		}
	}

	if ch.Scheme == SchemeDigest {
		if err := ch.validateDigest(); err != nil {
			return Challenge{}, &Error{Scheme: string(ch.Scheme), cause: err}
		}
	}

	return ch, nil
}

func (ch *Challenge) set(k, v string) error {
	switch k {
	case "realm":
		ch.Realm = v
		return nil
	case "charset":
		// Reference: https://datatracker.ietf.org/doc/html/rfc7617#section-2.1
		if ch.Scheme == SchemeBasic {
			return nil
		}
	}

	if ch.Scheme == SchemeBasic {
		// Basic has no other parameters worth reading.
		return nil
	}

	switch k {
	case "nonce":
		ch.Nonce = v
	case "qop":
		ch.Qop = v
	case "algorithm":
		ch.Algorithm = v
	case "opaque":
		ch.Opaque = v
	case "domain":
		ch.Domain = v
	case "stale":
		ch.Stale = strings.EqualFold(v, "true")
	default:
		return ErrUnknownParam
	}
	return nil
}

// Only qop=auth with MD5 is answered.
func (ch *Challenge) validateDigest() error {
	if ch.Nonce == "" {
		return ErrMissingNonce
	}

	if ch.Algorithm != "" && !strings.EqualFold(ch.Algorithm, "MD5") {
		return errors.Wrapf(ErrUnsupportedAlgo, "got %q", ch.Algorithm)
	}

	for _, qop := range rule.SplitList(ch.Qop) {
		if strings.EqualFold(qop, "auth") {
			ch.Qop = "auth"
			return nil
		}
	}
	return errors.Wrapf(ErrUnsupportedQop, "got %q", ch.Qop)
}

type Credentials struct {
	Username string
	Password string
}
