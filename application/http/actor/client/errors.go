package client

import (
	"strconv"

	"httpwire/application/util/uri"

	"github.com/pkg/errors"
)

var (
	ErrNilForm          = errors.New("form is nil")
	ErrRedirectTooLarge = errors.New("redirect limit exceeded")
)

// RedirectLoopError is returned when a request is redirected more often than allowed.
type RedirectLoopError struct {
	Hops int
	// Last is the target the last redirect pointed to.
	Last uri.Target
}

func (e *RedirectLoopError) Error() string {
	return "stopped after " + strconv.Itoa(e.Hops) + " redirects, last to " + e.Last.String()
}

func (e *RedirectLoopError) Cause() error  { return ErrRedirectTooLarge }
func (e *RedirectLoopError) Unwrap() error { return ErrRedirectTooLarge }
