package client

import (
	"httpwire/application/http"
	"httpwire/application/http/cookie"
	"httpwire/application/util/uri"
)

// Response is the outcome of a request.
// StatusCode 0 means no response was received at all.
type Response struct {
	StatusCode int
	Reason     string
	Version    http.Version

	// Headers holds received fields, last one wins. Set-Cookie fields end up in Cookies instead.
	Headers    http.Headers
	RawHeaders string

	// Body is decoded according to Transfer-Encoding and Content-Encoding.
	Body []byte

	// ErrorText is empty for 200 and 304 responses.
	ErrorText string

	// Cookies holds every cookie collected during the exchange.
	Cookies []cookie.Cookie

	// Target is the last target requested, after redirects.
	Target     uri.Target
	Redirects  int
	RawRequest []byte
}

func (r *Response) HasError() bool { return r.ErrorText != "" }
