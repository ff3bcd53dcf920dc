package client

import (
	"strconv"
	"strings"

	"httpwire/application/http"
	"httpwire/application/http/auth"
	"httpwire/application/http/cookie"
	"httpwire/application/http/transfer"
	"httpwire/application/util/uri"
	"httpwire/transport"

	"github.com/pkg/errors"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (compatible; httpwire; rv:1.0)"
	DefaultAccept    = "*/*"
	DefaultBodyType  = "application/octet-stream"
)

type EncodingWeight struct {
	Coding transfer.Coding
	// Q of zero marks the coding as not acceptable.
	Q float64
}

func (ew EncodingWeight) String() string {
	return string(ew.Coding) + ";q=" + strconv.FormatFloat(ew.Q, 'f', -1, 64)
}

// DefaultAcceptEncodings lists every coding the decoder handles.
var DefaultAcceptEncodings = []EncodingWeight{
	{Coding: transfer.CodingChunked, Q: 1},
	{Coding: transfer.CodingIdentity, Q: 0},
	{Coding: transfer.CodingGzip, Q: 1},
	{Coding: transfer.CodingDeflate, Q: 1},
}

// Request describes one logical request. It is copied when sent,
// so redirects and auth retries never touch the caller's value.
type Request struct {
	Method  string
	Target  uri.Target
	Version http.Version

	// Headers are sent after the generated ones and replace generated fields of the same name.
	Headers  http.Headers
	Body     []byte
	BodyType string

	// ContentEncoding and TransferEncoding name codings for the outgoing body.
	ContentEncoding  transfer.Coding
	TransferEncoding transfer.Coding

	// RangeStart and RangeEnd request a byte range, zero means unset.
	RangeStart uint64
	RangeEnd   uint64

	UserAgent       string
	Accept          string
	AcceptEncodings []EncodingWeight

	FollowRedirects bool

	Proxy transport.ProxyConfig

	// Credentials answer auth challenges. Userinfo of the target takes precedence.
	Credentials *auth.Credentials

	// Cookies are sent along with the ones the exchange collects.
	Cookies []cookie.Cookie
	// Jar, if set, is used and filled instead of a jar private to the exchange.
	Jar *cookie.Jar
}

// NewRequest creates a request with defaults applied.
func NewRequest(method, rawURL string) (*Request, error) {
	target, err := uri.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing url")
	}

	if method == "" {
		method = "GET"
	}

	return &Request{
		Method:          strings.ToUpper(method),
		Target:          target,
		Version:         http.Version11,
		BodyType:        DefaultBodyType,
		UserAgent:       DefaultUserAgent,
		Accept:          DefaultAccept,
		AcceptEncodings: DefaultAcceptEncodings,
		FollowRedirects: true,
	}, nil
}

func (r *Request) WithHeader(name, value string) *Request {
	r.Headers.Set(name, value)
	return r
}

func (r *Request) WithBody(body []byte, bodyType string) *Request {
	r.Body = body
	if bodyType != "" {
		r.BodyType = bodyType
	}
	return r
}

func (r *Request) WithVersion(ver http.Version) *Request {
	r.Version = ver
	return r
}

func (r *Request) WithRange(start, end uint64) *Request {
	r.RangeStart, r.RangeEnd = start, end
	return r
}

func (r *Request) WithUserAgent(ua string) *Request {
	r.UserAgent = ua
	return r
}

func (r *Request) WithAccept(accept string) *Request {
	r.Accept = accept
	return r
}

func (r *Request) WithAcceptEncodings(encodings ...EncodingWeight) *Request {
	r.AcceptEncodings = encodings
	return r
}

func (r *Request) WithRedirects(follow bool) *Request {
	r.FollowRedirects = follow
	return r
}

func (r *Request) WithProxy(proxy transport.ProxyConfig) *Request {
	r.Proxy = proxy
	return r
}

func (r *Request) WithCredentials(user, password string) *Request {
	r.Credentials = &auth.Credentials{Username: user, Password: password}
	return r
}

func (r *Request) WithCookies(cookies ...cookie.Cookie) *Request {
	r.Cookies = append(r.Cookies, cookies...)
	return r
}

func (r *Request) WithJar(jar *cookie.Jar) *Request {
	r.Jar = jar
	return r
}

func (r *Request) WithEncodings(content, transferCoding transfer.Coding) *Request {
	r.ContentEncoding, r.TransferEncoding = content, transferCoding
	return r
}

// clone returns a copy that shares nothing mutable with r.
func (r Request) clone() Request {
	r.Headers = r.Headers.Clone()
	r.Cookies = append([]cookie.Cookie(nil), r.Cookies...)
	return r
}

// credentials picks userinfo of the target over configured credentials.
func (r *Request) credentials() (auth.Credentials, bool) {
	if user, password, ok := r.Target.Credentials(); ok {
		return auth.Credentials{Username: user, Password: password}, true
	}
	if r.Credentials != nil {
		return *r.Credentials, true
	}
	return auth.Credentials{}, false
}

// rangeValue returns the value of the Range field.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-14.1.2
func (r *Request) rangeValue() (string, bool) {
	if r.RangeStart == 0 && r.RangeEnd == 0 {
		return "", false
	}

	value := "bytes=" + strconv.FormatUint(r.RangeStart, 10) + "-"
	if r.RangeEnd >= r.RangeStart {
		value += strconv.FormatUint(r.RangeEnd, 10)
	}
	return value, true
}

func (r *Request) acceptEncodingValue() string {
	values := make([]string, 0, len(r.AcceptEncodings))
	for _, ew := range r.AcceptEncodings {
		values = append(values, ew.String())
	}
	return strings.Join(values, ",")
}
