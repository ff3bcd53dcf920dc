// Package client sends HTTP/1.1 requests over raw connections.
// One Send drives a single logical request through connection, auth retry and redirects.
package client

import (
	"context"
	"strconv"
	"strings"

	"httpwire/application/http"
	"httpwire/application/http/auth"
	"httpwire/application/http/cookie"
	"httpwire/application/http/status"
	"httpwire/application/http/transfer"
	"httpwire/application/util/uri"
	iolib "httpwire/lib/io"
	"httpwire/transport"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Client struct {
	connector *transport.Connector

	opts Options

	logger *zap.Logger
	clock  clock.Clock

	transfer   *transfer.CodingApplier
	negotiator *auth.Negotiator
	observer   Observer
}

// New creates a Client. Nil collaborators fall back to a direct TCP connector,
// a no-op logger and the wall clock.
func New(
	connector *transport.Connector,
	logger *zap.Logger,
	clk clock.Clock,
	opts Options,
) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if connector == nil {
		connector = transport.NewConnector(nil, logger, transport.ConnectorOptions{})
	}
	if clk == nil {
		clk = clock.New()
	}
	if opts.Redirect.Max == 0 {
		opts.Redirect.Max = MaxRedirects
	}
	if opts.Receive.ReadChunkSize == 0 {
		opts.Receive.ReadChunkSize = iolib.DefaultChunkSize
	}

	client := &Client{
		connector:  connector,
		opts:       opts,
		logger:     logger,
		clock:      clk,
		negotiator: auth.NewNegotiator(opts.Auth.NonceSource),
		observer:   opts.Observer,
	}
	if client.observer == nil {
		client.observer = nopObserver{}
	}

	client.transfer = transfer.NewCodingApplier(opts.Receive.DecodeMode, opts.Receive.ExtraTransferCoders...)
	client.transfer.SetOnFallback(func(coding transfer.Coding, err error) {
		client.logger.Warn("decoding failed, keeping bytes as received",
			zap.String("coding", string(coding)),
			zap.Error(err),
		)
		client.observer.DecodeFellBack(coding)
	})

	return client
}

type state int

const (
	stateInit state = iota
	stateConnected
	stateSent
	stateRead
	stateParsed
	stateRetryAuth
	stateRedirect
	stateDone
)

var stateNames = [...]string{
	stateInit:      "INIT",
	stateConnected: "CONNECTED",
	stateSent:      "SENT",
	stateRead:      "READ",
	stateParsed:    "PARSED",
	stateRetryAuth: "RETRY_AUTH",
	stateRedirect:  "REDIRECT",
	stateDone:      "DONE",
}

func (s state) String() string { return stateNames[s] }

// Kinds of errors reported to the [Observer].
const (
	kindConfig     = "config"
	kindConnection = "connection"
	kindProxy      = "proxy"
	kindProtocol   = "protocol"
	kindDecode     = "decode"
	kindAuth       = "auth"
	kindRedirect   = "redirect"
)

// exchange is the mutable state of one Send.
type exchange struct {
	req Request
	jar *cookie.Jar

	conn        *transport.Connection
	rawRequest  []byte
	rawResponse []byte
	res         *Response

	authorization string
	authRetried   bool
	redirects     int

	err     error
	errKind string
}

func (ex *exchange) fail(kind string, err error) state {
	ex.err, ex.errKind = err, kind
	return stateDone
}

func (ex *exchange) closeConn() {
	if ex.conn != nil {
		ex.conn.Close()
		ex.conn = nil
	}
}

// Send performs req, following auth challenges and redirects.
// The returned Response is never nil. When err is not nil and no response
// was received, its StatusCode is 0 and ErrorText describes err.
func (c *Client) Send(ctx context.Context, req Request) (*Response, error) {
	start := c.clock.Now()

	ex := &exchange{req: normalize(req.clone()), jar: req.Jar}
	if ex.jar == nil {
		ex.jar = cookie.NewJar(c.clock)
	}
	ex.jar.Add(ex.req.Cookies...)
	defer ex.closeConn()

	for st := stateInit; st != stateDone; {
		next := c.step(ctx, ex, st)
		c.logger.Debug("exchange state",
			zap.Stringer("from", st),
			zap.Stringer("to", next),
			zap.String("target", redact(ex.req.Target)),
		)
		st = next
	}

	res := ex.res
	if res == nil {
		res = &Response{}
	}
	res.Cookies = ex.jar.Cookies()
	res.Target = ex.req.Target
	res.Redirects = ex.redirects
	if res.RawRequest == nil {
		res.RawRequest = ex.rawRequest
	}

	c.observer.Completed(req.Method, res.StatusCode, c.clock.Since(start))

	if ex.err != nil {
		if res.StatusCode == 0 {
			res.ErrorText = ex.err.Error()
		}
		c.observer.Failed(ex.errKind)
		c.logger.Info("request failed",
			zap.String("kind", ex.errKind),
			zap.String("target", redact(ex.req.Target)),
			zap.Error(ex.err),
		)
		return res, ex.err
	}

	return res, nil
}

func normalize(req Request) Request {
	if req.Method == "" {
		req.Method = "GET"
	}
	req.Method = strings.ToUpper(req.Method)
	if req.Version == (http.Version{}) {
		req.Version = http.Version11
	}
	return req
}

func (c *Client) step(ctx context.Context, ex *exchange, st state) state {
	switch st {
	case stateInit:
		return c.connect(ctx, ex)
	case stateConnected:
		return c.send(ex)
	case stateSent:
		return c.read(ctx, ex)
	case stateRead:
		return c.parse(ex)
	case stateParsed:
		return c.classify(ex)
	case stateRetryAuth:
		return c.retryAuth(ex)
	case stateRedirect:
		return c.redirect(ex)
	}
	return stateDone
}

func (c *Client) connect(ctx context.Context, ex *exchange) state {
	ex.closeConn()
	ex.res = nil

	if err := ex.req.Target.Validate(); err != nil {
		return ex.fail(kindConfig, errors.Wrap(err, "validating target"))
	}

	conn, err := c.connector.Connect(ctx, ex.req.Target, ex.req.Proxy)
	if err != nil {
		var proxyErr *transport.ProxyError
		if errors.As(err, &proxyErr) {
			return ex.fail(kindProxy, err)
		}
		return ex.fail(kindConnection, err)
	}

	ex.conn = conn
	return stateConnected
}

func (c *Client) send(ex *exchange) state {
	head, body := c.compose(ex)
	ex.rawRequest = http.EncodeRequest(head, body)

	if err := http.NewRequestEncoder(ex.conn).Encode(head, body); err != nil {
		return ex.fail(kindConnection, err)
	}
	return stateSent
}

// compose builds the request head and the body as sent.
func (c *Client) compose(ex *exchange) (http.RequestHead, []byte) {
	req := &ex.req
	absoluteForm := ex.conn != nil && ex.conn.AbsoluteForm
	fullPath := req.Target.FullPath(req.Method)

	var headers http.Headers
	if !absoluteForm {
		headers.Set("Host", req.Target.HostHeader())
	}
	if req.UserAgent != "" {
		headers.Set("User-Agent", req.UserAgent)
	}
	headers.Set("Connection", "close")
	if len(req.AcceptEncodings) > 0 {
		headers.Set("Accept-Encoding", req.acceptEncodingValue())
	}
	if req.Accept != "" {
		headers.Set("Accept", req.Accept)
	}

	body := req.Body
	if len(body) > 0 {
		var codings []string
		body, codings = c.encodeBody(req)
		headers.Set("Content-Length", strconv.Itoa(len(body)))
		if req.BodyType != "" {
			headers.Set("Content-Type", req.BodyType)
		}
		if codings[0] != "" {
			headers.Set("Content-Encoding", codings[0])
		}
		if codings[1] != "" {
			headers.Set("Transfer-Encoding", codings[1])
		}
	}

	if value, ok := req.rangeValue(); ok {
		headers.Set("Range", value)
	}
	if ex.authorization != "" {
		headers.Set("Authorization", ex.authorization)
	}
	if absoluteForm {
		if value, ok := req.Proxy.Authorization(); ok {
			headers.Set("Proxy-Authorization", value)
		}
	}

	for _, f := range req.Headers.Fields() {
		headers.Set(f.Name, f.Value)
	}

	if value, ok := ex.jar.Header(req.Target, fullPath); ok {
		headers.Set("Cookie", value)
	}

	requestTarget := fullPath
	if absoluteForm {
		requestTarget = absoluteTarget(req.Target, fullPath)
	}

	return http.RequestHead{
		Method:  req.Method,
		Target:  requestTarget,
		Version: req.Version,
		Headers: headers,
	}, body
}

// encodeBody applies the outgoing codings of req.
// It returns the body and the applied content and transfer codings, empty when not applied.
func (c *Client) encodeBody(req *Request) ([]byte, []string) {
	body := req.Body
	applied := make([]string, 2)

	for idx, coding := range []transfer.Coding{req.ContentEncoding, req.TransferEncoding} {
		if coding == "" {
			continue
		}

		encoded, err := c.transfer.Encode(body, coding)
		if err != nil {
			c.logger.Debug("outgoing coding not applied",
				zap.String("coding", string(coding)),
				zap.Error(err),
			)
			continue
		}

		body = encoded
		if coding != transfer.CodingIdentity {
			applied[idx] = string(coding)
		}
	}

	return body, applied
}

// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-3.2.2
func absoluteTarget(target uri.Target, fullPath string) string {
	prefix := target.Scheme + "://" + target.HostHeader()
	if fullPath == "*" {
		return prefix
	}
	return prefix + fullPath
}

// read reads until the peer closes the connection. A cancelled ctx closes it early.
func (c *Client) read(ctx context.Context, ex *exchange) state {
	conn := ex.conn
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	data, err := iolib.ReadUntilClose(conn, c.opts.Receive.ReadChunkSize)
	ex.closeConn()

	if err != nil {
		if len(data) == 0 || ctx.Err() != nil {
			if ctx.Err() != nil {
				err = errors.Wrap(ctx.Err(), err.Error())
			}
			return ex.fail(kindConnection, errors.Wrap(err, "reading response"))
		}
		c.logger.Warn("response cut short", zap.Int("bytes", len(data)), zap.Error(err))
	}

	ex.rawResponse = data
	return stateRead
}

func (c *Client) parse(ex *exchange) state {
	head, body, err := http.SplitMessage(ex.rawResponse)
	if err != nil {
		return ex.fail(kindProtocol, err)
	}

	rh, err := http.ParseResponseHead(head)
	if err != nil {
		return ex.fail(kindProtocol, err)
	}

	res := &Response{
		StatusCode: rh.StatusCode,
		Reason:     rh.ReasonPhrase,
		Version:    rh.Version,
		RawHeaders: string(head),
		RawRequest: ex.rawRequest,
		ErrorText:  status.ErrorText(rh.StatusCode, rh.ReasonPhrase),
	}
	ex.res = res

	fullPath := ex.req.Target.FullPath(ex.req.Method)
	for _, f := range rh.Fields {
		if strings.EqualFold(f.Name, "Set-Cookie") {
			stored, err := ex.jar.SetFromHeader(f.Value, ex.req.Target, fullPath)
			if err != nil || !stored {
				c.logger.Debug("cookie rejected", zap.String("value", f.Value), zap.Error(err))
			}
			continue
		}
		res.Headers.Set(f.Name, f.Value)
	}

	for _, name := range []string{"Transfer-Encoding", "Content-Encoding"} {
		value, ok := res.Headers.Get(name)
		if !ok || value == "" {
			continue
		}

		body, err = c.transfer.Decode(body, transfer.ParseCodings(value))
		if err != nil {
			return ex.fail(kindDecode, errors.Wrapf(err, "decoding %s", name))
		}
	}
	res.Body = body

	c.logger.Debug("response parsed",
		zap.Int("status", res.StatusCode),
		zap.Int("body", len(res.Body)),
	)
	return stateParsed
}

// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-15.4
func isFollowedRedirect(code int) bool {
	switch code {
	case status.MovedPermanently.Code, status.Found.Code, status.SeeOther.Code:
		return true
	}
	return false
}

func (c *Client) classify(ex *exchange) state {
	res := ex.res

	switch {
	case res.StatusCode == status.Unauthorized.Code:
		if ex.authRetried {
			break
		}
		if _, ok := res.Headers.Get("WWW-Authenticate"); !ok {
			break
		}
		if _, ok := ex.req.credentials(); ok {
			return stateRetryAuth
		}

	case isFollowedRedirect(res.StatusCode) && ex.req.FollowRedirects:
		if location, ok := res.Headers.Get("Location"); ok && location != "" {
			return stateRedirect
		}
		c.logger.Debug("redirect without location", zap.Int("status", res.StatusCode))
	}

	return stateDone
}

func (c *Client) retryAuth(ex *exchange) state {
	value, _ := ex.res.Headers.Get("WWW-Authenticate")

	ch, err := auth.ParseChallenge(value)
	if err != nil {
		return ex.fail(kindAuth, err)
	}

	creds, _ := ex.req.credentials()
	authorization, err := c.negotiator.Authorize(ch, creds, ex.req.Method, ex.req.Target.FullPath(ex.req.Method))
	if err != nil {
		return ex.fail(kindAuth, err)
	}

	ex.authorization = authorization
	ex.authRetried = true

	c.observer.AuthRetried(string(ch.Scheme))
	c.logger.Info("retrying with credentials",
		zap.String("scheme", string(ch.Scheme)),
		zap.String("realm", ch.Realm),
	)
	return stateInit
}

func (c *Client) redirect(ex *exchange) state {
	location, _ := ex.res.Headers.Get("Location")

	ref, err := uri.Parse(strings.TrimSpace(location))
	if err != nil {
		return ex.fail(kindRedirect, errors.Wrapf(err, "parsing location %q", location))
	}

	next, err := uri.Resolve(ex.req.Target, ref)
	if err != nil {
		return ex.fail(kindRedirect, errors.Wrap(err, "resolving location"))
	}

	if ex.redirects >= c.opts.Redirect.Max {
		return ex.fail(kindRedirect, &RedirectLoopError{Hops: ex.redirects, Last: next})
	}
	ex.redirects++

	c.observer.Redirected(ex.res.StatusCode)
	c.logger.Info("following redirect",
		zap.Int("status", ex.res.StatusCode),
		zap.String("from", redact(ex.req.Target)),
		zap.String("to", redact(next)),
	)

	ex.req.Target = next
	ex.req.Method = "GET"
	ex.req.Body = nil
	ex.authorization = ""
	ex.authRetried = false

	return stateInit
}

// redact drops userinfo so credentials never reach logs.
func redact(target uri.Target) string {
	target.UserInfo = nil
	return target.String()
}
