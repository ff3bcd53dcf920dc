// Package test provides a scripted HTTP proxy for tests of code that dials through one.
package test

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"strings"
	"sync"

	"httpwire/application/http"
	"httpwire/application/util/rule"
	bytesutil "httpwire/util/bytes"

	"github.com/pkg/errors"
)

type ProxyOptions struct {
	// Reply is the status line answering CONNECT. Empty means 200.
	Reply string

	// DropTunnels closes a tunnel right after a successful reply.
	DropTunnels bool
}

// Proxy listens on loopback and relays CONNECT tunnels and absolute-form requests.
type Proxy struct {
	ln   net.Listener
	opts ProxyOptions

	wg sync.WaitGroup

	mu    sync.Mutex
	heads []string
}

func NewProxy(opts ProxyOptions) (*Proxy, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, errors.Wrap(err, "listening")
	}

	if opts.Reply == "" {
		opts.Reply = "HTTP/1.1 200 Connection established"
	}

	p := &Proxy{ln: ln, opts: opts}
	p.wg.Add(1)
	go p.acceptLoop()

	return p, nil
}

func (p *Proxy) Addr() string { return p.ln.Addr().String() }

func (p *Proxy) Host() string { return p.ln.Addr().(*net.TCPAddr).IP.String() }

func (p *Proxy) Port() uint16 { return uint16(p.ln.Addr().(*net.TCPAddr).Port) }

// Heads returns every request head received, in order.
func (p *Proxy) Heads() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]string, len(p.heads))
	copy(out, p.heads)
	return out
}

// Close stops listening and waits for every relay to end.
func (p *Proxy) Close() error {
	err := p.ln.Close()
	p.wg.Wait()
	return err
}

func (p *Proxy) acceptLoop() {
	defer p.wg.Done()
	for {
		conn, err := p.ln.Accept()
		if err != nil {
			return
		}

		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			defer conn.Close()
			p.handle(conn)
		}()
	}
}

func (p *Proxy) handle(conn net.Conn) {
	br := bufio.NewReader(conn)
	head, err := bytesutil.ReadUntil(br, rule.HeaderTerminator)
	if err != nil {
		return
	}

	p.mu.Lock()
	p.heads = append(p.heads, string(head))
	p.mu.Unlock()

	requestLine, _, _ := bytes.Cut(head, rule.CRLF)
	parts := strings.Split(string(requestLine), " ")
	if len(parts) != 3 {
		return
	}

	method, target := parts[0], parts[1]
	if method == "CONNECT" {
		p.tunnel(conn, br, target)
		return
	}

	p.forward(conn, br, head, target)
}

func (p *Proxy) tunnel(conn net.Conn, br *bufio.Reader, authority string) {
	if _, err := io.WriteString(conn, p.opts.Reply+"\r\n\r\n"); err != nil {
		return
	}

	sl, err := http.ParseStatusLine(p.opts.Reply)
	if err != nil || sl.StatusCode != 200 || p.opts.DropTunnels {
		return
	}

	upstream, err := net.Dial("tcp", authority)
	if err != nil {
		return
	}
	relay(conn, br, upstream)
}

// forward sends an absolute-form request on to its origin as is.
func (p *Proxy) forward(conn net.Conn, br *bufio.Reader, head []byte, target string) {
	rest, found := strings.CutPrefix(target, "http://")
	if !found {
		io.WriteString(conn, "HTTP/1.1 400 Bad Request\r\nConnection: close\r\n\r\n")
		return
	}
	authority, _, _ := strings.Cut(rest, "/")

	upstream, err := net.Dial("tcp", authority)
	if err != nil {
		io.WriteString(conn, "HTTP/1.1 502 Bad Gateway\r\nConnection: close\r\n\r\n")
		return
	}
	if _, err := upstream.Write(head); err != nil {
		upstream.Close()
		return
	}
	relay(conn, br, upstream)
}

// relay copies both ways until either side is done, then closes both.
func relay(client net.Conn, br *bufio.Reader, upstream net.Conn) {
	done := make(chan struct{}, 2)
	go func() {
		io.Copy(upstream, br)
		done <- struct{}{}
	}()
	go func() {
		io.Copy(client, upstream)
		done <- struct{}{}
	}()

	<-done
	client.Close()
	upstream.Close()
	<-done
}
