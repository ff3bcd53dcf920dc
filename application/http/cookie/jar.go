package cookie

import (
	"strings"
	"sync"

	"httpwire/application/util/uri"

	"github.com/benbjohnson/clock"
)

// Jar holds cookies by name, last write wins. Order of first insertion is kept.
type Jar struct {
	clock clock.Clock

	mu      sync.Mutex
	cookies []Cookie
}

// NewJar creates an empty jar. A nil clk means the wall clock.
func NewJar(clk clock.Clock) *Jar {
	if clk == nil {
		clk = clock.New()
	}
	return &Jar{clock: clk}
}

// SetFromHeader stores the cookie of a Set-Cookie value received for target.
// Cookies not valid for target are dropped and reported with false.
func (j *Jar) SetFromHeader(line string, target uri.Target, fullPath string) (bool, error) {
	now := j.clock.Now()

	c, err := Parse(line, now)
	if err != nil {
		return false, err
	}

	if !c.ValidFor(target, fullPath, now) {
		return false, nil
	}

	j.Add(c)
	return true, nil
}

// Add stores cookies without checking them. They are checked when sent.
func (j *Jar) Add(cookies ...Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, c := range cookies {
		j.put(c)
	}
}

func (j *Jar) put(c Cookie) {
	for i := range j.cookies {
		if j.cookies[i].Name == c.Name {
			j.cookies[i] = c
			return
		}
	}
	j.cookies = append(j.cookies, c)
}

// Header returns the value of the Cookie field for target.
// ok is false when no cookie applies.
func (j *Jar) Header(target uri.Target, fullPath string) (value string, ok bool) {
	now := j.clock.Now()

	j.mu.Lock()
	defer j.mu.Unlock()

	pairs := make([]string, 0, len(j.cookies))
	for _, c := range j.cookies {
		if !c.ValidFor(target, fullPath, now) {
			continue
		}
		pairs = append(pairs, c.String())
	}

	if len(pairs) == 0 {
		return "", false
	}
	return strings.Join(pairs, "; "), true
}

// Cookies returns a copy of every stored cookie, expired ones included.
func (j *Jar) Cookies() []Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]Cookie, len(j.cookies))
	copy(out, j.cookies)
	return out
}

func (j *Jar) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()

	return len(j.cookies)
}
