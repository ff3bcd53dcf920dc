// Package domain maps host names to addresses before dialing.
package domain

import (
	"context"
	"net/netip"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

var ErrDomainNotFound = errors.New("domain not found")

type Lookuper interface {
	LookupHost(ctx context.Context, host string) (addrs []netip.Addr, err error)
}

// MapLookuper serves fixed entries, like a hosts file. Names are case-insensitive.
type MapLookuper struct {
	mu  sync.RWMutex
	set map[string][]netip.Addr
}

var _ Lookuper = (*MapLookuper)(nil)

func NewMapLookuper(set map[string][]netip.Addr) *MapLookuper {
	m := &MapLookuper{set: make(map[string][]netip.Addr, len(set))}
	for host, addrs := range set {
		m.Set(host, addrs...)
	}
	return m
}

func (m *MapLookuper) LookupHost(_ context.Context, host string) ([]netip.Addr, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	addrs, ok := m.set[strings.ToLower(host)]
	if !ok {
		return nil, errors.Wrap(ErrDomainNotFound, host)
	}
	return append([]netip.Addr(nil), addrs...), nil
}

func (m *MapLookuper) Set(host string, addrs ...netip.Addr) {
	if len(addrs) == 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.set[strings.ToLower(host)] = append([]netip.Addr(nil), addrs...)
}

func (m *MapLookuper) Del(host string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.set, strings.ToLower(host))
}

// ParseEntries reads entries of the form host=addr. Repeated hosts collect every address.
func ParseEntries(entries []string) (*MapLookuper, error) {
	m := NewMapLookuper(nil)
	for _, entry := range entries {
		host, raw, found := strings.Cut(entry, "=")
		host = strings.TrimSpace(host)
		if !found || host == "" {
			return nil, errors.Errorf("entry %q is not host=addr", entry)
		}

		addr, err := netip.ParseAddr(strings.TrimSpace(raw))
		if err != nil {
			return nil, errors.Wrapf(err, "address of %q", host)
		}

		existing, _ := m.LookupHost(context.Background(), host)
		m.Set(host, append(existing, addr)...)
	}
	return m, nil
}
