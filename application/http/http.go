package http

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// [Major, Minor]
type Version [2]uint

var (
	Version10 = Version{1, 0}
	Version11 = Version{1, 1}
)

// ParseVersion parses http version text(e.g. "HTTP/1.1") into [Version].
func ParseVersion(b []byte) (Version, error) {
	prefix := []byte("HTTP/")
	if !bytes.HasPrefix(b, prefix) {
		return Version{}, errors.Errorf("http version prefix not found: %s", b)
	}

	return ParseVersionNumber(string(b[len(prefix):]))
}

// ParseVersionNumber parses the bare number form (e.g. "1.1").
func ParseVersionNumber(s string) (Version, error) {
	first, second, found := strings.Cut(s, ".")
	if !found {
		return Version{}, errors.Errorf("dot separator not found on version: %s", s)
	}

	major, err1 := strconv.ParseUint(first, 10, 64)
	minor, err2 := strconv.ParseUint(second, 10, 64)
	if err1 != nil || err2 != nil {
		return Version{}, errors.Errorf("http version is not convertable to int: %s", s)
	}

	return Version{uint(major), uint(minor)}, nil
}

func (ver Version) Text() []byte {
	buf := bytes.NewBuffer(nil)
	buf.WriteString("HTTP/")
	buf.WriteString(ver.Number())
	return buf.Bytes()
}

func (ver Version) Number() string {
	return strconv.FormatUint(uint64(ver[0]), 10) + "." + strconv.FormatUint(uint64(ver[1]), 10)
}

func (ver Version) String() string { return string(ver.Text()) }

type Field struct{ Name, Value string }

func (f Field) Text() []byte {
	buf := bytes.NewBuffer(nil)
	buf.WriteString(f.Name)
	buf.WriteString(": ")
	buf.WriteString(f.Value)
	return buf.Bytes()
}

// Headers keeps fields in insertion order.
// Lookups are case-insensitive while the first spelling of a name is preserved.
// The zero value is an empty collection ready to use.
type Headers struct{ fields []Field }

func NewHeaders(fields ...Field) Headers {
	var h Headers
	for _, f := range fields {
		h.Add(f.Name, f.Value)
	}
	return h
}

func (h *Headers) index(name string) int {
	for i, f := range h.fields {
		if strings.EqualFold(f.Name, name) {
			return i
		}
	}
	return -1
}

func (h *Headers) Get(name string) (value string, ok bool) {
	if i := h.index(name); i >= 0 {
		return h.fields[i].Value, true
	}
	return "", false
}

// Values returns every value stored under name, in order.
func (h *Headers) Values(name string) []string {
	var values []string
	for _, f := range h.fields {
		if strings.EqualFold(f.Name, name) {
			values = append(values, f.Value)
		}
	}
	return values
}

func (h *Headers) Has(name string) bool { return h.index(name) >= 0 }

// Set replaces the value of the first field named name and drops the others.
// A new field is appended when none exists.
func (h *Headers) Set(name, value string) {
	i := h.index(name)
	if i < 0 {
		h.fields = append(h.fields, Field{Name: name, Value: value})
		return
	}

	h.fields[i].Value = value
	kept := h.fields[:i+1]
	for _, f := range h.fields[i+1:] {
		if !strings.EqualFold(f.Name, name) {
			kept = append(kept, f)
		}
	}
	h.fields = kept
}

func (h *Headers) Add(name, value string) {
	h.fields = append(h.fields, Field{Name: name, Value: value})
}

func (h *Headers) Del(name string) {
	kept := h.fields[:0]
	for _, f := range h.fields {
		if !strings.EqualFold(f.Name, name) {
			kept = append(kept, f)
		}
	}
	h.fields = kept
}

func (h *Headers) Len() int { return len(h.fields) }

// Fields returns a copy of the fields in order.
func (h *Headers) Fields() []Field {
	out := make([]Field, len(h.fields))
	copy(out, h.fields)
	return out
}

func (h *Headers) Clone() Headers {
	return Headers{fields: h.Fields()}
}

// ProtocolError reports a response that cannot be read as HTTP/1.x.
type ProtocolError struct {
	Line  string
	cause error
}

func (e *ProtocolError) Error() string {
	if e.Line == "" {
		return "protocol error: " + e.cause.Error()
	}
	return "protocol error: " + e.cause.Error() + ": " + strconv.Quote(e.Line)
}

func (e *ProtocolError) Cause() error  { return e.cause }
func (e *ProtocolError) Unwrap() error { return e.cause }
