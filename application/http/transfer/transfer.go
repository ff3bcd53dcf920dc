// Package transfer decodes transfer and content codings of a response body.
package transfer

import (
	"strings"

	"httpwire/application/util/rule"

	"github.com/pkg/errors"
)

type Coding string

const (
	CodingChunked  Coding = "chunked"
	CodingGzip     Coding = "gzip"
	CodingXGzip    Coding = "x-gzip"
	CodingDeflate  Coding = "deflate"
	CodingCompress Coding = "compress"
	CodingIdentity Coding = "identity"
)

// Mode selects how decoding failures are handled.
type Mode int

const (
	// ModeLenient keeps the undecoded bytes when a coding fails.
	ModeLenient Mode = iota
	// ModeStrict returns the failure.
	ModeStrict
)

func (m Mode) String() string {
	if m == ModeStrict {
		return "strict"
	}
	return "lenient"
}

// ParseMode accepts "strict" and "lenient". Empty means lenient.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "lenient":
		return ModeLenient, nil
	case "strict":
		return ModeStrict, nil
	}
	return ModeLenient, errors.Errorf("unknown decode mode: %q", s)
}

var (
	ErrUnsupportedCoding = errors.New("coding is unsupported")
	ErrNotImplemented    = errors.New("coding is not implemented")
)

type Coder interface {
	Coding() Coding
	Decode(b []byte) ([]byte, error)
	Encode(b []byte) ([]byte, error)
}

// FallbackFunc is notified when a coding failed in lenient mode.
type FallbackFunc func(coding Coding, err error)

// CodingApplier decodes a body through a list of codings.
type CodingApplier struct {
	coders     map[Coding]Coder
	mode       Mode
	onFallback FallbackFunc
}

func NewCodingApplier(mode Mode, customs ...Coder) *CodingApplier {
	ca := &CodingApplier{mode: mode}
	ca.coders = map[Coding]Coder{
		CodingChunked:  NewChunkedCoder(mode),
		CodingGzip:     GzipCoder{},
		CodingXGzip:    GzipCoder{alias: true},
		CodingDeflate:  DeflateCoder{},
		CodingCompress: CompressCoder{},
		CodingIdentity: IdentityCoder{},
	}

	for _, coder := range customs {
		ca.coders[coder.Coding()] = coder
	}

	return ca
}

func (ca *CodingApplier) Mode() Mode { return ca.mode }

func (ca *CodingApplier) SetOnFallback(fn FallbackFunc) { ca.onFallback = fn }

// Decode undoes codings in reverse order of application.
func (ca *CodingApplier) Decode(b []byte, codings []Coding) ([]byte, error) {
	for idx := len(codings) - 1; idx >= 0; idx-- {
		coding := codings[idx]

		coder, ok := ca.coders[coding]
		if !ok {
			if err := ca.fail(coding, ErrUnsupportedCoding); err != nil {
				return nil, err
			}
			continue
		}

		decoded, err := coder.Decode(b)
		if err != nil {
			if err := ca.fail(coding, err); err != nil {
				return nil, err
			}
			continue
		}
		b = decoded
	}

	return b, nil
}

func (ca *CodingApplier) fail(coding Coding, err error) error {
	if ca.mode == ModeStrict {
		return errors.Wrapf(err, "decoding %s", coding)
	}
	if ca.onFallback != nil {
		ca.onFallback(coding, err)
	}
	return nil
}

// Encode applies a single coding to an outgoing body.
func (ca *CodingApplier) Encode(b []byte, coding Coding) ([]byte, error) {
	coder, ok := ca.coders[coding]
	if !ok {
		return nil, ErrUnsupportedCoding
	}
	return coder.Encode(b)
}

// ParseCodings reads a Transfer-Encoding or Content-Encoding field value.
// Parameters are dropped and names are lowercased.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-8.4
func ParseCodings(value string) []Coding {
	members := rule.SplitList(value)
	codings := make([]Coding, 0, len(members))
	for _, m := range members {
		name, _, _ := strings.Cut(m, ";")
		name = strings.ToLower(strings.TrimFunc(name, rule.IsWhitespace))
		if name == "" {
			continue
		}
		codings = append(codings, Coding(name))
	}
	return codings
}
