package http

import (
	"bytes"
	"io"

	"httpwire/application/util/rule"
	iolib "httpwire/lib/io"

	"github.com/pkg/errors"
)

type RequestHead struct {
	Method  string
	Target  string
	Version Version
	Headers Headers
}

// Text renders the request line and header block, blank line included.
func (rh RequestHead) Text() []byte {
	buf := bytes.NewBuffer(nil)

	buf.WriteString(rh.Method)
	buf.WriteByte(rule.SP)
	buf.WriteString(rh.Target)
	buf.WriteByte(rule.SP)
	buf.Write(rh.Version.Text())
	buf.Write(rule.CRLF)

	for _, field := range rh.Headers.fields {
		buf.Write(field.Text())
		buf.Write(rule.CRLF)
	}
	buf.Write(rule.CRLF)

	return buf.Bytes()
}

// EncodeRequest returns the full wire form of a request.
// The body is appended as is, no trailing line terminator is added.
func EncodeRequest(head RequestHead, body []byte) []byte {
	text := head.Text()
	out := make([]byte, 0, len(text)+len(body))
	out = append(out, text...)
	return append(out, body...)
}

type RequestEncoder struct{ w io.Writer }

func NewRequestEncoder(w io.Writer) *RequestEncoder {
	return &RequestEncoder{w: w}
}

// Encode writes head and body in a single write.
func (re *RequestEncoder) Encode(head RequestHead, body []byte) error {
	if _, err := iolib.WriteFull(re.w, EncodeRequest(head, body)); err != nil {
		return errors.Wrap(err, "writing request")
	}
	return nil
}
