package http

import (
	"bytes"
	"strconv"
	"strings"

	"httpwire/application/util/rule"

	"github.com/pkg/errors"
)

var (
	ErrEmptyResponse       = errors.New("empty response")
	ErrMalformedStatusLine = errors.New("status line is malformed")
)

type StatusLine struct {
	Version      Version
	StatusCode   int
	ReasonPhrase string
}

// ParseStatusLine parses e.g. "HTTP/1.1 404 Not Found".
// The reason phrase may be absent.
func ParseStatusLine(line string) (StatusLine, error) {
	malformed := &ProtocolError{Line: line, cause: ErrMalformedStatusLine}

	version, rest, found := strings.Cut(line, " ")
	if !found {
		return StatusLine{}, malformed
	}

	ver, err := ParseVersion([]byte(version))
	if err != nil {
		return StatusLine{}, malformed
	}

	code, reason, _ := strings.Cut(rest, " ")
	if len(code) != 3 {
		return StatusLine{}, malformed
	}
	n, err := strconv.Atoi(code)
	if err != nil || n < 100 || n > 599 {
		return StatusLine{}, malformed
	}

	return StatusLine{
		Version:      ver,
		StatusCode:   n,
		ReasonPhrase: strings.TrimSpace(reason),
	}, nil
}

// SplitMessage separates a raw response into its head and body.
// Interim 1xx blocks (other than 101) preceding the final response are dropped.
// A response without a blank line is treated as head only.
func SplitMessage(raw []byte) (head, body []byte, err error) {
	for isInterim(raw) {
		idx := bytes.Index(raw, rule.HeaderTerminator)
		if idx < 0 {
			break
		}
		raw = raw[idx+len(rule.HeaderTerminator):]
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil, &ProtocolError{cause: ErrEmptyResponse}
	}

	idx := bytes.Index(raw, rule.HeaderTerminator)
	if idx < 0 {
		return bytes.TrimRight(raw, "\r\n"), nil, nil
	}

	return raw[:idx], raw[idx+len(rule.HeaderTerminator):], nil
}

func isInterim(raw []byte) bool {
	line, _, _ := bytes.Cut(raw, rule.CRLF)
	sl, err := ParseStatusLine(string(line))
	if err != nil {
		return false
	}
	return sl.StatusCode < 200 && sl.StatusCode != 101
}

type ResponseHead struct {
	StatusLine
	// Fields holds every header line in wire order, folded lines joined.
	Fields []Field
}

// ParseResponseHead parses the status line and header block.
func ParseResponseHead(head []byte) (ResponseHead, error) {
	lines := strings.Split(string(head), "\r\n")

	sl, err := ParseStatusLine(strings.TrimSpace(lines[0]))
	if err != nil {
		return ResponseHead{}, err
	}

	return ResponseHead{StatusLine: sl, Fields: parseFieldLines(lines[1:])}, nil
}

type fieldState int

const (
	awaitingField fieldState = iota
	inField
)

// fieldParser joins obsolete line folding into the field it continues.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-5.2
type fieldParser struct {
	state   fieldState
	current Field
	fields  []Field
}

func (fp *fieldParser) flush() {
	if fp.state == inField {
		fp.fields = append(fp.fields, fp.current)
	}
	fp.state = awaitingField
	fp.current = Field{}
}

func (fp *fieldParser) feed(line string) {
	if rule.StartsFieldLine(line) {
		fp.flush()
		name, value, _ := strings.Cut(line, ":")
		fp.current = Field{Name: name, Value: strings.TrimSpace(value)}
		fp.state = inField
		return
	}

	switch fp.state {
	case inField:
		if fp.current.Value == "" {
			fp.current.Value = line
		} else {
			fp.current.Value += " " + line
		}
	case awaitingField:
		// Continuation with nothing to continue.
	}
}

func parseFieldLines(lines []string) []Field {
	var fp fieldParser
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		fp.feed(line)
	}
	fp.flush()

	return fp.fields
}
