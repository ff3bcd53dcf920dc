// Package multipart builds multipart/form-data request bodies.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc7578
package multipart

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"httpwire/application/util/rule"

	"github.com/pkg/errors"
)

const DefaultTransferEncoding = "binary"

// FileNotFoundError is returned when registering a file that does not exist.
type FileNotFoundError struct {
	Path  string
	cause error
}

func (e *FileNotFoundError) Error() string {
	return "file not found: " + e.Path
}

func (e *FileNotFoundError) Cause() error  { return e.cause }
func (e *FileNotFoundError) Unwrap() error { return e.cause }

type fieldKind int

const (
	kindValue fieldKind = iota
	kindFile
	kindNested
)

type field struct {
	name string
	kind fieldKind

	value string

	path        string
	contentType string
	encoding    string

	nested *Form
}

// Form is an ordered set of named parts. Setting an existing name replaces
// the part in place.
type Form struct {
	boundary string
	fields   []field
}

// NewForm creates a form with a random boundary.
func NewForm() (*Form, error) {
	return NewFormFrom(rand.Reader)
}

// NewFormFrom creates a form whose boundary is drawn from source.
func NewFormFrom(source io.Reader) (*Form, error) {
	b := make([]byte, 12)
	if _, err := io.ReadFull(source, b); err != nil {
		return nil, errors.Wrap(err, "generating boundary")
	}
	return NewFormWithBoundary(hex.EncodeToString(b)), nil
}

func NewFormWithBoundary(boundary string) *Form {
	return &Form{boundary: boundary}
}

func (f *Form) Boundary() string { return f.boundary }

func (f *Form) Len() int { return len(f.fields) }

func (f *Form) put(fd field) {
	for i := range f.fields {
		if f.fields[i].name == fd.name {
			f.fields[i] = fd
			return
		}
	}
	f.fields = append(f.fields, fd)
}

func (f *Form) SetField(name, value string) {
	f.put(field{name: name, kind: kindValue, value: value})
}

// SetFileField registers the file at path. The file is read by [Form.Compile].
// An empty encoding means [DefaultTransferEncoding].
func (f *Form) SetFileField(name, path, contentType, encoding string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &FileNotFoundError{Path: path, cause: err}
	}
	if info.IsDir() {
		return &FileNotFoundError{Path: path, cause: errors.New("is a directory")}
	}

	if encoding == "" {
		encoding = DefaultTransferEncoding
	}

	f.put(field{
		name:        name,
		kind:        kindFile,
		path:        path,
		contentType: contentType,
		encoding:    encoding,
	})
	return nil
}

// SetNested embeds another form. Its parts are written with the boundary of the enclosing form.
func (f *Form) SetNested(name string, nested *Form) {
	f.put(field{name: name, kind: kindNested, nested: nested})
}

// ContentType returns the value of the Content-Type field announcing this form.
func (f *Form) ContentType(nested bool) string {
	subtype := "form-data"
	if nested {
		subtype = "mixed"
	}
	return "multipart/" + subtype + "; boundary=" + f.boundary
}

// Compile returns the encoded body.
func (f *Form) Compile() ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	delimiter := []byte("--" + f.boundary)

	if err := f.compileParts(buf, delimiter, false); err != nil {
		return nil, err
	}

	buf.Write(delimiter)
	buf.WriteString("--")
	buf.Write(rule.CRLF)

	return buf.Bytes(), nil
}

// compileParts writes every part preceded by delimiter.
// A nested form leaves out the delimiter of its first part since the enclosing form already wrote one.
func (f *Form) compileParts(buf *bytes.Buffer, delimiter []byte, nested bool) error {
	for idx, fd := range f.fields {
		if !nested || idx > 0 {
			buf.Write(delimiter)
			buf.Write(rule.CRLF)
		}

		switch fd.kind {
		case kindNested:
			if err := fd.nested.compileParts(buf, delimiter, true); err != nil {
				return errors.Wrapf(err, "compiling nested form %q", fd.name)
			}

		case kindFile:
			content, err := os.ReadFile(fd.path)
			if err != nil {
				return errors.Wrapf(err, "reading file of field %q", fd.name)
			}

			disposition := "form-data; name=" + quote(fd.name)
			if nested {
				disposition = fd.contentType
				if disposition == "" {
					disposition = "attachment"
				}
			}
			disposition += "; filename=" + quote(filepath.Base(fd.path))

			writeHeader(buf, "Content-Disposition", disposition)
			if fd.contentType != "" {
				writeHeader(buf, "Content-Type", fd.contentType)
			}
			writeHeader(buf, "Content-Transfer-Encoding", fd.encoding)
			buf.Write(rule.CRLF)
			buf.Write(content)
			buf.Write(rule.CRLF)

		case kindValue:
			writeHeader(buf, "Content-Disposition", "form-data; name="+quote(fd.name))
			buf.Write(rule.CRLF)
			buf.WriteString(fd.value)
			buf.Write(rule.CRLF)
		}
	}

	return nil
}

func writeHeader(buf *bytes.Buffer, name, value string) {
	buf.WriteString(name)
	buf.WriteString(": ")
	buf.WriteString(value)
	buf.Write(rule.CRLF)
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func quote(s string) string {
	return `"` + quoteEscaper.Replace(s) + `"`
}
