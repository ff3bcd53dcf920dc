package bytesutil

import (
	"bufio"
	"bytes"
	"io"
)

// ReadUntil reads from r until delim. The output will include delim.
func ReadUntil(r *bufio.Reader, delim []byte) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	for {
		b, err := r.ReadBytes((delim[len(delim)-1]))
		if err != nil {
			if err == io.EOF {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}

		buf.Write(b)

		if bytes.HasSuffix(buf.Bytes(), delim) {
			return buf.Bytes(), nil
		}
	}
}

// ReadLine reads a CRLF terminated line and cuts the terminator.
func ReadLine(r *bufio.Reader) ([]byte, error) {
	line, err := ReadUntil(r, []byte{'\r', '\n'})
	if err != nil {
		return nil, err
	}
	return line[:len(line)-2], nil
}
