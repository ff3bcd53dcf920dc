package iolib

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
)

// DefaultChunkSize is the size of a single read in [ReadUntilClose].
const DefaultChunkSize = 1024

func WriteFull(w io.Writer, buf []byte) (uint, error) {
	total := uint(0)
	for total < uint(len(buf)) {
		n, err := w.Write(buf[total:])
		total += uint(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// ReadUntilClose reads r in chunks of chunkSize bytes until the peer closes the stream.
// Bytes read before a failure are returned along with the error.
func ReadUntilClose(r io.Reader, chunkSize int) ([]byte, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	buf := bytes.NewBuffer(nil)
	chunk := make([]byte, chunkSize)
	for {
		n, err := r.Read(chunk)
		buf.Write(chunk[:n])
		if err != nil {
			if errors.Is(err, io.EOF) {
				return buf.Bytes(), nil
			}
			return buf.Bytes(), errors.Wrap(err, "reading chunk")
		}
	}
}
