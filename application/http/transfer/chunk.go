package transfer

import (
	"bufio"
	"bytes"
	"io"
	"math/big"
	"strconv"

	"httpwire/application/util/rule"
	bytesutil "httpwire/util/bytes"

	"github.com/pkg/errors"
)

type Chunk struct {
	Size uint
	data io.Reader
}

// ChunkedReader converts a chunked message body into a byte stream.
// Chunk extensions and trailer fields are checked for framing and dropped.
// Any framing error is returned as is.
type ChunkedReader struct {
	br       *bufio.Reader
	chunk    *Chunk
	read     uint // reset for each chunk
	crlfDump []byte
}

var _ io.Reader = (*ChunkedReader)(nil)

func NewChunkedReader(r io.Reader) *ChunkedReader {
	return &ChunkedReader{
		br:       bufio.NewReader(r),
		crlfDump: make([]byte, 2),
	}
}

func (cr *ChunkedReader) Read(b []byte) (int, error) {
	if cr.chunk == nil {
		if err := cr.decodeChunk(); err != nil {
			return 0, errors.Wrap(err, "decoding chunk")
		}

		if cr.chunk.Size == 0 {
			// Last chunk.
			if err := cr.skipTrailers(); err != nil {
				return 0, errors.Wrap(err, "decoding trailer")
			}
			return 0, io.EOF
		}
	}

	remain := cr.chunk.Size - cr.read
	if uint(len(b)) > remain {
		b = b[:remain]
	}

	n, err := cr.chunk.data.Read(b)
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return n, errors.Wrap(err, "reading chunk data")
	}

	cr.read += uint(n)

	if cr.read == cr.chunk.Size {
		if _, err := io.ReadFull(cr.chunk.data, cr.crlfDump); err != nil {
			return n, errors.Wrap(err, "reading chunk delimiter")
		}

		if !bytes.Equal(cr.crlfDump, rule.CRLF) {
			return n, errors.New("CRLF delimiter not found")
		}

		cr.chunk = nil
		cr.read = 0
	}

	return n, nil
}

// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-7.1
func (cr *ChunkedReader) decodeChunk() error {
	line, err := bytesutil.ReadLine(cr.br)
	if err != nil {
		return err
	}

	sizeRaw, _, _ := bytes.Cut(line, []byte{';'})
	chunkSize, err := decodeChunkSize(bytes.TrimFunc(sizeRaw, rule.IsWhitespace))
	if err != nil {
		return errors.Wrap(err, "decoding chunk size")
	}

	cr.chunk = &Chunk{
		Size: chunkSize,
		data: cr.br,
	}

	return nil
}

func decodeChunkSize(b []byte) (uint, error) {
	n := big.NewInt(0)

	n, ok := n.SetString(string(b), 16)
	if !ok {
		return 0, errors.Errorf("failed to decode hex: %q", string(b))
	}

	if n.BitLen() > 64 {
		return 0, errors.Errorf("chunk size larger than 64bit: %dbits", n.BitLen())
	}

	size := uint(n.Uint64())
	return size, nil
}

func (cr *ChunkedReader) skipTrailers() error {
	for fields := 0; ; fields++ {
		line, err := bytesutil.ReadLine(cr.br)
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) && fields == 0 {
				// Peer closed right after the last chunk.
				return nil
			}
			return errors.Wrap(err, "reading line")
		}

		if len(line) == 0 {
			// Last field.
			return nil
		}

		if !bytes.Contains(line, []byte{':'}) {
			return errors.Errorf("colon separator not found on trailer: %q", string(line))
		}
	}
}

// decodeChunkedLenient walks the body line by line, treating odd lines as hex sizes
// and even lines as payloads. A payload whose length differs from its size line is dropped.
// Decoding stops at a zero size.
func decodeChunkedLenient(b []byte) []byte {
	out := bytes.NewBuffer(nil)

	size := int64(-1)
	for idx, line := range bytes.Split(b, rule.CRLF) {
		if idx%2 == 0 {
			size = parseLenientSize(line)
		} else if int64(len(line)) == size {
			out.Write(line)
		}

		if size == 0 {
			break
		}
	}

	return out.Bytes()
}

// parseLenientSize returns -1 for anything that is not a hex number.
func parseLenientSize(line []byte) int64 {
	sizeRaw, _, _ := bytes.Cut(line, []byte{';'})
	sizeRaw = bytes.TrimFunc(sizeRaw, rule.IsWhitespace)

	size, err := strconv.ParseInt(string(sizeRaw), 16, 64)
	if err != nil || size < 0 {
		return -1
	}
	return size
}

type ChunkedCoder struct{ mode Mode }

var _ Coder = ChunkedCoder{}

func NewChunkedCoder(mode Mode) ChunkedCoder { return ChunkedCoder{mode: mode} }

func (ChunkedCoder) Coding() Coding { return CodingChunked }

// Decode reads well-formed framing exactly. In lenient mode, broken framing
// is decoded line by line instead.
func (cc ChunkedCoder) Decode(b []byte) ([]byte, error) {
	out, err := io.ReadAll(NewChunkedReader(bytes.NewReader(b)))
	if err == nil {
		return out, nil
	}

	if cc.mode == ModeLenient {
		return decodeChunkedLenient(b), nil
	}
	return nil, errors.Wrap(err, "reading chunked body")
}

func (ChunkedCoder) Encode([]byte) ([]byte, error) { return nil, ErrNotImplemented }
