package transfer

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"io"

	"github.com/pkg/errors"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}

	ErrNotGzip     = errors.New("gzip magic number not found")
	ErrCorruptGzip = errors.New("gzip member is corrupt")
)

// gzipHeaderLen is the size of a gzip member header without optional fields.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc1952#section-2.3
const gzipHeaderLen = 10

type GzipCoder struct{ alias bool }

func (gc GzipCoder) Coding() Coding {
	if gc.alias {
		return CodingXGzip
	}
	return CodingGzip
}

// Decode inflates a gzip member. A body without the gzip magic was not
// actually compressed and is returned as is.
func (GzipCoder) Decode(b []byte) ([]byte, error) {
	if !bytes.HasPrefix(b, gzipMagic) {
		return b, nil
	}
	return gunzip(b)
}

func (GzipCoder) Encode([]byte) ([]byte, error) { return nil, ErrNotImplemented }

// gunzip reads a gzip member. When the member header cannot be parsed,
// the fixed header is skipped and the rest is inflated as raw deflate data.
func gunzip(b []byte) ([]byte, error) {
	if !bytes.HasPrefix(b, gzipMagic) {
		return nil, ErrNotGzip
	}

	gr, err := gzip.NewReader(bytes.NewReader(b))
	if err == nil {
		out, err := io.ReadAll(gr)
		if err == nil {
			return out, nil
		}
	}

	if len(b) < gzipHeaderLen {
		return nil, errors.Wrap(ErrCorruptGzip, "member too short")
	}
	out, err := inflate(b[gzipHeaderLen:])
	if err != nil {
		return nil, errors.Wrapf(ErrCorruptGzip, "inflating payload: %v", err)
	}
	return out, nil
}

type DeflateCoder struct{}

func (DeflateCoder) Coding() Coding { return CodingDeflate }

// Decode tries zlib framing first, then raw deflate, then gzip.
func (DeflateCoder) Decode(b []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(b))
	if err == nil {
		out, err := io.ReadAll(zr)
		if err == nil {
			return out, nil
		}
	}

	if out, err := inflate(b); err == nil {
		return out, nil
	}

	out, err := gunzip(b)
	if err != nil {
		return nil, errors.Wrap(err, "no deflate variant matched")
	}
	return out, nil
}

func (DeflateCoder) Encode([]byte) ([]byte, error) { return nil, ErrNotImplemented }

func inflate(b []byte) ([]byte, error) {
	fr := flate.NewReader(bytes.NewReader(b))
	defer fr.Close()

	out, err := io.ReadAll(fr)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 && len(b) > 0 {
		return nil, errors.New("inflated to nothing")
	}
	return out, nil
}

// CompressCoder stands for LZW "compress". Bodies pass through undecoded.
type CompressCoder struct{}

func (CompressCoder) Coding() Coding                  { return CodingCompress }
func (CompressCoder) Decode(b []byte) ([]byte, error) { return b, nil }
func (CompressCoder) Encode([]byte) ([]byte, error)   { return nil, ErrNotImplemented }

type IdentityCoder struct{}

func (IdentityCoder) Coding() Coding                  { return CodingIdentity }
func (IdentityCoder) Decode(b []byte) ([]byte, error) { return b, nil }
func (IdentityCoder) Encode(b []byte) ([]byte, error) { return b, nil }
