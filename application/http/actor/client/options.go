package client

import (
	"io"

	"httpwire/application/http/transfer"
)

// MaxRedirects is the default bound on followed redirects.
const MaxRedirects = 20

type Options struct {
	Receive  ReceiveOptions
	Auth     AuthOptions
	Redirect RedirectOptions

	// Observer is notified about every exchange. Nil means no observation.
	Observer Observer
}

type ReceiveOptions struct {
	// DecodeMode selects whether failing codings are errors or pass the bytes through.
	DecodeMode transfer.Mode

	ExtraTransferCoders []transfer.Coder

	// ReadChunkSize is the size of a single read from the connection.
	// Zero means [iolib.DefaultChunkSize].
	ReadChunkSize int
}

type AuthOptions struct {
	// NonceSource feeds Digest client nonces. Nil means crypto/rand.
	NonceSource io.Reader
}

type RedirectOptions struct {
	// Max bounds followed redirects of one request. Zero means [MaxRedirects].
	Max int
}
