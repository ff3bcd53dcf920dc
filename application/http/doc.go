// Package http implements the HTTP/1.1 message layer used by the client engine:
// request head encoding, response head decoding and an ordered,
// case-insensitive header collection.
//
// Reference:
//
// - https://datatracker.ietf.org/doc/html/rfc9110
//
// - https://datatracker.ietf.org/doc/html/rfc9112
package http
