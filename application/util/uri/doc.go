// Package uri parses and resolves request targets of the http and https schemes.
//
// Components are kept as they appear on the wire: nothing is unescaped, so a
// target written back into a request line is byte-for-byte what the caller gave.
//
// Reference:
//
// - https://datatracker.ietf.org/doc/html/rfc3986
//
// - https://datatracker.ietf.org/doc/html/rfc9110#section-4.2
package uri
