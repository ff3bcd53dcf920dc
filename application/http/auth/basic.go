package auth

import "encoding/base64"

// Basic returns the value of the Authorization field for the Basic scheme.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc7617#section-2
func Basic(creds Credentials) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(creds.Username+":"+creds.Password))
}
