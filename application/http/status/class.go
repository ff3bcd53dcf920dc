package status

// Family returns the N00 code of the class code belongs to.
func Family(code int) int { return code / 100 * 100 }

// IsError reports whether code should be surfaced as an error text.
// Only 200 and 304 count as plain success.
func IsError(code int) bool {
	return code != OK.Code && code != NotModified.Code
}

// Lookup returns the registered status for code, falling back to its family.
func Lookup(code int) Status {
	if s, ok := FromCode(code); ok {
		return s
	}

	s, _ := FromCode(Family(code))
	return Status{Code: code, ReasonPhrase: s.ReasonPhrase}
}

// unknownPhrase is reported for codes outside every registered family.
const unknownPhrase = "Unknown Status"

// ErrorText returns the error text of a response.
// It is empty for successes. Otherwise the reason phrase sent by the server wins,
// then the registered phrase of the code or of its family.
func ErrorText(code int, reason string) string {
	if !IsError(code) {
		return ""
	}
	if reason != "" {
		return reason
	}
	if phrase := Lookup(code).ReasonPhrase; phrase != "" {
		return phrase
	}
	return unknownPhrase
}
