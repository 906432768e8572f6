package loader

import (
	"strings"
	"unicode"
)

// citationsMarker starts the trailing boilerplate dropped by Clean.
const citationsMarker = "Citations:"

// Clean prepares extracted text for sectioning: everything from the first
// "Citations:" on is dropped, newlines and tabs become spaces and other
// control characters are removed.
func Clean(text string) string {
	text, _, _ = strings.Cut(text, citationsMarker)
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return ' '
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, text)
}
