package utils

import "unicode"

// HasControlChars reports whether s contains a control character such as CR,
// LF, tab or NUL
func HasControlChars(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) {
			return true
		}
	}
	return false
}
