package utils

import (
	"crypto/sha256"
	"fmt"
	"regexp"
)

// Regex to remove non-digit characters
var digitsOnlyRegex = regexp.MustCompile(`[^0-9]`)

// NormalizePhoneNumber strips every non-digit character. Two numbers are the
// same contact iff their normalized forms are equal, so "+234-801-2345" and
// "2348012345" collide.
func NormalizePhoneNumber(phone string) string {
	return digitsOnlyRegex.ReplaceAllString(phone, "")
}

// HasDigits reports whether the phone contains at least one digit
func HasDigits(phone string) bool {
	return NormalizePhoneNumber(phone) != ""
}

// SamePhone compares two raw phone strings by their digits
func SamePhone(a, b string) bool {
	return NormalizePhoneNumber(a) == NormalizePhoneNumber(b)
}

// HashPhoneForLog returns a short, stable hash of the normalized phone so logs
// can correlate submissions without carrying the number itself.
func HashPhoneForLog(phone string) string {
	sum := sha256.Sum256([]byte(NormalizePhoneNumber(phone)))
	return fmt.Sprintf("%x", sum)[:12]
}
