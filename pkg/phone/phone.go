// Package phone normalizes Brazilian phone numbers.
package phone

import (
	"errors"
	"strings"
	"unicode"
)

// SuffixLength is how many trailing digits identify a sender across formatting variants.
const SuffixLength = 8

const countryCode = "55"

var ErrInvalid = errors.New("invalid phone number")

// Digits strips everything but ASCII digits.
func Digits(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if r < unicode.MaxASCII && unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Normalize returns the number as country code + area code + subscriber digits.
// Local inputs (10 or 11 digits) are prefixed with 55.
func Normalize(value string) (string, error) {
	digits := strings.TrimLeft(Digits(value), "0")
	switch {
	case len(digits) == 10 || len(digits) == 11:
		return countryCode + digits, nil
	case (len(digits) == 12 || len(digits) == 13) && strings.HasPrefix(digits, countryCode):
		return digits, nil
	default:
		return "", ErrInvalid
	}
}

// Suffix returns the trailing SuffixLength digits of value, or all digits when shorter.
func Suffix(value string) string {
	digits := Digits(value)
	if len(digits) <= SuffixLength {
		return digits
	}
	return digits[len(digits)-SuffixLength:]
}
