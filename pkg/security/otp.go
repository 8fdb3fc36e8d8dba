package security

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	minOTPLength = 4
	maxOTPLength = 10
)

// GenerateOTP returns a uniformly random numeric code of the given length.
func GenerateOTP(length int) (string, error) {
	if length < minOTPLength || length > maxOTPLength {
		return "", fmt.Errorf("otp length must be between %d and %d", minOTPLength, maxOTPLength)
	}
	ten := big.NewInt(10)
	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("generate otp: %w", err)
		}
		code[i] = byte('0' + n.Int64())
	}
	return string(code), nil
}
