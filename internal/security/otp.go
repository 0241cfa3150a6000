package security

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
)

// GenerateOTP returns a uniformly random numeric code of the given length,
// zero padded.
func GenerateOTP(digits int) (string, error) {
	if digits <= 0 || digits > 9 {
		return "", fmt.Errorf("unsupported otp length %d", digits)
	}

	max := big.NewInt(1)
	for i := 0; i < digits; i++ {
		max.Mul(max, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}

	return fmt.Sprintf("%0*d", digits, n.Int64()), nil
}

// EqualCodes compares two short codes in constant time.
func EqualCodes(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
