package signup

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
)

var ten = big.NewInt(10)

// generateOTP returns n uniformly random decimal digits.
func generateOTP(n int) (string, error) {
	b := make([]byte, n)
	for i := range b {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("generate otp: %w", err)
		}
		b[i] = byte('0' + d.Int64())
	}
	return string(b), nil
}

func otpEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
