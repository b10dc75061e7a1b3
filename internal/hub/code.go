package hub

import (
	"crypto/rand"
	"math/big"
)

// CodeGenerator draws one candidate room code. Uniqueness is checked by the
// registry, not the generator.
type CodeGenerator func() (string, error)

// NumericCodes draws fixed-width decimal codes uniformly, e.g. "042917".
func NumericCodes(digits int) CodeGenerator {
	const charset = "0123456789"
	if digits <= 0 {
		digits = 6
	}

	return func() (string, error) {
		code := make([]byte, digits)
		for i := range code {
			num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
			if err != nil {
				return "", err
			}
			code[i] = charset[num.Int64()]
		}
		return string(code), nil
	}
}
