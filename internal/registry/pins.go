package registry

import (
	"crypto/rand"
	"math/big"
)

const digits = "0123456789"

// generatePin draws a fixed-length numeric code. Uniqueness against live
// lobbies is the caller's job (rejection sampling in the create loop).
func generatePin(length int) (string, error) {
	pin := make([]byte, length)
	for i := range pin {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", err
		}
		pin[i] = digits[n.Int64()]
	}
	return string(pin), nil
}
