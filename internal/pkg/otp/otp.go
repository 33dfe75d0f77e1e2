package otp

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math"
)

// Generator produces one-time codes.
type Generator interface {
	Generate() (string, error)
}

// Numeric generates fixed-length decimal codes from a cryptographic
// random source. Codes are zero-padded, so "0042" is a valid 4-digit code.
type Numeric struct {
	digits int
}

// NewNumeric creates a generator for codes of the given length.
// Lengths outside [4, 10] are clamped to that range.
func NewNumeric(digits int) *Numeric {
	if digits < 4 {
		digits = 4
	}
	if digits > 10 {
		digits = 10
	}

	return &Numeric{digits: digits}
}

// Generate returns a new random code.
func (n *Numeric) Generate() (string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}

	mod := uint64(math.Pow10(n.digits))
	v := binary.BigEndian.Uint64(b[:]) % mod

	return fmt.Sprintf("%0*d", n.digits, v), nil
}
