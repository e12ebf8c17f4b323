// Package token generates opaque tokens and identifiers.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// tokenBytes is the entropy of an opaque session or reset token. 32 bytes
// gives 256 bits, making collisions and guessing negligible.
const tokenBytes = 32

// New returns a hex-encoded opaque token with 256 bits of cryptographically
// secure randomness.
func New() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// NewID returns a random UUID string for record identifiers.
func NewID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return id.String(), nil
}
