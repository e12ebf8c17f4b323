// Package password derives and verifies portal password hashes.
//
// Records are self-describing: the salt and iteration count are stored next
// to the hash, so raising the cost factor later never invalidates existing
// credentials.
package password

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// DefaultIterations is the PBKDF2 cost for newly derived hashes.
	DefaultIterations = 210000

	saltBytes = 16
	keyBytes  = 32
)

// Record holds one derived password hash with its derivation parameters.
// Hash and Salt are hex-encoded.
type Record struct {
	Hash       string
	Salt       string
	Iterations int
}

// Hash derives a record for password with a fresh random salt and the
// default iteration count.
func Hash(password string) (Record, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return Record{}, fmt.Errorf("read salt bytes: %w", err)
	}
	return HashWith(password, hex.EncodeToString(salt), DefaultIterations), nil
}

// HashWith derives a record using an explicit hex salt and iteration count.
// The salt string is used as the raw PBKDF2 salt input.
func HashWith(password, salt string, iterations int) Record {
	key := pbkdf2.Key([]byte(password), []byte(salt), iterations, keyBytes, sha256.New)
	return Record{
		Hash:       hex.EncodeToString(key),
		Salt:       salt,
		Iterations: iterations,
	}
}

// Verify reports whether password matches the stored record. The comparison
// is constant-time over the derived key bytes.
func Verify(password string, record Record) bool {
	stored, err := hex.DecodeString(record.Hash)
	if err != nil || len(stored) == 0 {
		return false
	}
	computed := pbkdf2.Key([]byte(password), []byte(record.Salt), record.Iterations, len(stored), sha256.New)
	return subtle.ConstantTimeCompare(stored, computed) == 1
}
