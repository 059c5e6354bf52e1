// Package credentials provides one-way password hashing and verification.
package credentials

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt silently truncates input beyond 72 bytes, so longer passwords are
// rejected outright rather than partially hashed.
const maxPasswordBytes = 72

var (
	ErrEmptyPassword   = errors.New("password must not be empty")
	ErrPasswordTooLong = errors.New("password exceeds 72 bytes")
)

// Store hashes and verifies password credentials. The cost parameter is fixed
// at construction and shared read-only by all concurrent callers.
type Store struct {
	cost int
}

// NewStore creates a credential store with the given bcrypt cost. A cost
// outside bcrypt's supported range falls back to the library default.
func NewStore(cost int) *Store {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Store{cost: cost}
}

// Hash transforms a plaintext password into a salted bcrypt credential.
// The salt is generated per call and embedded in the returned credential.
// Only empty and oversized input fail; length policy belongs to the
// services that accept passwords, not to the hasher.
func (s *Store) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPassword
	}
	if len(plaintext) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), s.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify reports whether plaintext matches the stored credential. Mismatch
// and malformed credentials both return false, never an error.
func (s *Store) Verify(plaintext, credential string) bool {
	return bcrypt.CompareHashAndPassword([]byte(credential), []byte(plaintext)) == nil
}
