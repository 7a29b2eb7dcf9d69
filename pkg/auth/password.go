package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher is the one-way hash capability used by the account service.
// Implementations must be memory-hard or otherwise resistant to offline
// brute force; the rest of the system never sees plaintext or algorithm
// details.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(credential, plaintext string) bool
}

// BcryptHasher implements PasswordHasher with bcrypt
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a hasher with the given cost; zero means
// bcrypt.DefaultCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash hashes a plaintext password
func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify compares a plaintext password with a stored credential
func (h *BcryptHasher) Verify(credential, plaintext string) bool {
	if credential == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(credential), []byte(plaintext)) == nil
}
