// Package otp produces and verifies the short numeric one-time codes that
// prove a physical handoff between buyer and seller.  Codes are six decimal
// digits, generated from crypto/rand, and persisted only as bcrypt hashes:
// the plaintext exists for the single response that discloses it.
package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// Codes live for minutes, not months, so a moderate bcrypt cost is enough.
const hashCost = 10

// Source mints plaintext one-time codes.  It is an injected dependency so
// tests can script the exact codes a checkout produces.
type Source interface {
	Generate() (string, error)
}

type randomSource struct{}

// NewSource returns the production Source backed by crypto/rand.
func NewSource() Source { return randomSource{} }

// Generate returns a uniformly random six-digit code in [100000, 999999].
func (randomSource) Generate() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// Hash returns the bcrypt hash of a plaintext code.  Only the hash is ever
// stored.
func Hash(code string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(code), hashCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify reports whether the presented code matches the stored hash.  A
// mismatch has no side effects; callers may let the user retry.
func Verify(hash, code string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil
}
