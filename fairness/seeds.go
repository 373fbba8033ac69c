package fairness

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	serverSeedBytes = 32
	clientSeedBytes = 16

	// MaxClientSeedLength bounds user supplied client seeds
	MaxClientSeedLength = 64
)

// NewServerSeed generates a fresh secret server seed
func NewServerSeed() (string, error) {
	return randomHex(serverSeedBytes)
}

// NewClientSeed generates a default client seed for users who did not choose one
func NewClientSeed() (string, error) {
	return randomHex(clientSeedBytes)
}

// HashServerSeed returns the public commitment for a server seed
func HashServerSeed(serverSeed string) string {
	sum := sha256.Sum256([]byte(serverSeed))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether a revealed server seed matches its commitment
func Verify(serverSeed, serverSeedHash string) bool {
	computed := HashServerSeed(serverSeed)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(strings.ToLower(serverSeedHash))) == 1
}

// ValidateClientSeed rejects client seeds that would make the derivation message ambiguous
func ValidateClientSeed(seed string) error {
	if seed == "" {
		return fmt.Errorf("%w: client seed is required", ErrInvalidInput)
	}
	if len(seed) > MaxClientSeedLength {
		return fmt.Errorf("%w: client seed longer than %d characters", ErrInvalidInput, MaxClientSeedLength)
	}
	for _, r := range seed {
		if r < 0x21 || r > 0x7e || r == ':' {
			return fmt.Errorf("%w: client seed must be printable ASCII without ':'", ErrInvalidInput)
		}
	}
	return nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
