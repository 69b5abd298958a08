package issuer

import (
	"crypto/rand"
	"fmt"
)

// Character spaces for generated credential material.
const (
	// UsernameSpace is restricted to lowercase alphanumerics so the
	// generated name survives identifier case-folding on the backend.
	UsernameSpace = "abcdefghijklmnopqrstuvwxyz0123456789"

	// PasswordSpace is the full printable space.
	PasswordSpace = "1234567890ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-"
)

// KeyGenerator produces fixed-length random strings from a character
// space. Uniqueness is probabilistic: at operational issuance rates the
// space is large enough that collisions are negligible, so there is no
// retry-on-collision logic. Safe for concurrent use.
type KeyGenerator struct {
	length int
	space  string
}

// NewKeyGenerator creates a generator for the given length and space.
func NewKeyGenerator(length int, space string) (*KeyGenerator, error) {
	if length <= 1 {
		return nil, fmt.Errorf("length must be greater than 1")
	}
	if space == "" {
		return nil, fmt.Errorf("char space is required")
	}
	return &KeyGenerator{length: length, space: space}, nil
}

// GenerateKey returns a new random key.
func (g *KeyGenerator) GenerateKey() (string, error) {
	bytes := make([]byte, g.length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	chars := make([]byte, g.length)
	for i, b := range bytes {
		chars[i] = g.space[int(b)%len(g.space)]
	}

	return string(chars), nil
}
