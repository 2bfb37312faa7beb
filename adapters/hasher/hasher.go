// Package hasher provides password hashing implementations.
package hasher

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/artpar/subroutine/ports"
)

// Bcrypt uses bcrypt for hashing.
type Bcrypt struct {
	cost int
}

// NewBcrypt creates a bcrypt hasher. Costs outside bcrypt's range fall back
// to bcrypt.DefaultCost.
func NewBcrypt(cost int) *Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Bcrypt{cost: cost}
}

// Cost returns the work factor.
func (h *Bcrypt) Cost() int {
	return h.cost
}

// Hash returns the bcrypt digest of plaintext.
func (h *Bcrypt) Hash(plaintext string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// Compare checks if plaintext matches digest.
func (h *Bcrypt) Compare(digest, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}

var _ ports.Hasher = (*Bcrypt)(nil)

// Plain stores plaintext as its own digest. Tests only.
type Plain struct{}

// Hash returns plaintext.
func (Plain) Hash(plaintext string) (string, error) {
	return plaintext, nil
}

// Compare reports digest == plaintext.
func (Plain) Compare(digest, plaintext string) bool {
	return digest == plaintext
}

var _ ports.Hasher = Plain{}
