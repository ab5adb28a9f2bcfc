package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrPasswordTooLong is returned for secrets bcrypt cannot hash.
var ErrPasswordTooLong = bcrypt.ErrPasswordTooLong

// Hasher hashes and checks secrets with bcrypt.
type Hasher struct {
	cost      int
	dummyHash []byte
}

// NewHasher constructs a Hasher. A cost of zero selects bcrypt.DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("todoapi-dummy-secret"), cost)
	if err != nil {
		panic(fmt.Sprintf("bcrypt dummy hash: %v", err))
	}
	return &Hasher{cost: cost, dummyHash: dummy}
}

// Hash returns the bcrypt hash of secret.
func (h *Hasher) Hash(secret string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Matches reports whether secret matches hash.
func (h *Hasher) Matches(hash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// Burn performs a comparison against a fixed hash so that a lookup miss
// costs the same time as a wrong password.
func (h *Hasher) Burn(secret string) {
	_ = bcrypt.CompareHashAndPassword(h.dummyHash, []byte(secret))
}
