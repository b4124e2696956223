package auth

import (
	"crypto/rand"
	"errors"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the bcrypt cost factor for stored credentials
const DefaultBcryptCost = 12

// tempPasswordAlphabet leaves out characters that are easy to confuse when
// read aloud or copied from a screen.
const tempPasswordAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghjkmnpqrstuvwxyz23456789"

// PasswordService hashes and verifies account secrets
type PasswordService struct {
	cost int

	// dummyHash is compared against when an account does not exist so that
	// unknown and known identifiers take the same time to reject.
	dummyHash []byte
}

// NewPasswordService creates a PasswordService with the given bcrypt cost.
// A cost outside bcrypt's range falls back to DefaultBcryptCost.
func NewPasswordService(cost int) *PasswordService {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	dummy, _ := bcrypt.GenerateFromPassword([]byte("elitetrack-dummy-password"), cost)
	return &PasswordService{
		cost:      cost,
		dummyHash: dummy,
	}
}

// HashPassword hashes a password using bcrypt
func (s *PasswordService) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// VerifyPassword checks if a password matches the hash
func (s *PasswordService) VerifyPassword(hash, password string) error {
	if hash == "" {
		return bcrypt.ErrMismatchedHashAndPassword
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// burn performs a comparison against the dummy hash and discards the result
func (s *PasswordService) burn(password string) {
	_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
}

// GenerateTempPassword generates a random password an executor can read out to a client
func (s *PasswordService) GenerateTempPassword(length int) (string, error) {
	if length < 8 {
		return "", errors.New("temporary password must be at least 8 characters")
	}
	upper := big.NewInt(int64(len(tempPasswordAlphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, upper)
		if err != nil {
			return "", err
		}
		out[i] = tempPasswordAlphabet[n.Int64()]
	}
	return string(out), nil
}
