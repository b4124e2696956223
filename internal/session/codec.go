package session

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

const (
	tokenIssuer = "elitetrack"
	keyInfo     = "elitetrack session signing key v1"
)

// ErrInvalidToken is returned for tokens that are malformed or not signed by this server
var ErrInvalidToken = errors.New("invalid session token")

type claims struct {
	jwt.RegisteredClaims
	User                   User   `json:"usr"`
	DeviceID               string `json:"dev"`
	RequiresPasswordChange bool   `json:"rpc,omitempty"`
}

// Codec signs sessions into bearer tokens and verifies them
type Codec struct {
	policy *Policy
	key    []byte
}

// NewCodec derives a signing key from secret
func NewCodec(secret string, policy *Policy) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("session secret is required")
	}
	if policy == nil {
		policy = NewPolicy(nil, 0)
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("failed to derive session key: %w", err)
	}
	return &Codec{policy: policy, key: key}, nil
}

// Policy returns the policy used to check decoded sessions
func (c *Codec) Policy() *Policy {
	return c.policy
}

// Encode signs s
func (c *Codec) Encode(s *Session) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.ID,
			Issuer:    tokenIssuer,
			Subject:   s.User.ID,
			IssuedAt:  jwt.NewNumericDate(s.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
		User:                   s.User,
		DeviceID:               s.DeviceID,
		RequiresPasswordChange: s.RequiresPasswordChange,
	})
	signed, err := token.SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign session: %w", err)
	}
	return signed, nil
}

// Decode verifies the signature of token and returns its session without
// checking expiry or device.
func (c *Codec) Decode(token string) (*Session, error) {
	var cl claims
	_, err := jwt.ParseWithClaims(token, &cl, func(t *jwt.Token) (interface{}, error) {
		return c.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if cl.Issuer != tokenIssuer || cl.IssuedAt == nil || cl.ExpiresAt == nil {
		return nil, ErrInvalidToken
	}

	return &Session{
		ID:                     cl.ID,
		User:                   cl.User,
		IssuedAt:               cl.IssuedAt.Time.UTC(),
		ExpiresAt:              cl.ExpiresAt.Time.UTC(),
		DeviceID:               cl.DeviceID,
		RequiresPasswordChange: cl.RequiresPasswordChange,
	}, nil
}

// Verify decodes token and checks it for deviceID. It returns
// auth.ErrSessionExpired or auth.ErrDeviceMismatch for sessions that decode
// but are no longer valid.
func (c *Codec) Verify(token, deviceID string) (*Session, error) {
	s, err := c.Decode(token)
	if err != nil {
		return nil, err
	}
	if reason := c.policy.Check(s, deviceID); reason != ReasonValid {
		return nil, reason.Err()
	}
	return s, nil
}
