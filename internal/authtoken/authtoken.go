// Package authtoken mints and verifies the short-lived HS256 bearer tokens
// the CLI presents to the subscription service when a shared secret is set.
package authtoken

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer is the iss claim of every token minted here.
const Issuer = "subtrack"

// TTL is the lifetime of a minted token.
const TTL = time.Minute

// Signer mints tokens for one subject.
type Signer struct {
	secret  []byte
	subject string
	now     func() time.Time
}

// NewSigner returns a Signer. The secret must not be empty.
func NewSigner(secret []byte, subject string) (*Signer, error) {
	if len(secret) == 0 {
		return nil, errors.New("authtoken: empty secret")
	}
	if subject == "" {
		subject = "subtrack-cli"
	}
	return &Signer{secret: secret, subject: subject, now: time.Now}, nil
}

// Token returns a freshly signed token.
func (s *Signer) Token() (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    Issuer,
		Subject:   s.subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(TTL)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify parses raw and checks its signature, issuer, and expiry.
func Verify(secret []byte, raw string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("verifying token: %w", err)
	}
	return claims, nil
}
