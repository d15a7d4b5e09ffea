// Package token issues the post-ceremony principal token returned by
// /login/webauthn.
package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/passkeyrp/webauthn-rp/webauthn"
)

// Issuer signs HS256 principal tokens after a successful authentication
// ceremony. If the HTTP collaborator has no Issuer configured, it issues no
// principal token.
type Issuer struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
}

// Claims is the principal token's payload.
type Claims struct {
	jwt.RegisteredClaims
	CredentialID string `json:"cid"`
}

// Generate issues a signed token asserting principal's user handle as the
// subject.
func (i *Issuer) Generate(principal *webauthn.Principal) (string, error) {
	if len(i.Secret) == 0 {
		return "", fmt.Errorf("token: issuer has no signing secret configured")
	}
	ttl := i.TTL
	if ttl == 0 {
		ttl = time.Hour
	}
	now := principal.AuthenticatedAt
	if now.IsZero() {
		now = time.Now()
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.UserHandle.String(),
			Issuer:    i.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		CredentialID: principal.CredentialID.String(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.Secret)
}

// Parse validates a token issued by Generate and returns its claims.
func (i *Issuer) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("token: unexpected signing method %v", t.Header["alg"])
		}
		return i.Secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("token: parsing principal token: %w", err)
	}
	return claims, nil
}
