// internal/app/system/auth/token.go
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/campusdesk/internal/domain/models"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// DefaultTokenTTL applies when Issuer.TTL is zero.
const DefaultTokenTTL = 12 * time.Hour

// Claims is the token payload.
type Claims struct {
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	SchoolCodes []string `json:"school_codes,omitempty"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 bearer tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	name   string
	now    func() time.Time
}

// NewIssuer returns an Issuer. secret must not be empty.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, name: "campusdesk", now: time.Now}, nil
}

// TTL returns how long issued tokens live.
func (i *Issuer) TTL() time.Duration { return i.ttl }

// Issue signs a token for u and returns it with its expiry.
func (i *Issuer) Issue(u models.User) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(i.ttl)
	claims := Claims{
		Email:       u.Email,
		Role:        u.Role,
		SchoolCodes: u.SchoolCodes,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    i.name,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Parse verifies raw and returns its claims. Only HS256 is accepted.
func (i *Issuer) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	tok, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !tok.Valid {
		return nil, errors.New("parse token: invalid")
	}
	if claims.Issuer != i.name {
		return nil, fmt.Errorf("parse token: unexpected issuer %q", claims.Issuer)
	}
	if claims.Subject == "" {
		return nil, errors.New("parse token: missing subject")
	}
	return claims, nil
}
