// Package auth issues and validates bearer credentials that stand in for the
// calling account id ("predecessor") that a NEAR contract gets for free from
// the runtime. An HTTP service has no such ambient caller identity, so it is
// established explicitly via a signed JWT.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned when a bearer token fails signature or expiry
// verification.
var ErrInvalidToken = errors.New("invalid or expired session token")

// Claims is the JWT payload carrying the caller's account id.
type Claims struct {
	jwt.RegisteredClaims
	// SessionID is a server-generated UUID, informational only.
	SessionID string `json:"sid"`
	// AccountID is the caller's account id, used as created_by/predecessor
	// throughout the sequence engine and key-token registry.
	AccountID string `json:"account_id"`
}

// Manager issues and validates account-identity JWTs.
type Manager struct {
	secret []byte
	expiry time.Duration
}

// NewManager creates a Manager with the given HMAC secret and token lifetime.
func NewManager(secret []byte, expiry time.Duration) *Manager {
	return &Manager{secret: secret, expiry: expiry}
}

// IssueSession signs a new session JWT identifying accountID as the caller.
func (m *Manager) IssueSession(accountID string) (string, error) {
	if accountID == "" {
		return "", errors.New("account_id must not be empty")
	}
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
		},
		SessionID: uuid.New().String(),
		AccountID: accountID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("signing session token: %w", err)
	}
	return signed, nil
}

// ValidateSession parses and verifies the JWT signature and expiry, returning
// the embedded claims.
func (m *Manager) ValidateSession(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
