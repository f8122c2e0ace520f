// Package auth validates session tokens and game membership for new
// connections. Tokens are issued elsewhere; this package only verifies them.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMissingToken is returned when the auth frame carries no token.
var ErrMissingToken = errors.New("missing token")

// ErrInvalidToken is returned for a token that fails signature or claims validation.
var ErrInvalidToken = errors.New("invalid token")

// ErrExpiredToken is returned for a token whose expiry has passed.
var ErrExpiredToken = errors.New("expired token")

// Claims is the identity carried by a verified session token.
type Claims struct {
	UserID   int64
	Username string
}

type tokenClaims struct {
	UserID   int64  `json:"uid"`
	Username string `json:"name"`
	jwt.RegisteredClaims
}

// Verifier checks session token signatures and expiry.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier for HMAC-signed tokens.
//
// Precondition: secret must be non-empty.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates a session token.
//
// Postcondition: Returns the token's Claims, or ErrMissingToken,
// ErrExpiredToken, or ErrInvalidToken describing the failure class.
func (v *Verifier) Verify(token string) (Claims, error) {
	if token == "" {
		return Claims{}, ErrMissingToken
	}

	var tc tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &tc, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpiredToken
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || tc.UserID <= 0 {
		return Claims{}, ErrInvalidToken
	}

	return Claims{UserID: tc.UserID, Username: tc.Username}, nil
}
