// Package jwt validates bearer tokens presented to the push API.
package jwt

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for tokens that fail validation.
var ErrInvalidToken = errors.New("invalid token")

// Config holds token validation settings.
type Config struct {
	SecretKey string
	Issuer    string // optional; checked when set
	Audience  string // optional; checked when set
}

// Claims are the token claims the API cares about.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

// Authenticator validates HMAC-signed tokens.
type Authenticator struct {
	secret []byte
	parser *jwt.Parser
}

// NewAuthenticator creates a new Authenticator.
func NewAuthenticator(cfg Config) *Authenticator {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return &Authenticator{
		secret: []byte(cfg.SecretKey),
		parser: jwt.NewParser(opts...),
	}
}

// ValidateToken validates a token and returns the caller identity:
// the subject, or the role for service tokens without a subject.
func (a *Authenticator) ValidateToken(_ context.Context, tokenString string) (string, error) {
	var claims Claims
	_, err := a.parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	switch {
	case claims.Subject != "":
		return claims.Subject, nil
	case claims.Role != "":
		return claims.Role, nil
	default:
		return "", fmt.Errorf("%w: token has neither subject nor role", ErrInvalidToken)
	}
}
