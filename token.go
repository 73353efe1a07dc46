package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenInfo is what the client can learn from a bearer token without the
// backend's signing key.
type TokenInfo struct {
	Subject   string
	ExpiresAt *time.Time
	Opaque    bool
}

// Expired reports whether the token carries an expiry before now.
func (t TokenInfo) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}

// TokenInspector reads bearer tokens without tying callers to a format.
type TokenInspector interface {
	Inspect(token string) (TokenInfo, error)
}

// TokenInspectorFunc adapts a function into a TokenInspector.
type TokenInspectorFunc func(token string) (TokenInfo, error)

// Inspect satisfies the TokenInspector interface.
func (f TokenInspectorFunc) Inspect(token string) (TokenInfo, error) {
	if f == nil {
		return TokenInfo{Opaque: true}, nil
	}
	return f(token)
}

// JWTInspector decodes JWT claims without verifying the signature. The
// backend stays authoritative; the client only uses exp to skip a request
// that is bound to fail.
type JWTInspector struct {
	parser *jwt.Parser
}

// NewJWTInspector creates an inspector.
func NewJWTInspector() *JWTInspector {
	return &JWTInspector{parser: jwt.NewParser()}
}

// Inspect returns an opaque TokenInfo for anything that is not a JWT.
func (i *JWTInspector) Inspect(token string) (TokenInfo, error) {
	if token == "" {
		return TokenInfo{}, cloneWith(ErrUnauthenticated, map[string]any{"reason": "empty token"})
	}
	if strings.Count(token, ".") != 2 {
		return TokenInfo{Opaque: true}, nil
	}

	claims := jwt.RegisteredClaims{}
	if _, _, err := i.parser.ParseUnverified(token, &claims); err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return TokenInfo{Opaque: true}, nil
		}
		return TokenInfo{}, err
	}

	info := TokenInfo{Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		exp := claims.ExpiresAt.Time
		info.ExpiresAt = &exp
	}
	return info, nil
}
