package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stemsi/vocab-runner/internal/config"
)

// Common auth errors.
var (
	ErrTokenExpired = errors.New("token is expired")
	ErrNoSubject    = errors.New("token carries no subject")
)

// Claims is the part of the remote API's access token the runner reads.
// The subject scopes every stored value to its user.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId,omitempty"`
	Email  string `json:"email,omitempty"`

	// Token is the raw bearer token, forwarded to the remote API.
	Token string `json:"-"`
}

// Scope returns the storage scope of the token's user.
func (c *Claims) Scope() string {
	if c.Subject != "" {
		return c.Subject
	}
	return c.UserID
}

// AuthService reads access tokens issued by the remote API.
type AuthService struct {
	cfg *config.Config
	now func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config) *AuthService {
	return &AuthService{cfg: cfg, now: time.Now}
}

// ValidateToken parses a token and returns its claims. With a configured
// secret the HMAC signature is verified; without one the token is only
// decoded and the remote API stays the authority on its validity.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	if s.cfg.JWTSecret != "" {
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(s.cfg.JWTSecret), nil
		})
		if err != nil {
			return nil, fmt.Errorf("parse token: %w", err)
		}
		if !token.Valid {
			return nil, errors.New("invalid token claims")
		}
	} else {
		if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
			return nil, fmt.Errorf("parse token: %w", err)
		}
		if claims.ExpiresAt != nil && claims.ExpiresAt.Before(s.now()) {
			return nil, ErrTokenExpired
		}
	}

	if claims.Scope() == "" {
		return nil, ErrNoSubject
	}
	claims.Token = tokenStr
	return claims, nil
}
