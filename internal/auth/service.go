// Package auth guards the mutating portal routes with short-lived
// bearer tokens exchanged for the operator API key.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidCredentials rejects a login with the wrong API key.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// ErrInvalidToken rejects an expired, malformed, or mis-signed token.
var ErrInvalidToken = errors.New("auth: invalid token")

// Claims is the JWT payload carried by portal tokens.
type Claims struct {
	Subject string `json:"sub"`
	jwt.RegisteredClaims
}

// Service issues and verifies portal bearer tokens.
type Service struct {
	secret []byte
	apiKey string
	ttl    time.Duration
	now    func() time.Time
}

// NewService creates a new auth service
func NewService(secret, apiKey string, ttl time.Duration) *Service {
	return &Service{
		secret: []byte(secret),
		apiKey: apiKey,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Login exchanges the operator API key for a signed bearer token.
func (s *Service) Login(apiKey, subject string) (string, error) {
	if apiKey == "" || apiKey != s.apiKey {
		return "", ErrInvalidCredentials
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Subject: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a bearer token, returning its claims.
func (s *Service) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
