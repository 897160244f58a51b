// Package jwt issues and verifies the HMAC access tokens that carry a
// username in their subject.
package jwt

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// ErrExpired wraps verification failures caused by the exp claim.
var ErrExpired = errors.New("jwt: token expired")

// Claims is the token payload.
type Claims = gojwt.RegisteredClaims

type Service struct {
	cfg    Config
	method *gojwt.SigningMethodHMAC
	parser *gojwt.Parser
	now    func() time.Time
}

func NewService(cfg Config) (*Service, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Service{cfg: cfg, method: hmacMethods[cfg.Method], now: time.Now}

	opts := []gojwt.ParserOption{
		gojwt.WithValidMethods([]string{s.method.Alg()}),
		gojwt.WithTimeFunc(func() time.Time { return s.now() }),
		gojwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, gojwt.WithIssuer(cfg.Issuer))
	}
	if len(cfg.Audience) > 0 {
		opts = append(opts, gojwt.WithAudience(cfg.Audience[0]))
	}
	s.parser = gojwt.NewParser(opts...)
	return s, nil
}

// Issue signs a token for subject valid for AccessTokenTTL.
func (s *Service) Issue(subject string) (string, error) {
	now := s.now()
	claims := &Claims{
		Subject:   subject,
		Issuer:    s.cfg.Issuer,
		IssuedAt:  gojwt.NewNumericDate(now),
		ExpiresAt: gojwt.NewNumericDate(now.Add(s.cfg.AccessTokenTTL)),
	}
	if len(s.cfg.Audience) > 0 {
		claims.Audience = s.cfg.Audience
	}
	signed, err := gojwt.NewWithClaims(s.method, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("jwt: sign: %w", err)
	}
	return signed, nil
}

// Verify checks signature, algorithm, time claims, issuer and audience.
func (s *Service) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := s.parser.ParseWithClaims(token, claims, func(*gojwt.Token) (any, error) {
		return []byte(s.cfg.Secret), nil
	})
	switch {
	case errors.Is(err, gojwt.ErrTokenExpired):
		return nil, fmt.Errorf("%w: %v", ErrExpired, err)
	case err != nil:
		return nil, fmt.Errorf("jwt: %w", err)
	}
	return claims, nil
}
