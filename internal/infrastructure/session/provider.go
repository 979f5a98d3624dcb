// Package session resolves the currently authenticated shopper's session
// from the id token the host application supplies.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/storefront/analytics/internal/domain/tracking"
	"github.com/storefront/analytics/internal/infrastructure/config"
)

// Common errors
var (
	ErrNoToken      = errors.New("no session token available")
	ErrInvalidToken = errors.New("invalid session token")
)

// Claims are the id-token claims the analytics layer cares about.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// TokenSource supplies the raw id token of the current session.
type TokenSource func(ctx context.Context) (string, error)

// Provider verifies the session id token and exposes the verified contact
// channel. It implements tracking.SessionProvider.
type Provider struct {
	secret []byte
	issuer string
	source TokenSource
	logger *zap.Logger
}

// NewProvider creates a session provider from configuration and a token source.
func NewProvider(cfg config.SessionConfig, source TokenSource, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.Issuer,
		source: source,
		logger: logger,
	}
}

// CurrentAuthenticatedUser resolves the verified session of the caller.
func (p *Provider) CurrentAuthenticatedUser(ctx context.Context) (tracking.Session, error) {
	if p.source == nil {
		return tracking.Session{}, ErrNoToken
	}

	raw, err := p.source(ctx)
	if err != nil {
		return tracking.Session{}, fmt.Errorf("session: fetch token: %w", err)
	}
	if raw == "" {
		return tracking.Session{}, ErrNoToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return p.secret, nil
	}, jwt.WithIssuer(p.issuer))
	if err != nil {
		p.logger.Debug("session token rejected", zap.Error(err))
		return tracking.Session{}, fmt.Errorf("session: %w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return tracking.Session{}, ErrInvalidToken
	}

	return tracking.Session{Email: claims.Email}, nil
}
