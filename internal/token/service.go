// Copyright 2026 The ScoutZone Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/scoutzone/scoutzone/internal/audit"
	"github.com/scoutzone/scoutzone/internal/identity"
	"github.com/scoutzone/scoutzone/internal/observability/metrics"
)

// Service mints, verifies and rotates access/refresh token pairs. The
// side-store entry keyed by the raw access token is the single source of
// truth for whether the session is still alive.
type Service struct {
	users       IdentityResolver
	store       SideStore
	cfg         Config
	auditLogger audit.Logger
	metrics     *metrics.Metrics
}

// NewService creates a new token service
func NewService(users IdentityResolver, store SideStore, cfg Config, auditLogger audit.Logger, m *metrics.Metrics) *Service {
	return &Service{
		users:       users,
		store:       store,
		cfg:         cfg,
		auditLogger: auditLogger,
		metrics:     m,
	}
}

// Issue mints a signed token pair for the user and records the
// access → refresh link with the refresh lifetime.
func (s *Service) Issue(ctx context.Context, user *identity.UserInfo, deviceID string) (Pair, error) {
	now := time.Now()

	access := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{
		Email:    user.Email,
		UserID:   user.ID,
		Role:     user.Role,
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTTL)),
		},
	})
	accessStr, err := access.SignedString(s.cfg.AccessSecret)
	if err != nil {
		return Pair{}, fmt.Errorf("failed to sign access token: %w", err)
	}

	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, RefreshClaims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.RefreshTTL)),
		},
	})
	refreshStr, err := refresh.SignedString(s.cfg.RefreshSecret)
	if err != nil {
		return Pair{}, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	if err := s.store.Set(ctx, accessStr, refreshStr, s.cfg.RefreshTTL); err != nil {
		return Pair{}, fmt.Errorf("failed to record session: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTokenIssued,
		ActorID:  user.ID,
		Resource: "token_pair",
	})

	return Pair{AccessToken: accessStr, RefreshToken: refreshStr}, nil
}

// decode verifies signature and expiry against the given secret. Three-way
// outcome: nil (claims populated), ErrTokenExpired, or ErrInvalidToken.
func decode(tokenStr string, secret []byte, claims jwt.Claims) error {
	_, err := jwt.ParseWithClaims(tokenStr, claims,
		func(t *jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	default:
		return ErrInvalidToken
	}
}

// verifyLive handles a well-signed, unexpired access token: confirm the
// session was not revoked, re-resolve the identity and reject tokens that
// survived a server-side role change.
func (s *Service) verifyLive(ctx context.Context, accessToken string, claims *AccessClaims) (*identity.UserInfo, error) {
	if _, err := s.store.Get(ctx, accessToken); err != nil {
		if errors.Is(err, ErrNoSession) {
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("failed to check session entry: %w", err)
	}

	user, err := s.users.InfoByEmail(ctx, claims.Email)
	if err != nil {
		return nil, err
	}
	if user.Role != claims.Role {
		return nil, fmt.Errorf("token carries %s, user has %s: %w",
			claims.Role, user.Role, ErrRoleMismatch)
	}
	return user, nil
}

// Verify authenticates an access token without rotation. An expired token
// is a terminal session-expired failure on this path.
func (s *Service) Verify(ctx context.Context, accessToken string) (*identity.UserInfo, error) {
	var claims AccessClaims
	switch err := decode(accessToken, s.cfg.AccessSecret, &claims); {
	case err == nil:
		return s.verifyLive(ctx, accessToken, &claims)
	case errors.Is(err, ErrTokenExpired):
		return nil, ErrSessionExpired
	default:
		return nil, err
	}
}

// VerifyOrRefresh authenticates an access token, transparently rotating the
// pair when the access token has expired but its refresh token is still
// valid. The returned Pair is non-nil only after a rotation. Refresh is
// single-use: the side-store entry is consumed atomically, so of two
// requests racing to refresh the same token exactly one succeeds and the
// other observes ErrSessionExpired.
func (s *Service) VerifyOrRefresh(ctx context.Context, accessToken, deviceID string) (*identity.UserInfo, *Pair, error) {
	var claims AccessClaims
	switch err := decode(accessToken, s.cfg.AccessSecret, &claims); {
	case err == nil:
		user, err := s.verifyLive(ctx, accessToken, &claims)
		if err != nil {
			return nil, nil, err
		}
		return user, nil, nil
	case errors.Is(err, ErrTokenExpired):
		// fall through to the refresh path
	default:
		return nil, nil, err
	}

	refreshStr, err := s.store.GetDel(ctx, accessToken)
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			s.metrics.TokenRefreshes.Add(ctx, 1, metrics.Outcome("failure"))
			return nil, nil, ErrSessionExpired
		}
		return nil, nil, fmt.Errorf("failed to consume session entry: %w", err)
	}

	var refreshClaims RefreshClaims
	if err := decode(refreshStr, s.cfg.RefreshSecret, &refreshClaims); err != nil {
		s.metrics.TokenRefreshes.Add(ctx, 1, metrics.Outcome("failure"))
		return nil, nil, ErrSessionExpired
	}

	user, err := s.users.InfoByEmail(ctx, refreshClaims.Email)
	if err != nil {
		return nil, nil, err
	}

	pair, err := s.Issue(ctx, user, deviceID)
	if err != nil {
		return nil, nil, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTokenRefreshed,
		ActorID:  user.ID,
		Resource: "token_pair",
	})
	s.metrics.TokenRefreshes.Add(ctx, 1, metrics.Outcome("success"))

	return user, &pair, nil
}

// Revoke deletes the side-store entry for the access token. Idempotent:
// revoking an already-absent token succeeds.
func (s *Service) Revoke(ctx context.Context, accessToken string) error {
	if err := s.store.Del(ctx, accessToken); err != nil && !errors.Is(err, ErrNoSession) {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTokenRevoked,
		Resource: "token_pair",
	})
	return nil
}
