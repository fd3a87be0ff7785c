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
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/scoutzone/scoutzone/internal/identity"
)

// Domain errors
var (
	// ErrSessionExpired is terminal: the client must log in again.
	ErrSessionExpired = errors.New("session expired")

	// ErrInvalidToken marks a malformed or forged token; never retried.
	ErrInvalidToken = errors.New("invalid token")

	// ErrRoleMismatch means the embedded role no longer matches the
	// identity's current role.
	ErrRoleMismatch = errors.New("token role mismatch")

	// ErrTokenExpired is the third decode outcome: well-signed but past
	// its expiry. It permits the refresh path and never leaves the package.
	ErrTokenExpired = errors.New("token expired")

	// ErrNoSession is returned by side-stores for an absent key.
	ErrNoSession = errors.New("no session for access token")
)

// AccessClaims is the payload of a short-lived access token.
type AccessClaims struct {
	Email    string            `json:"email"`
	UserID   int64             `json:"user_id"`
	Role     identity.RoleType `json:"role"`
	DeviceID string            `json:"device_id,omitempty"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a long-lived refresh token.
type RefreshClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Pair is one issued access/refresh token pair.
type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// SideStore is the fast revocation index mapping live access tokens to
// their refresh tokens. Deleting an entry is the revocation mechanism.
type SideStore interface {
	// Set writes access → refresh with the given TTL
	Set(ctx context.Context, accessToken, refreshToken string, ttl time.Duration) error

	// Get returns the refresh token, or ErrNoSession
	Get(ctx context.Context, accessToken string) (string, error)

	// GetDel atomically returns and removes the refresh token, or
	// ErrNoSession. Of two racing callers exactly one wins.
	GetDel(ctx context.Context, accessToken string) (string, error)

	// Del removes the entry; absent keys are not an error
	Del(ctx context.Context, accessToken string) error
}

// IdentityResolver re-resolves current identity during verification and
// refresh. *identity.Service satisfies it.
type IdentityResolver interface {
	InfoByEmail(ctx context.Context, email string) (*identity.UserInfo, error)
}

// Config holds token signing configuration. Access and refresh tokens are
// signed with distinct secrets.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}
