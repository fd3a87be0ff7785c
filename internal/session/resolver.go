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

package session

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/scoutzone/scoutzone/internal/identity"
	"github.com/scoutzone/scoutzone/internal/token"
)

// Config holds session resolution configuration.
type Config struct {
	CookieName    string
	DefaultDomain string
	RefreshTTL    int // cookie lifetime, seconds; mirrors refresh-token TTL

	// SkipAuth bypasses resolution entirely and yields a fixed synthetic
	// identity. Test/dev environments only; never enable in production.
	SkipAuth bool
}

// Resolver is the single entry point protected operations authenticate
// through. The cookie variant rotates expired tokens as a side effect;
// the header variant is read-only.
type Resolver struct {
	tokens *token.Service
	cfg    Config
}

// NewResolver creates a new session resolver
func NewResolver(tokens *token.Service, cfg Config) *Resolver {
	return &Resolver{
		tokens: tokens,
		cfg:    cfg,
	}
}

// FromCookie resolves the identity behind the session cookie. When the
// access token has expired but is still refreshable, the pair is rotated
// and the new access token is written back as a cookie on w.
func (rs *Resolver) FromCookie(w http.ResponseWriter, r *http.Request) (*identity.UserInfo, error) {
	if rs.cfg.SkipAuth {
		return syntheticIdentity(), nil
	}

	cookie, err := r.Cookie(rs.cfg.CookieName)
	if err != nil || cookie.Value == "" {
		return nil, token.ErrSessionExpired
	}

	user, pair, err := rs.tokens.VerifyOrRefresh(r.Context(), cookie.Value, DeviceFingerprint(r.UserAgent()))
	if err != nil {
		return nil, err
	}
	if pair != nil {
		rs.SetSessionCookie(w, r, pair.AccessToken)
	}

	return requireActive(user)
}

// FromHeader resolves the identity behind a bearer Authorization header.
// Service-to-service flow: never rotates, never touches cookies.
func (rs *Resolver) FromHeader(r *http.Request) (*identity.UserInfo, error) {
	if rs.cfg.SkipAuth {
		return syntheticIdentity(), nil
	}

	raw := r.Header.Get("Authorization")
	if raw == "" {
		return nil, token.ErrSessionExpired
	}
	// accept both "Bearer <token>" and a bare token
	if idx := strings.LastIndexByte(raw, ' '); idx >= 0 {
		raw = raw[idx+1:]
	}

	user, err := rs.tokens.Verify(r.Context(), raw)
	if err != nil {
		return nil, err
	}
	return requireActive(user)
}

// SetSessionCookie writes the access token as a secure cross-site cookie
// scoped to the caller's origin domain.
func (rs *Resolver) SetSessionCookie(w http.ResponseWriter, r *http.Request, accessToken string) {
	http.SetCookie(w, &http.Cookie{
		Name:     rs.cfg.CookieName,
		Value:    accessToken,
		Domain:   CookieDomain(r, rs.cfg.DefaultDomain),
		Path:     "/",
		MaxAge:   rs.cfg.RefreshTTL,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteNoneMode,
	})
}

// ClearSessionCookie expires the session cookie.
func (rs *Resolver) ClearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     rs.cfg.CookieName,
		Value:    "",
		Domain:   CookieDomain(r, rs.cfg.DefaultDomain),
		Path:     "/",
		MaxAge:   -1,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteNoneMode,
	})
}

// CookieName returns the configured session cookie name.
func (rs *Resolver) CookieName() string {
	return rs.cfg.CookieName
}

// CookieDomain derives the cookie domain from the request: Origin, then
// Referer, then Host, then the configured default. Localhost origins get
// an unscoped cookie.
func CookieDomain(r *http.Request, fallback string) string {
	domain := baseHost(r.Header.Get("Origin"))
	if domain == "" {
		domain = baseHost(r.Header.Get("Referer"))
	}
	if domain == "" {
		domain = baseHost(r.Host)
	}
	if domain == "" {
		domain = fallback
	}
	if strings.Contains(domain, "localhost") {
		return ""
	}
	return domain
}

// baseHost strips scheme, www prefix, port and path from a URL-ish string.
func baseHost(raw string) string {
	raw = strings.TrimPrefix(raw, "http://")
	raw = strings.TrimPrefix(raw, "https://")
	raw = strings.TrimPrefix(raw, "www.")
	if idx := strings.IndexByte(raw, '/'); idx >= 0 {
		raw = raw[:idx]
	}
	if idx := strings.IndexByte(raw, ':'); idx >= 0 {
		raw = raw[:idx]
	}
	return raw
}

// DeviceFingerprint encodes a user agent as the device id embedded in
// access tokens.
func DeviceFingerprint(userAgent string) string {
	if userAgent == "" {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(userAgent))
}

// requireActive enforces the active-user contract shared by both variants.
func requireActive(user *identity.UserInfo) (*identity.UserInfo, error) {
	if !user.Active {
		return nil, identity.ErrInactiveUser
	}
	return user, nil
}

// syntheticIdentity is the fixed identity returned when auth is bypassed.
func syntheticIdentity() *identity.UserInfo {
	one := int64(1)
	return &identity.UserInfo{
		ID:             1,
		Email:          "mock@mock.com",
		FirstName:      "Mock",
		LastName:       "Mock",
		PhoneNumber:    "+1234567890",
		DepartmentID:   &one,
		OrganizationID: &one,
		Role:           identity.RoleHRDirector,
		Active:         true,
		IsInternal:     true,
		EULAAccepted:   true,
	}
}
