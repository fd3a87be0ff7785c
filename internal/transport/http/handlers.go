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

package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/scoutzone/scoutzone/internal/audit"
	"github.com/scoutzone/scoutzone/internal/identity"
	"github.com/scoutzone/scoutzone/internal/observability/metrics"
	"github.com/scoutzone/scoutzone/internal/rights"
	"github.com/scoutzone/scoutzone/internal/session"
	"github.com/scoutzone/scoutzone/internal/token"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Handler holds HTTP handlers and dependencies
type Handler struct {
	identityService *identity.Service
	tokenService    *token.Service
	resolver        *session.Resolver
	rightsService   *rights.Service
	orchestrator    *rights.Orchestrator
	auditLogger     audit.Logger
	metrics         *metrics.Metrics
}

// NewHandler creates a new HTTP handler
func NewHandler(
	identityService *identity.Service,
	tokenService *token.Service,
	resolver *session.Resolver,
	rightsService *rights.Service,
	orchestrator *rights.Orchestrator,
	auditLogger audit.Logger,
	m *metrics.Metrics,
) *Handler {
	return &Handler{
		identityService: identityService,
		tokenService:    tokenService,
		resolver:        resolver,
		rightsService:   rightsService,
		orchestrator:    orchestrator,
		auditLogger:     auditLogger,
		metrics:         m,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware(h.metrics))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", h.Login)
		r.Post("/auth/logout", h.Logout)

		// Service routes: bearer header, no rotation
		r.Group(func(r chi.Router) {
			r.Use(h.RequireUserFromHeader)

			r.Get("/users/verify", h.Whoami)
		})

		// Browser routes: cookie session, silent refresh
		r.Group(func(r chi.Router) {
			r.Use(h.RequireUserFromCookie)

			r.Get("/users/whoami", h.Whoami)
			r.Post("/users/agreements", h.AcceptAgreement)

			r.Route("/rights", func(r chi.Router) {
				r.Get("/", h.ListRightsBySourceType)
				r.Get("/by-rel/{sourceID}", h.ListSourceGrants)
				r.Put("/by-rel/{sourceID}", h.ChangeRights)
				r.Get("/by-rel/{sourceID}/{subjectID}", h.GetSubjectRight)
				r.Put("/by-rel/{sourceID}/{subjectID}", h.UpdateSubjectRight)
				r.Delete("/by-rel/{sourceID}/{subjectID}", h.RevokeSubjectRight)
				r.Get("/by-user/{userID}", h.ListSubjectSources)
			})
		})
	})

	return r
}

// HealthCheck returns the health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "scoutzone",
	})
}

// LoginRequest represents login credentials
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the identity and the issued token pair. The
// access token is also set as the session cookie for browser clients.
type LoginResponse struct {
	User   *identity.UserInfo `json:"user"`
	Tokens token.Pair         `json:"tokens"`
}

// Login authenticates credentials and opens a session
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "BadRequest", "invalid request body")
		return
	}

	user, err := h.identityService.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.metrics.Logins.Add(r.Context(), 1, metrics.Outcome("failure"))
		respondDomainError(r, w, err)
		return
	}

	pair, err := h.tokenService.Issue(r.Context(), user, session.DeviceFingerprint(r.UserAgent()))
	if err != nil {
		h.metrics.Logins.Add(r.Context(), 1, metrics.Outcome("failure"))
		respondDomainError(r, w, err)
		return
	}

	h.resolver.SetSessionCookie(w, r, pair.AccessToken)
	h.metrics.Logins.Add(r.Context(), 1, metrics.Outcome("success"))

	respondJSON(w, http.StatusOK, LoginResponse{User: user, Tokens: pair})
}

// Logout revokes the current session and clears the cookie. A request
// with no live session still clears the cookie but reports the expiry.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.resolver.ClearSessionCookie(w, r)

	cookie, err := r.Cookie(h.resolver.CookieName())
	if err != nil {
		respondDomainError(r, w, token.ErrSessionExpired)
		return
	}

	if err := h.tokenService.Revoke(r.Context(), cookie.Value); err != nil {
		respondDomainError(r, w, err)
		return
	}

	h.auditLogger.Log(r.Context(), audit.Event{
		Type:      audit.TypeLogout,
		IPAddress: getIPAddress(r),
		UserAgent: r.UserAgent(),
	})

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "logged out successfully",
	})
}

// Whoami returns the resolved identity of the caller
func (h *Handler) Whoami(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, GetUser(r.Context()))
}

// AcceptAgreementRequest names the agreement being accepted
type AcceptAgreementRequest struct {
	AgreementType identity.AgreementType `json:"agreement_type"`
}

// AcceptAgreement records the caller's acceptance of an agreement.
// Accepting twice is a conflict.
func (h *Handler) AcceptAgreement(w http.ResponseWriter, r *http.Request) {
	user := GetUser(r.Context())

	req := AcceptAgreementRequest{AgreementType: identity.AgreementEULA}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "BadRequest", "invalid request body")
			return
		}
	}

	if err := h.identityService.AcceptAgreement(r.Context(), user, req.AgreementType); err != nil {
		respondDomainError(r, w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "agreement accepted",
	})
}
