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
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/scoutzone/scoutzone/internal/observability/logger"
	"github.com/scoutzone/scoutzone/internal/observability/metrics"
)

// LoggingMiddleware logs HTTP requests and records their latency
func LoggingMiddleware(m *metrics.Metrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			slog.InfoContext(r.Context(), "http_request_start",
				logger.RequestID(middleware.GetReqID(r.Context())),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.RemoteAddr(r.RemoteAddr),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				elapsed := time.Since(start)
				m.RequestDuration.Record(r.Context(), elapsed.Seconds(),
					metrics.HTTPRequest(r.Method, r.URL.Path, ww.Status()))

				slog.InfoContext(r.Context(), "http_request_end",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.UserAgent(r.UserAgent()),
					logger.StatusCode(ww.Status()),
					logger.Duration(elapsed.Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// RequireUserFromCookie resolves the caller from the session cookie.
// An expired access token is silently refreshed and the cookie rotated
// before the wrapped handler runs.
func (h *Handler) RequireUserFromCookie(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := h.resolver.FromCookie(w, r)
		if err != nil {
			respondDomainError(r, w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// RequireUserFromHeader resolves the caller from the Authorization
// header. Read-only, never rotates tokens. Service-to-service calls
// use this path.
func (h *Handler) RequireUserFromHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := h.resolver.FromHeader(r)
		if err != nil {
			respondDomainError(r, w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}
