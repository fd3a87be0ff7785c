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

package audit

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Event types
const (
	TypeLoginSuccess      = "login_success"
	TypeLoginFailed       = "login_failed"
	TypeLogout            = "logout"
	TypeTokenIssued       = "token_issued"
	TypeTokenRefreshed    = "token_refreshed"
	TypeTokenRevoked      = "token_revoked"
	TypeRightGranted      = "right_granted"
	TypeRightRevoked      = "right_revoked"
	TypeAgreementAccepted = "agreement_accepted"
)

// Common metadata attribute keys
const (
	AttrReason   = "reason"
	AttrAttempts = "attempts"
)

// Event represents an auditable action
type Event struct {
	Type      string
	ActorID   int64
	Resource  string
	Metadata  map[string]any
	Timestamp time.Time
	IPAddress string
	UserAgent string
}

// Logger defines the interface for audit logging
type Logger interface {
	Log(ctx context.Context, event Event)
}

// SlogLogger implements Logger using slog
type SlogLogger struct{}

// NewSlogLogger creates a new audit logger
func NewSlogLogger() *SlogLogger {
	return &SlogLogger{}
}

// Log records an audit event
func (l *SlogLogger) Log(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	attrs := []any{
		slog.String("audit_type", event.Type),
		slog.Int64("actor_id", event.ActorID),
		slog.String("resource", event.Resource),
		slog.Time("timestamp", event.Timestamp),
	}

	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}

	if len(event.Metadata) > 0 {
		group := make([]any, 0, len(event.Metadata))
		for k, v := range event.Metadata {
			if isSecret(k) {
				v = "***"
			}
			group = append(group, slog.Any(k, v))
		}
		attrs = append(attrs, slog.Group("metadata", group...))
	}

	slog.InfoContext(ctx, "AUDIT_EVENT", append(attrs, slog.String("component", "audit"))...)
}

// isSecret checks if a metadata key likely carries a secret value
func isSecret(key string) bool {
	lowered := strings.ToLower(key)
	for _, s := range []string{"password", "secret", "token", "key", "hash", "credential", "authorization"} {
		if strings.Contains(lowered, s) {
			return true
		}
	}
	return false
}
