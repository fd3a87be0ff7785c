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

package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Config holds metrics configuration
type Config struct {
	Enabled bool
}

// Metrics holds the service instruments. All of them come from the
// global meter provider, so they are no-ops unless an exporter is
// configured.
type Metrics struct {
	Logins          metric.Int64Counter
	TokenRefreshes  metric.Int64Counter
	RightsChanges   metric.Int64Counter
	RequestDuration metric.Float64Histogram
}

// New registers the service instruments
func New(ctx context.Context, cfg Config, serviceName string) (*Metrics, error) {
	name := serviceName
	if !cfg.Enabled {
		name = "noop"
	}
	meter := otel.Meter(name)

	logins, err := meter.Int64Counter("auth_logins_total",
		metric.WithDescription("Login attempts by outcome"))
	if err != nil {
		return nil, fmt.Errorf("failed to create login counter: %w", err)
	}

	refreshes, err := meter.Int64Counter("auth_token_refreshes_total",
		metric.WithDescription("Silent token refreshes by outcome"))
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh counter: %w", err)
	}

	changes, err := meter.Int64Counter("rights_changes_total",
		metric.WithDescription("Right grant and revoke operations"))
	if err != nil {
		return nil, fmt.Errorf("failed to create rights counter: %w", err)
	}

	duration, err := meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request latency"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	return &Metrics{
		Logins:          logins,
		TokenRefreshes:  refreshes,
		RightsChanges:   changes,
		RequestDuration: duration,
	}, nil
}

// Nop returns instruments bound to the no-op meter. Tests and tools that
// run without an exporter use this instead of wiring Config through.
func Nop() *Metrics {
	m, _ := New(context.Background(), Config{Enabled: false}, "")
	return m
}

// Outcome labels a counter increment with a result
func Outcome(result string) metric.AddOption {
	return metric.WithAttributes(attribute.String("outcome", result))
}

// HTTPRequest labels a latency observation with the request dimensions
func HTTPRequest(method, path string, status int) metric.RecordOption {
	return metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", status),
	)
}
