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
	"context"

	"github.com/scoutzone/scoutzone/internal/identity"
)

type contextKey string

const userKey contextKey = "user"

// WithUser stores the resolved identity in the request context
func WithUser(ctx context.Context, user *identity.UserInfo) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// GetUser retrieves the authenticated identity from context. Nil means
// the request never passed an auth middleware.
func GetUser(ctx context.Context) *identity.UserInfo {
	if val, ok := ctx.Value(userKey).(*identity.UserInfo); ok {
		return val
	}
	return nil
}
