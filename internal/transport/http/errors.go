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
	"errors"
	"log/slog"
	"net/http"

	"github.com/scoutzone/scoutzone/internal/identity"
	"github.com/scoutzone/scoutzone/internal/observability/logger"
	"github.com/scoutzone/scoutzone/internal/rights"
	"github.com/scoutzone/scoutzone/internal/token"
)

// errorBody is the wire shape every error response uses. Clients branch
// on exc_state, exc_info is for humans.
type errorBody struct {
	ExcState string `json:"exc_state"`
	ExcInfo  string `json:"exc_info"`
}

// errorMapping pins a domain sentinel to its wire kind and status code
type errorMapping struct {
	sentinel error
	kind     string
	status   int
}

var errorMappings = []errorMapping{
	{identity.ErrInvalidCredentials, "InvalidCredentials", http.StatusUnauthorized},
	{identity.ErrInactiveUser, "InactiveUser", http.StatusUnauthorized},
	{identity.ErrUserNotFound, "UserNotFound", http.StatusNotFound},
	{identity.ErrAgreementAccepted, "AgreementAlreadyAccepted", http.StatusConflict},
	{token.ErrSessionExpired, "SessionExpired", http.StatusUnauthorized},
	{token.ErrInvalidToken, "InvalidToken", http.StatusUnauthorized},
	{token.ErrRoleMismatch, "RoleMismatch", http.StatusForbidden},
	{rights.ErrRightsNotFound, "RightsNotFound", http.StatusNotFound},
	{rights.ErrInsufficientRights, "InsufficientRights", http.StatusForbidden},
	{rights.ErrRoleRightMismatch, "RoleRightMismatch", http.StatusBadRequest},
	{rights.ErrConstraintViolation, "ConstraintValidationError", http.StatusUnprocessableEntity},
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, kind, message string) {
	respondJSON(w, status, errorBody{ExcState: kind, ExcInfo: message})
}

// respondDomainError maps a service error onto its stable wire kind.
// Anything outside the taxonomy is logged and hidden behind a 500.
func respondDomainError(r *http.Request, w http.ResponseWriter, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.sentinel) {
			respondError(w, m.status, m.kind, err.Error())
			return
		}
	}
	slog.ErrorContext(r.Context(), "unhandled error", logger.Error(err), logger.Path(r.URL.Path))
	respondError(w, http.StatusInternalServerError, "InternalError", "internal server error")
}
