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
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/scoutzone/scoutzone/internal/audit"
	"github.com/scoutzone/scoutzone/internal/observability/metrics"
	"github.com/scoutzone/scoutzone/internal/rights"
)

// ListRightsBySourceType returns every grant across resources of the
// requested type
func (h *Handler) ListRightsBySourceType(w http.ResponseWriter, r *http.Request) {
	sourceType := rights.SourceType(r.URL.Query().Get("source_type"))
	if !sourceType.Valid() {
		respondError(w, http.StatusBadRequest, "BadRequest", "unknown source_type")
		return
	}

	grants, err := h.rightsService.RightsBySourceType(r.Context(), sourceType)
	if err != nil {
		respondDomainError(r, w, err)
		return
	}

	respondJSON(w, http.StatusOK, grants)
}

// ListSourceGrants returns the holders of rights on one resource,
// grouped by right type. An optional right_type query narrows the list.
func (h *Handler) ListSourceGrants(w http.ResponseWriter, r *http.Request) {
	sourceID, ok := urlInt64(w, r, "sourceID")
	if !ok {
		return
	}
	sourceType := rights.SourceType(r.URL.Query().Get("source_type"))
	if !sourceType.Valid() {
		respondError(w, http.StatusBadRequest, "BadRequest", "unknown source_type")
		return
	}

	var rightType *rights.RightType
	if raw := r.URL.Query().Get("right_type"); raw != "" {
		rt := rights.RightType(raw)
		if !rt.Valid() {
			respondError(w, http.StatusBadRequest, "BadRequest", "unknown right_type")
			return
		}
		rightType = &rt
	}

	grouped, err := h.rightsService.GrantedUsersBySource(r.Context(), sourceID, sourceType, rightType)
	if err != nil {
		respondDomainError(r, w, err)
		return
	}

	respondJSON(w, http.StatusOK, grouped)
}

// ChangeRightsRequest is the bulk grant/revoke payload for one resource
type ChangeRightsRequest struct {
	SourceType   rights.SourceType  `json:"source_type"`
	RightType    rights.RightType   `json:"right_type"`
	Constraints  rights.Constraints `json:"constraints"`
	UserIDsIn    []int64            `json:"user_ids_in"`
	UserIDsOut   []int64            `json:"user_ids_out"`
	BypassNested bool               `json:"bypass_nested"`
}

// ChangeRights grants the right to user_ids_in and revokes it from
// user_ids_out as one atomic operation
func (h *Handler) ChangeRights(w http.ResponseWriter, r *http.Request) {
	sourceID, ok := urlInt64(w, r, "sourceID")
	if !ok {
		return
	}

	var req ChangeRightsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "BadRequest", "invalid request body")
		return
	}

	changed, err := h.orchestrator.ChangeRights(r.Context(), GetUser(r.Context()), rights.ChangeRequest{
		SourceID:     sourceID,
		SourceType:   req.SourceType,
		RightType:    req.RightType,
		Constraints:  req.Constraints,
		UserIDsIn:    req.UserIDsIn,
		UserIDsOut:   req.UserIDsOut,
		BypassNested: req.BypassNested,
	})
	if err != nil {
		h.metrics.RightsChanges.Add(r.Context(), 1, metrics.Outcome("failure"))
		respondDomainError(r, w, err)
		return
	}

	h.metrics.RightsChanges.Add(r.Context(), 1, metrics.Outcome("success"))
	respondJSON(w, http.StatusOK, map[string]bool{"changed": changed})
}

// GetSubjectRight returns the subject's single effective right on the
// resource, the one with the highest score
func (h *Handler) GetSubjectRight(w http.ResponseWriter, r *http.Request) {
	sourceID, ok := urlInt64(w, r, "sourceID")
	if !ok {
		return
	}
	subjectID, ok := urlInt64(w, r, "subjectID")
	if !ok {
		return
	}
	sourceType := rights.SourceType(r.URL.Query().Get("source_type"))
	if !sourceType.Valid() {
		respondError(w, http.StatusBadRequest, "BadRequest", "unknown source_type")
		return
	}

	grant, err := h.rightsService.ResolveBySubject(r.Context(), subjectID, sourceID, sourceType)
	if err != nil {
		respondDomainError(r, w, err)
		return
	}

	respondJSON(w, http.StatusOK, grant)
}

// UpdateSubjectRightRequest carries the replacement right
type UpdateSubjectRightRequest struct {
	SourceType rights.SourceType `json:"source_type"`
	RightType  rights.RightType  `json:"right_type"`
}

// UpdateSubjectRight repoints the subject's current grant at a different
// right type on the same resource
func (h *Handler) UpdateSubjectRight(w http.ResponseWriter, r *http.Request) {
	sourceID, ok := urlInt64(w, r, "sourceID")
	if !ok {
		return
	}
	subjectID, ok := urlInt64(w, r, "subjectID")
	if !ok {
		return
	}

	var req UpdateSubjectRightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "BadRequest", "invalid request body")
		return
	}
	if !req.SourceType.Valid() || !req.RightType.Valid() {
		respondError(w, http.StatusBadRequest, "BadRequest", "unknown source_type or right_type")
		return
	}

	actor := GetUser(r.Context())
	if err := h.rightsService.CanGrant(r.Context(), actor, sourceID, req.SourceType, false); err != nil {
		respondDomainError(r, w, err)
		return
	}

	spec, err := h.rightsService.UpdateSubjectRight(r.Context(), subjectID, sourceID, req.SourceType, req.RightType)
	if err != nil {
		respondDomainError(r, w, err)
		return
	}

	respondJSON(w, http.StatusOK, spec)
}

// RevokeSubjectRight removes the subject's grant on the resource
func (h *Handler) RevokeSubjectRight(w http.ResponseWriter, r *http.Request) {
	sourceID, ok := urlInt64(w, r, "sourceID")
	if !ok {
		return
	}
	subjectID, ok := urlInt64(w, r, "subjectID")
	if !ok {
		return
	}

	grant, err := h.rightsService.RevokeSubjectGrant(r.Context(), subjectID, sourceID)
	if err != nil {
		respondDomainError(r, w, err)
		return
	}

	actor := GetUser(r.Context())
	h.auditLogger.Log(r.Context(), audit.Event{
		Type:      audit.TypeRightRevoked,
		ActorID:   actor.ID,
		Resource:  string(grant.SourceType),
		IPAddress: getIPAddress(r),
		UserAgent: r.UserAgent(),
		Metadata: map[string]any{
			"subject_id": subjectID,
			"source_id":  sourceID,
			"right_type": grant.RightType,
		},
	})

	respondJSON(w, http.StatusOK, grant)
}

// ListSubjectSources returns every resource of one type the subject can
// reach, flat and grouped by right type
func (h *Handler) ListSubjectSources(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := urlInt64(w, r, "userID")
	if !ok {
		return
	}
	sourceType := rights.SourceType(r.URL.Query().Get("source_type"))
	if !sourceType.Valid() {
		respondError(w, http.StatusBadRequest, "BadRequest", "unknown source_type")
		return
	}

	sources, err := h.rightsService.SourcesBySubject(r.Context(), subjectID, sourceType)
	if err != nil {
		respondDomainError(r, w, err)
		return
	}

	respondJSON(w, http.StatusOK, sources)
}

func urlInt64(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "BadRequest", "invalid "+name)
		return 0, false
	}
	return id, true
}
