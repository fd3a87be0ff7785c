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

package rights

import (
	"context"
	"fmt"

	"github.com/scoutzone/scoutzone/internal/audit"
	"github.com/scoutzone/scoutzone/internal/identity"
)

// ChangeRequest describes one bulk grant/revoke operation on a resource.
type ChangeRequest struct {
	SourceID     int64
	SourceType   SourceType
	RightType    RightType
	Constraints  Constraints
	UserIDsIn    []int64
	UserIDsOut   []int64
	BypassNested bool
}

// Orchestrator coordinates bulk grant/revoke operations as one atomic unit.
type Orchestrator struct {
	svc         *Service
	repo        Repository
	auditLogger audit.Logger
}

// NewOrchestrator creates a new right-grant orchestrator
func NewOrchestrator(svc *Service, repo Repository, auditLogger audit.Logger) *Orchestrator {
	return &Orchestrator{
		svc:         svc,
		repo:        repo,
		auditLogger: auditLogger,
	}
}

// ChangeRights validates the actor's authority and every target's role
// eligibility, then grants and revokes inside a single transaction.
// Ordering is fixed: authority check, eligibility check, spec resolution,
// grant, revoke. Nothing is mutated unless every check passes.
func (o *Orchestrator) ChangeRights(ctx context.Context, actor *identity.UserInfo, req ChangeRequest) (bool, error) {
	if !req.SourceType.Valid() {
		return false, fmt.Errorf("%w: unknown source type %q", ErrConstraintViolation, req.SourceType)
	}
	if !req.RightType.Valid() {
		return false, fmt.Errorf("%w: unknown right type %q", ErrConstraintViolation, req.RightType)
	}
	if err := req.Constraints.Validate(req.RightType, req.SourceType); err != nil {
		return false, err
	}

	if err := o.svc.CanGrant(ctx, actor, req.SourceID, req.SourceType, req.BypassNested); err != nil {
		return false, err
	}

	if err := o.svc.CheckRoleEligibility(ctx, req.RightType, req.UserIDsIn); err != nil {
		return false, err
	}

	err := o.repo.InTx(ctx, func(repo Repository) error {
		spec, err := repo.GetOrCreateSpec(ctx, req.SourceID, req.SourceType, req.RightType)
		if err != nil {
			return fmt.Errorf("failed to resolve spec right: %w", err)
		}

		if len(req.UserIDsIn) > 0 {
			if err := repo.UpsertGrants(ctx, req.UserIDsIn, req.Constraints, spec); err != nil {
				return fmt.Errorf("failed to grant rights: %w", err)
			}
		}

		if len(req.UserIDsOut) > 0 {
			if _, err := repo.DeleteGrants(ctx, req.UserIDsOut, spec.ID); err != nil {
				return fmt.Errorf("failed to revoke rights: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	if len(req.UserIDsIn) > 0 {
		o.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeRightGranted,
			ActorID:  actor.ID,
			Resource: fmt.Sprintf("%s/%d", req.SourceType, req.SourceID),
			Metadata: map[string]any{
				"right_type": string(req.RightType),
				"subjects":   req.UserIDsIn,
			},
		})
	}
	if len(req.UserIDsOut) > 0 {
		o.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeRightRevoked,
			ActorID:  actor.ID,
			Resource: fmt.Sprintf("%s/%d", req.SourceType, req.SourceID),
			Metadata: map[string]any{
				"right_type": string(req.RightType),
				"subjects":   req.UserIDsOut,
			},
		})
	}

	return true, nil
}
