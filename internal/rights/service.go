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
	"sort"

	"github.com/scoutzone/scoutzone/internal/identity"
)

// Service provides rights resolution and grant-precondition checks
type Service struct {
	repo  Repository
	roles RoleDirectory
}

// NewService creates a new rights service
func NewService(repo Repository, roles RoleDirectory) *Service {
	return &Service{
		repo:  repo,
		roles: roles,
	}
}

// HighestRight returns the grant with the maximum right-type score.
// Ties resolve to the first maximal element in iteration order.
func (s *Service) HighestRight(grants []Grant) (Grant, error) {
	if len(grants) == 0 {
		return Grant{}, ErrRightsNotFound
	}

	highest := grants[0]
	for _, g := range grants[1:] {
		if g.RightType.Score() > highest.RightType.Score() {
			highest = g
		}
	}
	return highest, nil
}

// ResolveBySubject computes the highest-precedence right a subject holds on
// a resource, or ErrRightsNotFound.
func (s *Service) ResolveBySubject(ctx context.Context, subjectID, sourceID int64, sourceType SourceType) (Grant, error) {
	grants, err := s.repo.ListBySubject(ctx, subjectID, sourceID, sourceType)
	if err != nil {
		return Grant{}, fmt.Errorf("failed to list subject rights: %w", err)
	}
	return s.HighestRight(grants)
}

// CanGrant checks whether the actor may change grants on the resource.
// Privileged roles always pass. bypassNested means authorization was
// already established on a parent resource by the caller. Everyone else
// needs exactly MANAGE on the resource itself.
func (s *Service) CanGrant(ctx context.Context, actor *identity.UserInfo, sourceID int64, sourceType SourceType, bypassNested bool) error {
	if privilegedRoles[actor.Role] {
		return nil
	}
	if bypassNested {
		return nil
	}

	grant, err := s.ResolveBySubject(ctx, actor.ID, sourceID, sourceType)
	if err != nil {
		return fmt.Errorf("actor %d holds no right on %s %d: %w",
			actor.ID, sourceType, sourceID, ErrInsufficientRights)
	}
	if grant.RightType != RightManage {
		return fmt.Errorf("actor %d holds %s, needs %s: %w",
			actor.ID, grant.RightType, RightManage, ErrInsufficientRights)
	}
	return nil
}

// CheckRoleEligibility verifies every subject's role may hold the right
// type. All-or-nothing: the first ineligible subject fails the batch.
func (s *Service) CheckRoleEligibility(ctx context.Context, rightType RightType, subjectIDs []int64) error {
	if len(subjectIDs) == 0 {
		return nil
	}

	roles, err := s.roles.RolesByUserIDs(ctx, subjectIDs)
	if err != nil {
		return fmt.Errorf("failed to resolve subject roles: %w", err)
	}

	for _, id := range subjectIDs {
		role, ok := roles[id]
		if !ok {
			return fmt.Errorf("subject %d has no role: %w", id, ErrRoleRightMismatch)
		}
		if !RoleEligibleFor(role, rightType) {
			return fmt.Errorf("subject %d with role %s cannot hold %s: %w",
				id, role, rightType, ErrRoleRightMismatch)
		}
	}
	return nil
}

// RightsBySourceType lists every grant across resources of one type.
func (s *Service) RightsBySourceType(ctx context.Context, sourceType SourceType) ([]Grant, error) {
	return s.repo.ListBySourceType(ctx, sourceType)
}

// GrantedUsersBySource groups the subjects granted on a resource by right
// type, optionally filtered to a single right type.
func (s *Service) GrantedUsersBySource(ctx context.Context, sourceID int64, sourceType SourceType, rightType *RightType) (map[RightType][]Grant, error) {
	grants, err := s.repo.ListBySource(ctx, sourceID, sourceType, rightType)
	if err != nil {
		return nil, fmt.Errorf("failed to list source grants: %w", err)
	}

	grouped := make(map[RightType][]Grant)
	for _, g := range grants {
		grouped[g.RightType] = append(grouped[g.RightType], g)
	}
	return grouped, nil
}

// SourcesBySubject lists the resources of one type a subject can reach,
// both flat and grouped by right type. Ids within each group keep query
// order; the flat list is sorted for a stable response.
func (s *Service) SourcesBySubject(ctx context.Context, subjectID int64, sourceType SourceType) (*GrantedSources, error) {
	grants, err := s.repo.ListSubjectSources(ctx, subjectID, sourceType)
	if err != nil {
		return nil, fmt.Errorf("failed to list subject sources: %w", err)
	}

	out := &GrantedSources{
		AssignedSourceIDs: make([]int64, 0, len(grants)),
		Grouped:           make(map[RightType][]int64),
	}
	for _, g := range grants {
		out.AssignedSourceIDs = append(out.AssignedSourceIDs, g.SourceID)
		out.Grouped[g.RightType] = append(out.Grouped[g.RightType], g.SourceID)
	}
	sort.Slice(out.AssignedSourceIDs, func(i, j int) bool {
		return out.AssignedSourceIDs[i] < out.AssignedSourceIDs[j]
	})
	return out, nil
}

// UpdateSubjectRight repoints a subject's current slot on a resource at a
// new (source type, right type) key. The subject's highest grant on the
// resource picks which slot moves.
func (s *Service) UpdateSubjectRight(ctx context.Context, subjectID, sourceID int64, sourceType SourceType, rightType RightType) (*SpecRight, error) {
	current, err := s.ResolveBySubject(ctx, subjectID, sourceID, sourceType)
	if err != nil {
		return nil, err
	}
	return s.repo.UpdateSpec(ctx, current.SpecRightID, sourceID, sourceType, rightType)
}

// RevokeSubjectGrant removes a subject's grant on a resource entirely.
func (s *Service) RevokeSubjectGrant(ctx context.Context, subjectID, sourceID int64) (*Grant, error) {
	return s.repo.DeleteSubjectGrant(ctx, subjectID, sourceID)
}
