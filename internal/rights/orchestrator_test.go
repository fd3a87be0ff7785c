package rights

import (
	"context"
	"errors"
	"testing"

	"github.com/scoutzone/scoutzone/internal/audit"
	"github.com/scoutzone/scoutzone/internal/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAudit struct {
	events []audit.Event
}

func (m *mockAudit) Log(ctx context.Context, event audit.Event) {
	m.events = append(m.events, event)
}

func newOrchestrator(repo *mockRepo, roles *mockRoles) (*Orchestrator, *mockAudit) {
	sink := &mockAudit{}
	svc := NewService(repo, roles)
	return NewOrchestrator(svc, repo, sink), sink
}

func TestChangeRightsGrantAndRevoke(t *testing.T) {
	repo := newMockRepo()
	roles := &mockRoles{roles: map[int64]identity.RoleType{
		1: identity.RoleHRRecruiter,
		2: identity.RoleHRRecruiter,
	}}
	o, sink := newOrchestrator(repo, roles)

	changed, err := o.ChangeRights(context.Background(), actor(100, identity.RoleHRDirector), ChangeRequest{
		SourceID:   10,
		SourceType: SourceVacancy,
		RightType:  RightManage,
		UserIDsIn:  []int64{1, 2},
	})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Len(t, repo.grants, 2)
	require.Len(t, sink.events, 1)
	assert.Equal(t, audit.TypeRightGranted, sink.events[0].Type)

	// revoke one of them against the same slot
	changed, err = o.ChangeRights(context.Background(), actor(100, identity.RoleHRDirector), ChangeRequest{
		SourceID:   10,
		SourceType: SourceVacancy,
		RightType:  RightManage,
		UserIDsOut: []int64{2},
	})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Len(t, repo.grants, 1)
	assert.Equal(t, int64(1), repo.grants[0].SubjectID)
}

func TestChangeRightsReplacesExistingGrant(t *testing.T) {
	repo := newMockRepo()
	roles := &mockRoles{roles: map[int64]identity.RoleType{1: identity.RoleHRRecruiter}}
	o, _ := newOrchestrator(repo, roles)
	director := actor(100, identity.RoleHRDirector)

	_, err := o.ChangeRights(context.Background(), director, ChangeRequest{
		SourceID: 10, SourceType: SourceVacancy, RightType: RightViewAll, UserIDsIn: []int64{1},
	})
	require.NoError(t, err)

	_, err = o.ChangeRights(context.Background(), director, ChangeRequest{
		SourceID: 10, SourceType: SourceVacancy, RightType: RightManage, UserIDsIn: []int64{1},
	})
	require.NoError(t, err)

	// replacement, not accumulation
	require.Len(t, repo.grants, 1)
	assert.Equal(t, RightManage, repo.grants[0].RightType)
}

func TestChangeRightsValidationOrder(t *testing.T) {
	repo := newMockRepo()
	roles := &mockRoles{roles: map[int64]identity.RoleType{1: identity.RoleHREmployee}}
	o, sink := newOrchestrator(repo, roles)
	director := actor(100, identity.RoleHRDirector)
	ctx := context.Background()

	// bad source type
	_, err := o.ChangeRights(ctx, director, ChangeRequest{
		SourceID: 10, SourceType: "NOPE", RightType: RightManage, UserIDsIn: []int64{1},
	})
	assert.ErrorIs(t, err, ErrConstraintViolation)

	// bad constraints
	_, err = o.ChangeRights(ctx, director, ChangeRequest{
		SourceID:    10,
		SourceType:  SourceVacancy,
		RightType:   RightManage,
		Constraints: Constraints{HiddenFields: []HiddenField{HiddenSalaryFrom}},
		UserIDsIn:   []int64{1},
	})
	assert.ErrorIs(t, err, ErrConstraintViolation)

	// ineligible target role
	_, err = o.ChangeRights(ctx, director, ChangeRequest{
		SourceID: 10, SourceType: SourceVacancy, RightType: RightManage, UserIDsIn: []int64{1},
	})
	assert.ErrorIs(t, err, ErrRoleRightMismatch)

	// unauthorized actor
	_, err = o.ChangeRights(ctx, actor(5, identity.RoleHREmployee), ChangeRequest{
		SourceID: 10, SourceType: SourceVacancy, RightType: RightViewPublic, UserIDsIn: []int64{1},
	})
	assert.ErrorIs(t, err, ErrInsufficientRights)

	// no failed attempt touched storage or the audit trail
	assert.Empty(t, repo.grants)
	assert.Empty(t, repo.calls)
	assert.Empty(t, sink.events)
}

func TestChangeRightsRollsBackOnFailure(t *testing.T) {
	repo := newMockRepo()
	repo.failUpsert = errors.New("constraint blew up")
	roles := &mockRoles{roles: map[int64]identity.RoleType{1: identity.RoleHRRecruiter}}
	o, sink := newOrchestrator(repo, roles)

	changed, err := o.ChangeRights(context.Background(), actor(100, identity.RoleHRDirector), ChangeRequest{
		SourceID: 10, SourceType: SourceVacancy, RightType: RightManage,
		UserIDsIn: []int64{1}, UserIDsOut: []int64{2},
	})
	require.Error(t, err)
	assert.False(t, changed)
	assert.Empty(t, repo.grants)
	assert.Empty(t, sink.events)
}

func TestChangeRightsHiddenFieldsAccepted(t *testing.T) {
	repo := newMockRepo()
	roles := &mockRoles{roles: map[int64]identity.RoleType{1: identity.RoleHREmployee}}
	o, _ := newOrchestrator(repo, roles)

	changed, err := o.ChangeRights(context.Background(), actor(100, identity.RoleHRDirector), ChangeRequest{
		SourceID:    10,
		SourceType:  SourceVacancy,
		RightType:   RightViewPublic,
		Constraints: Constraints{HiddenFields: []HiddenField{HiddenSalaryFrom, HiddenSalaryTo}},
		UserIDsIn:   []int64{1},
	})
	require.NoError(t, err)
	assert.True(t, changed)
	require.Len(t, repo.grants, 1)
	assert.Equal(t, []HiddenField{HiddenSalaryFrom, HiddenSalaryTo}, repo.grants[0].Constraints.HiddenFields)
}

func TestChangeRightsRevokeNeverHeld(t *testing.T) {
	repo := newMockRepo()
	o, _ := newOrchestrator(repo, &mockRoles{})

	// revoking a right nobody holds succeeds with zero rows
	changed, err := o.ChangeRights(context.Background(), actor(100, identity.RoleHRDirector), ChangeRequest{
		SourceID: 10, SourceType: SourceVacancy, RightType: RightManage, UserIDsOut: []int64{42},
	})
	require.NoError(t, err)
	assert.True(t, changed)
}
