package rights

import (
	"testing"

	"github.com/scoutzone/scoutzone/internal/identity"
	"github.com/stretchr/testify/assert"
)

func TestRightTypeScore(t *testing.T) {
	assert.Equal(t, 1, RightViewPublic.Score())
	assert.Equal(t, 2, RightViewAll.Score())
	assert.Equal(t, 3, RightManage.Score())
	assert.Equal(t, 4, RightDelete.Score())
	assert.Equal(t, 0, RightType("BOGUS").Score())
}

func TestSourceTypeValid(t *testing.T) {
	for _, st := range []SourceType{SourceUser, SourceVacancy, SourceVacancyRequest, SourceResume, SourceCandidature} {
		assert.True(t, st.Valid(), string(st))
	}
	assert.False(t, SourceType("DEPARTMENT").Valid())
	assert.False(t, SourceType("").Valid())
}

func TestRoleEligibleFor(t *testing.T) {
	tests := []struct {
		role     identity.RoleType
		right    RightType
		eligible bool
	}{
		{identity.RoleServiceUser, RightDelete, true},
		{identity.RoleUserMaster, RightDelete, true},
		{identity.RoleHRDirector, RightDelete, true},
		{identity.RoleHRDirector, RightManage, false},
		{identity.RoleHRRecruiter, RightManage, true},
		{identity.RoleHRRecruiter, RightViewAll, true},
		{identity.RoleHRRecruiter, RightDelete, false},
		{identity.RoleHRSeniorEmployee, RightViewPublic, true},
		{identity.RoleHRSeniorEmployee, RightViewAll, true},
		{identity.RoleHRSeniorEmployee, RightManage, false},
		{identity.RoleHREmployee, RightViewPublic, true},
		{identity.RoleHREmployee, RightViewAll, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.eligible, RoleEligibleFor(tt.role, tt.right),
			"%s / %s", tt.role, tt.right)
	}
}

func TestConstraintsValidate(t *testing.T) {
	hidden := Constraints{HiddenFields: []HiddenField{HiddenSalaryFrom}}

	assert.NoError(t, hidden.Validate(RightViewPublic, SourceVacancy))
	assert.ErrorIs(t, hidden.Validate(RightManage, SourceVacancy), ErrConstraintViolation)
	assert.ErrorIs(t, hidden.Validate(RightViewPublic, SourceResume), ErrConstraintViolation)

	// empty constraints are fine anywhere
	assert.NoError(t, Constraints{}.Validate(RightDelete, SourceUser))

	unknown := Constraints{HiddenFields: []HiddenField{"salary_currency"}}
	assert.ErrorIs(t, unknown.Validate(RightViewPublic, SourceVacancy), ErrConstraintViolation)
}
