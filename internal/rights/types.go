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
	"fmt"

	"github.com/scoutzone/scoutzone/internal/identity"
)

// SourceType is the kind of resource a right applies to. Resources
// themselves are owned by collaborating subsystems; source ids carry no
// referential integrity here.
type SourceType string

const (
	SourceUser           SourceType = "USER"
	SourceVacancy        SourceType = "VACANCY"
	SourceVacancyRequest SourceType = "VACANCY_REQUEST"
	SourceResume         SourceType = "RESUME"
	SourceCandidature    SourceType = "CANDIDATURE"
)

// Valid reports whether the source type is known.
func (t SourceType) Valid() bool {
	switch t {
	case SourceUser, SourceVacancy, SourceVacancyRequest, SourceResume, SourceCandidature:
		return true
	}
	return false
}

// RightType is an ordered permission kind. Precedence ascends
// VIEW_PUBLIC < VIEW_ALL < MANAGE < DELETE.
type RightType string

const (
	RightViewPublic RightType = "VIEW_PUBLIC"
	RightViewAll    RightType = "VIEW_ALL"
	RightManage     RightType = "MANAGE"
	RightDelete     RightType = "DELETE"
)

// rightScores is the precedence table behind Score. Resolution of a
// subject's effective right is max by score.
var rightScores = map[RightType]int{
	RightViewPublic: 1,
	RightViewAll:    2,
	RightManage:     3,
	RightDelete:     4,
}

// Score returns the precedence score of the right type; unknown types
// score zero and lose every comparison.
func (t RightType) Score() int {
	return rightScores[t]
}

// Valid reports whether the right type is known.
func (t RightType) Valid() bool {
	_, ok := rightScores[t]
	return ok
}

// HiddenField names a vacancy field a VIEW_PUBLIC grant may redact.
type HiddenField string

const (
	HiddenSalaryFrom HiddenField = "salary_from"
	HiddenSalaryTo   HiddenField = "salary_to"
)

// Valid reports whether the field is redactable.
func (f HiddenField) Valid() bool {
	return f == HiddenSalaryFrom || f == HiddenSalaryTo
}

// Constraints narrow what a grant exposes. Currently limited to hiding
// vacancy salary fields from VIEW_PUBLIC holders.
type Constraints struct {
	HiddenFields []HiddenField `json:"hidden_fields,omitempty"`
}

// Validate enforces the constraint invariant: non-empty hidden fields are
// permitted only for a VIEW_PUBLIC grant on a VACANCY.
func (c Constraints) Validate(rightType RightType, sourceType SourceType) error {
	if len(c.HiddenFields) == 0 {
		return nil
	}
	if rightType != RightViewPublic || sourceType != SourceVacancy {
		return fmt.Errorf("%w: hidden fields only for %s on %s",
			ErrConstraintViolation, RightViewPublic, SourceVacancy)
	}
	for _, f := range c.HiddenFields {
		if !f.Valid() {
			return fmt.Errorf("%w: unknown hidden field %q", ErrConstraintViolation, f)
		}
	}
	return nil
}

// roleRights restricts which right types a role may ever hold. Immutable,
// enforced at grant time.
var roleRights = map[identity.RoleType][]RightType{
	identity.RoleServiceUser:      {RightDelete},
	identity.RoleUserMaster:       {RightDelete},
	identity.RoleHRDirector:       {RightDelete},
	identity.RoleHRRecruiter:      {RightManage, RightViewAll},
	identity.RoleHRSeniorEmployee: {RightViewPublic, RightViewAll},
	identity.RoleHREmployee:       {RightViewPublic},
}

// RoleEligibleFor reports whether the role's eligibility set includes the
// right type.
func RoleEligibleFor(role identity.RoleType, rightType RightType) bool {
	for _, rt := range roleRights[role] {
		if rt == rightType {
			return true
		}
	}
	return false
}

// privilegedRoles always pass the grant-authority check.
var privilegedRoles = map[identity.RoleType]bool{
	identity.RoleUserMaster:  true,
	identity.RoleServiceUser: true,
	identity.RoleHRDirector:  true,
}
