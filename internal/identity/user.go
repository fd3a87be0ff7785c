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

package identity

import (
	"context"
	"errors"
	"time"
)

// Domain errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveUser       = errors.New("user is inactive")
	ErrInvalidRole        = errors.New("invalid user role")
	ErrAgreementAccepted  = errors.New("agreement already accepted")
)

// RoleType is the HR role assigned to a user. Role names are stored
// verbatim in the roles table.
type RoleType string

const (
	RoleHRRecruiter      RoleType = "HR_RECRUITER"
	RoleHRSeniorEmployee RoleType = "HR_SENIOR_EMPLOYEE"
	RoleHRDirector       RoleType = "HR_DIRECTOR"
	RoleUserMaster       RoleType = "USER_MASTER"
	RoleHREmployee       RoleType = "HR_EMPLOYEE"
	RoleServiceUser      RoleType = "SERVICE_USER"
)

// Roles lists every known role, in seed order.
var Roles = []RoleType{
	RoleHRRecruiter,
	RoleHRSeniorEmployee,
	RoleHRDirector,
	RoleUserMaster,
	RoleHREmployee,
	RoleServiceUser,
}

// Valid reports whether the role is one of the known HR roles.
func (r RoleType) Valid() bool {
	switch r {
	case RoleHRRecruiter, RoleHRSeniorEmployee, RoleHRDirector,
		RoleUserMaster, RoleHREmployee, RoleServiceUser:
		return true
	}
	return false
}

// AgreementType identifies a document a user can accept once per organization.
type AgreementType string

const AgreementEULA AgreementType = "EULA"

// User is the persisted credential-store row.
type User struct {
	ID           int64
	DepartmentID *int64
	FirstName    string
	LastName     string
	ParentName   string
	PhotoLink    string
	PhoneNumber  string
	Email        string
	PasswordHash string
	Active       bool
	IsInternal   bool
	CreatedAt    time.Time
}

// UserInfo is the resolved identity handed to protected operations:
// the user row joined with its organization linkage and current role.
type UserInfo struct {
	ID             int64    `json:"id"`
	Email          string   `json:"email"`
	FirstName      string   `json:"first_name"`
	LastName       string   `json:"last_name"`
	ParentName     string   `json:"parent_name,omitempty"`
	PhotoLink      string   `json:"photo_link,omitempty"`
	PhoneNumber    string   `json:"phone_number,omitempty"`
	DepartmentID   *int64   `json:"department_id,omitempty"`
	OrganizationID *int64   `json:"organization_id,omitempty"`
	Role           RoleType `json:"role"`
	Active         bool     `json:"active"`
	IsInternal     bool     `json:"is_internal"`
	EULAAccepted   bool     `json:"is_eula_accepted"`
}

// Repository defines the interface for user persistence
type Repository interface {
	// GetByEmail retrieves a user row (with password hash) by email
	GetByEmail(ctx context.Context, email string) (*User, error)

	// InfoByEmail resolves the full identity: role, organization linkage
	// and agreement state
	InfoByEmail(ctx context.Context, email string) (*UserInfo, error)

	// RolesByUserIDs resolves the current role of each given user
	RolesByUserIDs(ctx context.Context, userIDs []int64) (map[int64]RoleType, error)

	// AcceptAgreement records an agreement acceptance; returns
	// ErrAgreementAccepted when the same acceptance already exists
	AcceptAgreement(ctx context.Context, userID, organizationID int64, agreementType AgreementType) error
}
