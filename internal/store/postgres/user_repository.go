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

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/scoutzone/scoutzone/internal/identity"
)

// UserRepository implements identity.Repository
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByEmail retrieves a user row by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*identity.User, error) {
	var user identity.User
	var departmentID sql.NullInt64

	err := r.db.pool.QueryRow(ctx, `
		SELECT id, department_id, first_name, last_name, parent_name,
		       photo_link, phone_number, email, password_hash,
		       active, is_internal, created_at
		FROM users
		WHERE email = $1
	`, email).Scan(
		&user.ID, &departmentID, &user.FirstName, &user.LastName, &user.ParentName,
		&user.PhotoLink, &user.PhoneNumber, &user.Email, &user.PasswordHash,
		&user.Active, &user.IsInternal, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if departmentID.Valid {
		user.DepartmentID = &departmentID.Int64
	}

	return &user, nil
}

// InfoByEmail resolves the full identity: user row joined with its
// department's organization and its most recent role assignment, plus the
// EULA acceptance flag.
func (r *UserRepository) InfoByEmail(ctx context.Context, email string) (*identity.UserInfo, error) {
	var info identity.UserInfo
	var departmentID, organizationID sql.NullInt64
	var role sql.NullString

	err := r.db.pool.QueryRow(ctx, `
		SELECT u.id, u.email, u.first_name, u.last_name, u.parent_name,
		       u.photo_link, u.phone_number, u.department_id, u.active,
		       u.is_internal, d.organization_id, latest_role.rolename
		FROM users u
		LEFT JOIN departments d ON d.id = u.department_id
		LEFT JOIN LATERAL (
			SELECT ro.rolename
			FROM user_roles ur
			JOIN roles ro ON ro.id = ur.role_id
			WHERE ur.user_id = u.id
			ORDER BY ur.id DESC
			LIMIT 1
		) latest_role ON TRUE
		WHERE u.email = $1
	`, email).Scan(
		&info.ID, &info.Email, &info.FirstName, &info.LastName, &info.ParentName,
		&info.PhotoLink, &info.PhoneNumber, &departmentID, &info.Active,
		&info.IsInternal, &organizationID, &role,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to resolve identity: %w", err)
	}

	if departmentID.Valid {
		info.DepartmentID = &departmentID.Int64
	}
	if organizationID.Valid {
		info.OrganizationID = &organizationID.Int64
	}
	if role.Valid {
		info.Role = identity.RoleType(role.String)
	}

	if info.OrganizationID != nil {
		err = r.db.pool.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM user_agreements
				WHERE user_id = $1 AND organization_id = $2 AND agreement_type = $3
			)
		`, info.ID, *info.OrganizationID, string(identity.AgreementEULA)).Scan(&info.EULAAccepted)
		if err != nil {
			return nil, fmt.Errorf("failed to check agreements: %w", err)
		}
	}

	return &info, nil
}

// RolesByUserIDs resolves the current (most recent) role of each user
func (r *UserRepository) RolesByUserIDs(ctx context.Context, userIDs []int64) (map[int64]identity.RoleType, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT DISTINCT ON (ur.user_id) ur.user_id, ro.rolename
		FROM user_roles ur
		JOIN roles ro ON ro.id = ur.role_id
		WHERE ur.user_id = ANY($1)
		ORDER BY ur.user_id, ur.id DESC
	`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}
	defer rows.Close()

	roles := make(map[int64]identity.RoleType, len(userIDs))
	for rows.Next() {
		var userID int64
		var rolename string
		if err := rows.Scan(&userID, &rolename); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles[userID] = identity.RoleType(rolename)
	}
	return roles, rows.Err()
}

// AcceptAgreement records an acceptance; a duplicate acceptance is
// detected by the unique key, not a prior read.
func (r *UserRepository) AcceptAgreement(ctx context.Context, userID, organizationID int64, agreementType identity.AgreementType) error {
	tag, err := r.db.pool.Exec(ctx, `
		INSERT INTO user_agreements (user_id, organization_id, agreement_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, organization_id, agreement_type) DO NOTHING
	`, userID, organizationID, string(agreementType))
	if err != nil {
		return fmt.Errorf("failed to record agreement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return identity.ErrAgreementAccepted
	}
	return nil
}
