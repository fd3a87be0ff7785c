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
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/scoutzone/scoutzone/internal/rights"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so every query
// method works identically inside and outside a transaction. pgx.Tx.Begin
// opens a savepoint, which gives InTx nested-rollback semantics for free.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// RightsRepository implements rights.Repository
type RightsRepository struct {
	q querier
}

// NewRightsRepository creates a new rights repository
func NewRightsRepository(db *DB) *RightsRepository {
	return &RightsRepository{q: db.pool}
}

// InTx runs fn against a transactional copy of the repository. An error
// from fn rolls the unit back; nested InTx calls become savepoints.
func (r *RightsRepository) InTx(ctx context.Context, fn func(rights.Repository) error) error {
	tx, err := r.q.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&RightsRepository{q: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetOrCreateSpec resolves the permission slot, creating it atomically.
// The no-op DO UPDATE makes the statement return the row in both the
// created and the already-exists case, so concurrent callers observe the
// same id without a read-then-write race.
func (r *RightsRepository) GetOrCreateSpec(ctx context.Context, sourceID int64, sourceType rights.SourceType, rightType rights.RightType) (*rights.SpecRight, error) {
	spec := rights.SpecRight{
		SourceID:   sourceID,
		SourceType: sourceType,
		RightType:  rightType,
	}

	err := r.q.QueryRow(ctx, `
		INSERT INTO spec_rights (source_id, source_type, right_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (source_id, source_type, right_type)
		DO UPDATE SET right_type = EXCLUDED.right_type
		RETURNING id
	`, sourceID, string(sourceType), string(rightType)).Scan(&spec.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create spec right: %w", err)
	}

	return &spec, nil
}

// UpdateSpec repoints an existing slot at a new key
func (r *RightsRepository) UpdateSpec(ctx context.Context, specID, sourceID int64, sourceType rights.SourceType, rightType rights.RightType) (*rights.SpecRight, error) {
	var spec rights.SpecRight
	var st, rt string

	err := r.q.QueryRow(ctx, `
		UPDATE spec_rights
		SET source_id = $2, source_type = $3, right_type = $4
		WHERE id = $1
		RETURNING id, source_id, source_type, right_type
	`, specID, sourceID, string(sourceType), string(rightType)).Scan(
		&spec.ID, &spec.SourceID, &st, &rt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, rights.ErrRightsNotFound
		}
		// repointing at a key held by another slot trips the unique index
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return nil, rights.ErrConstraintViolation
		}
		return nil, fmt.Errorf("failed to update spec right: %w", err)
	}

	spec.SourceType = rights.SourceType(st)
	spec.RightType = rights.RightType(rt)
	return &spec, nil
}

// UpsertGrants binds every subject to the slot in one statement. A
// subject's existing grant on the same resource is replaced in place:
// the unique (subject, source) key turns a re-grant into an update of
// right_id and constraints.
func (r *RightsRepository) UpsertGrants(ctx context.Context, subjectIDs []int64, constraints rights.Constraints, spec *rights.SpecRight) error {
	payload, err := json.Marshal(constraints)
	if err != nil {
		return fmt.Errorf("failed to encode constraints: %w", err)
	}

	_, err = r.q.Exec(ctx, `
		INSERT INTO user_rights (subject_id, right_id, source_id, source_type, constraints)
		SELECT uid, $2, $3, $4, $5
		FROM unnest($1::bigint[]) AS uid
		ON CONFLICT (subject_id, source_id, source_type)
		DO UPDATE SET right_id = EXCLUDED.right_id, constraints = EXCLUDED.constraints
	`, subjectIDs, spec.ID, spec.SourceID, string(spec.SourceType), payload)
	if err != nil {
		return fmt.Errorf("failed to upsert grants: %w", err)
	}
	return nil
}

// DeleteGrants removes the subjects' bindings to the slot
func (r *RightsRepository) DeleteGrants(ctx context.Context, subjectIDs []int64, rightID int64) (int64, error) {
	tag, err := r.q.Exec(ctx, `
		DELETE FROM user_rights
		WHERE right_id = $1 AND subject_id = ANY($2)
	`, rightID, subjectIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to delete grants: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteSubjectGrant removes a subject's grant on a resource, regardless
// of source type, returning what was removed.
func (r *RightsRepository) DeleteSubjectGrant(ctx context.Context, subjectID, sourceID int64) (*rights.Grant, error) {
	var g rights.Grant
	var st, rt string
	var payload []byte

	err := r.q.QueryRow(ctx, `
		DELETE FROM user_rights ur
		USING spec_rights sr
		WHERE sr.id = ur.right_id AND ur.subject_id = $1 AND ur.source_id = $2
		RETURNING sr.id, sr.right_type, sr.source_id, sr.source_type,
		          ur.id, ur.right_id, ur.subject_id, ur.constraints
	`, subjectID, sourceID).Scan(
		&g.SpecRightID, &rt, &g.SourceID, &st,
		&g.UserRightID, &g.RightID, &g.SubjectID, &payload,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, rights.ErrRightsNotFound
		}
		return nil, fmt.Errorf("failed to delete subject grant: %w", err)
	}

	g.SourceType = rights.SourceType(st)
	g.RightType = rights.RightType(rt)
	if err := json.Unmarshal(payload, &g.Constraints); err != nil {
		return nil, fmt.Errorf("failed to decode constraints: %w", err)
	}
	return &g, nil
}

// grantQuery is the shared join every listing builds on.
const grantQuery = `
	SELECT sr.id, sr.right_type, sr.source_id, sr.source_type,
	       ur.id, ur.right_id, ur.subject_id, ur.constraints
	FROM spec_rights sr
	JOIN user_rights ur ON sr.id = ur.right_id
`

// ListBySubject returns every grant a subject holds on one resource
func (r *RightsRepository) ListBySubject(ctx context.Context, subjectID, sourceID int64, sourceType rights.SourceType) ([]rights.Grant, error) {
	rows, err := r.q.Query(ctx, grantQuery+`
		WHERE ur.subject_id = $1 AND sr.source_id = $2 AND sr.source_type = $3
	`, subjectID, sourceID, string(sourceType))
	if err != nil {
		return nil, fmt.Errorf("failed to query subject grants: %w", err)
	}
	defer rows.Close()

	return scanGrants(rows)
}

// ListBySource returns every grant on a resource with subject display
// fields, ordered by right type for stable grouping.
func (r *RightsRepository) ListBySource(ctx context.Context, sourceID int64, sourceType rights.SourceType, rightType *rights.RightType) ([]rights.Grant, error) {
	query := `
		SELECT sr.id, sr.right_type, sr.source_id, sr.source_type,
		       ur.id, ur.right_id, ur.subject_id, ur.constraints,
		       u.first_name, u.last_name, u.parent_name, u.photo_link
		FROM spec_rights sr
		JOIN user_rights ur ON sr.id = ur.right_id
		JOIN users u ON u.id = ur.subject_id
		WHERE sr.source_id = $1 AND sr.source_type = $2
	`
	args := []any{sourceID, string(sourceType)}
	if rightType != nil {
		query += ` AND sr.right_type = $3`
		args = append(args, string(*rightType))
	}
	query += ` ORDER BY sr.right_type`

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query source grants: %w", err)
	}
	defer rows.Close()

	var grants []rights.Grant
	for rows.Next() {
		var g rights.Grant
		var st, rt string
		var payload []byte
		if err := rows.Scan(
			&g.SpecRightID, &rt, &g.SourceID, &st,
			&g.UserRightID, &g.RightID, &g.SubjectID, &payload,
			&g.FirstName, &g.LastName, &g.ParentName, &g.PhotoLink,
		); err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		g.SourceType = rights.SourceType(st)
		g.RightType = rights.RightType(rt)
		if err := json.Unmarshal(payload, &g.Constraints); err != nil {
			return nil, fmt.Errorf("failed to decode constraints: %w", err)
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// ListBySourceType returns every grant across resources of one type
func (r *RightsRepository) ListBySourceType(ctx context.Context, sourceType rights.SourceType) ([]rights.Grant, error) {
	rows, err := r.q.Query(ctx, grantQuery+`
		WHERE sr.source_type = $1
	`, string(sourceType))
	if err != nil {
		return nil, fmt.Errorf("failed to query grants by source type: %w", err)
	}
	defer rows.Close()

	return scanGrants(rows)
}

// ListSubjectSources returns every grant a subject holds across resources
// of one type, ordered by right type for stable grouping.
func (r *RightsRepository) ListSubjectSources(ctx context.Context, subjectID int64, sourceType rights.SourceType) ([]rights.Grant, error) {
	rows, err := r.q.Query(ctx, grantQuery+`
		WHERE ur.subject_id = $1 AND sr.source_type = $2
		ORDER BY sr.right_type
	`, subjectID, string(sourceType))
	if err != nil {
		return nil, fmt.Errorf("failed to query subject sources: %w", err)
	}
	defer rows.Close()

	return scanGrants(rows)
}

func scanGrants(rows pgx.Rows) ([]rights.Grant, error) {
	var grants []rights.Grant
	for rows.Next() {
		var g rights.Grant
		var st, rt string
		var payload []byte
		if err := rows.Scan(
			&g.SpecRightID, &rt, &g.SourceID, &st,
			&g.UserRightID, &g.RightID, &g.SubjectID, &payload,
		); err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		g.SourceType = rights.SourceType(st)
		g.RightType = rights.RightType(rt)
		if err := json.Unmarshal(payload, &g.Constraints); err != nil {
			return nil, fmt.Errorf("failed to decode constraints: %w", err)
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}
