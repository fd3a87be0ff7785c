package rights

import (
	"context"
	"errors"

	"github.com/scoutzone/scoutzone/internal/identity"
)

// Domain errors
var (
	ErrRightsNotFound      = errors.New("rights not found")
	ErrInsufficientRights  = errors.New("insufficient rights")
	ErrRoleRightMismatch   = errors.New("right does not match subject role")
	ErrConstraintViolation = errors.New("constraint validation failed")
)

// SpecRight is a grantable permission slot: one right kind on one resource.
// Unique by (source_id, source_type, right_type); created lazily on first
// grant and never garbage-collected when its last holder is revoked.
type SpecRight struct {
	ID         int64      `json:"id"`
	SourceID   int64      `json:"source_id"`
	SourceType SourceType `json:"source_type"`
	RightType  RightType  `json:"right_type"`
}

// UserRight binds a subject to a SpecRight. A subject holds at most one
// UserRight per resource; a later grant on the same resource replaces it.
type UserRight struct {
	ID          int64       `json:"id"`
	SubjectID   int64       `json:"subject_id"`
	RightID     int64       `json:"right_id"`
	Constraints Constraints `json:"constraints"`
}

// Grant is the joined SpecRight/UserRight row the engine resolves over.
// Subject display fields are populated only by source-scoped listings.
type Grant struct {
	SpecRightID int64       `json:"spec_right_id"`
	UserRightID int64       `json:"user_right_id"`
	RightID     int64       `json:"right_id"`
	SubjectID   int64       `json:"subject_id"`
	SourceID    int64       `json:"source_id"`
	SourceType  SourceType  `json:"source_type"`
	RightType   RightType   `json:"right_type"`
	Constraints Constraints `json:"constraints"`

	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	ParentName string `json:"parent_name,omitempty"`
	PhotoLink  string `json:"photo_link,omitempty"`
}

// GrantedSources groups every resource of one type a subject can reach:
// flat id list plus ids grouped by right type.
type GrantedSources struct {
	AssignedSourceIDs []int64               `json:"assigned_source_ids"`
	Grouped           map[RightType][]int64 `json:"grouped"`
}

// Repository defines the interface for rights persistence
type Repository interface {
	// GetOrCreateSpec resolves the permission slot for the key, creating it
	// atomically when absent. Concurrent callers observe the same row.
	GetOrCreateSpec(ctx context.Context, sourceID int64, sourceType SourceType, rightType RightType) (*SpecRight, error)

	// UpdateSpec repoints an existing slot at a new (source, right) key
	UpdateSpec(ctx context.Context, specID, sourceID int64, sourceType SourceType, rightType RightType) (*SpecRight, error)

	// UpsertGrants binds every subject to the slot; an existing grant on the
	// same resource is replaced in place (right and constraints)
	UpsertGrants(ctx context.Context, subjectIDs []int64, constraints Constraints, spec *SpecRight) error

	// DeleteGrants removes the subjects' bindings to the slot and reports
	// how many rows went away; zero is not an error
	DeleteGrants(ctx context.Context, subjectIDs []int64, rightID int64) (int64, error)

	// DeleteSubjectGrant removes a subject's single grant on a resource,
	// returning the removed grant or ErrRightsNotFound
	DeleteSubjectGrant(ctx context.Context, subjectID, sourceID int64) (*Grant, error)

	// ListBySubject returns every grant a subject holds on one resource
	ListBySubject(ctx context.Context, subjectID, sourceID int64, sourceType SourceType) ([]Grant, error)

	// ListBySource returns every grant on a resource, with subject display
	// fields, optionally filtered by right type
	ListBySource(ctx context.Context, sourceID int64, sourceType SourceType, rightType *RightType) ([]Grant, error)

	// ListBySourceType returns every grant across resources of one type
	ListBySourceType(ctx context.Context, sourceType SourceType) ([]Grant, error)

	// ListSubjectSources returns every grant a subject holds across
	// resources of one type
	ListSubjectSources(ctx context.Context, subjectID int64, sourceType SourceType) ([]Grant, error)

	// InTx runs fn against a transactional view of the repository; fn's
	// error rolls the whole unit back. Nested calls use savepoints.
	InTx(ctx context.Context, fn func(Repository) error) error
}

// RoleDirectory resolves current roles for eligibility checks.
// *identity.Service's repository satisfies it.
type RoleDirectory interface {
	RolesByUserIDs(ctx context.Context, userIDs []int64) (map[int64]identity.RoleType, error)
}
