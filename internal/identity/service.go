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
	"fmt"

	"github.com/scoutzone/scoutzone/internal/audit"
)

// Service provides identity-related business logic
type Service struct {
	repo        Repository
	hasher      *PasswordHasher
	auditLogger audit.Logger
}

// NewService creates a new identity service
func NewService(repo Repository, hasher *PasswordHasher, auditLogger audit.Logger) *Service {
	return &Service{
		repo:        repo,
		hasher:      hasher,
		auditLogger: auditLogger,
	}
}

// Authenticate verifies email/password credentials and resolves the full
// identity of an active user. The failure kind is deliberately specific:
// unknown email, inactive account and wrong password are distinct outcomes
// for the boundary layer to map.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*UserInfo, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeLoginFailed,
			Resource: email,
			Metadata: map[string]any{audit.AttrReason: "user_not_found"},
		})
		return nil, ErrUserNotFound
	}

	if !user.Active {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeLoginFailed,
			ActorID:  user.ID,
			Resource: email,
			Metadata: map[string]any{audit.AttrReason: "inactive"},
		})
		return nil, ErrInactiveUser
	}

	valid, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil || !valid {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeLoginFailed,
			ActorID:  user.ID,
			Resource: email,
			Metadata: map[string]any{audit.AttrReason: "invalid_password"},
		})
		return nil, ErrInvalidCredentials
	}

	info, err := s.repo.InfoByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve identity: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeLoginSuccess,
		ActorID:  user.ID,
		Resource: email,
	})

	return info, nil
}

// InfoByEmail resolves the full identity for an email
func (s *Service) InfoByEmail(ctx context.Context, email string) (*UserInfo, error) {
	return s.repo.InfoByEmail(ctx, email)
}

// AcceptAgreement records an agreement acceptance for the user within its
// organization. Accepting the same agreement twice is an error.
func (s *Service) AcceptAgreement(ctx context.Context, user *UserInfo, agreementType AgreementType) error {
	if user.OrganizationID == nil {
		return fmt.Errorf("user %d has no organization: %w", user.ID, ErrUserNotFound)
	}

	if err := s.repo.AcceptAgreement(ctx, user.ID, *user.OrganizationID, agreementType); err != nil {
		return err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeAgreementAccepted,
		ActorID:  user.ID,
		Resource: string(agreementType),
	})

	return nil
}
