// Copyright 2026 The Agentdesk Authors
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

package pool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agentdesk/agentdesk/internal/audit"
)

// Service manages the pool of pre-provisioned bot identities
type Service struct {
	repo         Repository
	validator    Validator
	cipher       *Cipher
	auditLogger  audit.Logger
	lowThreshold int
}

// NewService creates a new pool service
func NewService(repo Repository, validator Validator, cipher *Cipher, auditLogger audit.Logger, lowThreshold int) *Service {
	return &Service{
		repo:         repo,
		validator:    validator,
		cipher:       cipher,
		auditLogger:  auditLogger,
		lowThreshold: lowThreshold,
	}
}

// Add validates a token against the external provider and persists a new
// available resource with the token sealed at rest.
func (s *Service) Add(ctx context.Context, token string) (*Resource, error) {
	identity, err := s.validator.Validate(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResource, err)
	}

	sealed, err := s.cipher.Seal(token)
	if err != nil {
		return nil, fmt.Errorf("failed to seal resource token: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate resource id: %w", err)
	}

	resource := &Resource{
		ID:          id.String(),
		Token:       sealed,
		Username:    identity.Username,
		DisplayName: identity.DisplayName,
		Status:      StatusAvailable,
		CreatedAt:   time.Now(),
	}

	if err := s.repo.Create(ctx, resource); err != nil {
		return nil, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeResourceAdded,
		Resource: resource.ID,
		Metadata: map[string]any{"username": identity.Username},
	})

	resource.Token = token
	return resource, nil
}

// BulkAdd registers several tokens, counting invalid ones instead of
// failing the batch
func (s *Service) BulkAdd(ctx context.Context, tokens []string) (added, invalid int, err error) {
	for _, token := range tokens {
		switch _, addErr := s.Add(ctx, token); {
		case addErr == nil:
			added++
		case isRecoverableAdd(addErr):
			invalid++
		default:
			return added, invalid, addErr
		}
	}
	return added, invalid, nil
}

func isRecoverableAdd(err error) bool {
	return errors.Is(err, ErrInvalidResource) || errors.Is(err, ErrAlreadyInPool)
}

// Claim deterministically assigns the oldest available resource to the
// tenant. The repository performs the transition in one transaction, so
// concurrent claims can never double-assign. The returned token is
// unsealed for immediate use.
func (s *Service) Claim(ctx context.Context, tenantID string) (*Resource, error) {
	resource, err := s.repo.Claim(ctx, tenantID, time.Now())
	if err != nil {
		return nil, err
	}

	token, err := s.cipher.Open(resource.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to unseal resource token: %w", err)
	}
	resource.Token = token

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeResourceClaimed,
		TenantID: tenantID,
		Resource: resource.ID,
	})

	return resource, nil
}

// Release returns the tenant's resource to the pool. Idempotent: reports
// false when the tenant holds no resource. Resetting the resource's
// remote profile is a best-effort side task, not part of the transition.
func (s *Service) Release(ctx context.Context, tenantID string) (bool, error) {
	released, err := s.repo.Release(ctx, tenantID)
	if err != nil {
		return false, err
	}

	if released {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeResourceReleased,
			TenantID: tenantID,
		})
	}

	return released, nil
}

// Retire forces a resource into the terminal retired state
func (s *Service) Retire(ctx context.Context, resourceID string) (bool, error) {
	retired, err := s.repo.Retire(ctx, resourceID)
	if err != nil {
		return false, err
	}

	if retired {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeResourceRetired,
			Resource: resourceID,
		})
	}

	return retired, nil
}

// ResourceFor returns the resource currently assigned to a tenant with
// its token unsealed
func (s *Service) ResourceFor(ctx context.Context, tenantID string) (*Resource, error) {
	resource, err := s.repo.GetByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	token, err := s.cipher.Open(resource.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to unseal resource token: %w", err)
	}
	resource.Token = token

	return resource, nil
}

// PoolStatus reports current pool capacity
func (s *Service) PoolStatus(ctx context.Context) (*Status, error) {
	available, assigned, retired, err := s.repo.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count pool resources: %w", err)
	}

	return &Status{
		Available: available,
		Assigned:  assigned,
		Retired:   retired,
		Total:     available + assigned + retired,
		LowAlert:  available < s.lowThreshold,
	}, nil
}

// HealthNotice returns an admin alert when the pool is running low,
// empty string otherwise
func (s *Service) HealthNotice(status *Status) string {
	if status.LowAlert {
		return fmt.Sprintf("Resource pool low: only %d identities available. Add more via the admin API.", status.Available)
	}
	return ""
}
