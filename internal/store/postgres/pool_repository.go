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

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/agentdesk/agentdesk/internal/pool"
)

// PoolRepository implements pool.Repository
type PoolRepository struct {
	db *DB
}

// NewPoolRepository creates a new pool repository
func NewPoolRepository(db *DB) *PoolRepository {
	return &PoolRepository{db: db}
}

// Create registers a new available resource
func (r *PoolRepository) Create(ctx context.Context, res *pool.Resource) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO pooled_resources (
			id, token_sealed, username, display_name, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`, res.ID, res.Token, res.Username, res.DisplayName, res.Status, res.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23505 is unique_violation; the username is already registered
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return pool.ErrAlreadyInPool
		}
		return fmt.Errorf("failed to insert pooled resource: %w", err)
	}

	return nil
}

// Claim picks the oldest available resource and assigns it to the
// tenant in one transaction. FOR UPDATE SKIP LOCKED makes concurrent
// claims take distinct rows instead of blocking or double-assigning.
func (r *PoolRepository) Claim(ctx context.Context, tenantID string, at time.Time) (*pool.Resource, error) {
	dbtx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbtx.Rollback(ctx)

	res := &pool.Resource{}
	err = dbtx.QueryRow(ctx, `
		SELECT id, token_sealed, username, display_name, created_at
		FROM pooled_resources
		WHERE status = 'available'
		ORDER BY created_at, id
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`).Scan(&res.ID, &res.Token, &res.Username, &res.DisplayName, &res.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, pool.ErrExhausted
		}
		return nil, fmt.Errorf("failed to select available resource: %w", err)
	}

	_, err = dbtx.Exec(ctx, `
		UPDATE pooled_resources
		SET status = 'assigned', assigned_to = $2, assigned_at = $3
		WHERE id = $1
	`, res.ID, tenantID, at)
	if err != nil {
		return nil, fmt.Errorf("failed to assign resource: %w", err)
	}

	if err := dbtx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}

	res.Status = pool.StatusAssigned
	res.AssignedTo = tenantID
	res.AssignedAt = &at

	return res, nil
}

// Release returns the tenant's assigned resource to the pool
func (r *PoolRepository) Release(ctx context.Context, tenantID string) (bool, error) {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE pooled_resources
		SET status = 'available', assigned_to = NULL, assigned_at = NULL
		WHERE assigned_to = $1 AND status = 'assigned'
	`, tenantID)
	if err != nil {
		return false, fmt.Errorf("failed to release resource: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// Retire forces a resource into the terminal retired state
func (r *PoolRepository) Retire(ctx context.Context, resourceID string) (bool, error) {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE pooled_resources
		SET status = 'retired', assigned_to = NULL, assigned_at = NULL
		WHERE id = $1 AND status <> 'retired'
	`, resourceID)
	if err != nil {
		return false, fmt.Errorf("failed to retire resource: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// GetByTenant retrieves the resource assigned to a tenant
func (r *PoolRepository) GetByTenant(ctx context.Context, tenantID string) (*pool.Resource, error) {
	res := &pool.Resource{}
	err := r.db.pool.QueryRow(ctx, `
		SELECT id, token_sealed, username, display_name, status,
		       assigned_to, assigned_at, created_at
		FROM pooled_resources
		WHERE assigned_to = $1 AND status = 'assigned'
	`, tenantID).Scan(
		&res.ID, &res.Token, &res.Username, &res.DisplayName, &res.Status,
		&res.AssignedTo, &res.AssignedAt, &res.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, pool.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get assigned resource: %w", err)
	}

	return res, nil
}

// Counts reports pool capacity by status
func (r *PoolRepository) Counts(ctx context.Context) (available, assigned, retired int, err error) {
	err = r.db.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'available'),
			COUNT(*) FILTER (WHERE status = 'assigned'),
			COUNT(*) FILTER (WHERE status = 'retired')
		FROM pooled_resources
	`).Scan(&available, &assigned, &retired)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to count pooled resources: %w", err)
	}

	return available, assigned, retired, nil
}
