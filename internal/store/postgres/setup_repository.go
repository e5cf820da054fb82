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
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/agentdesk/agentdesk/internal/setup"
)

// SetupRepository implements setup.Repository. The partial unique index
// on open sessions enforces the one-open-session invariant at the
// storage layer as well.
type SetupRepository struct {
	db *DB
}

// NewSetupRepository creates a new setup session repository
func NewSetupRepository(db *DB) *SetupRepository {
	return &SetupRepository{db: db}
}

// GetOpen retrieves the tenant's open session
func (r *SetupRepository) GetOpen(ctx context.Context, tenantID string) (*setup.Session, error) {
	session := &setup.Session{}
	var answersJSON []byte
	err := r.db.pool.QueryRow(ctx, `
		SELECT id, tenant_id, flow_name, step, answers, started_at, completed_at
		FROM setup_sessions
		WHERE tenant_id = $1 AND completed_at IS NULL
	`, tenantID).Scan(
		&session.ID, &session.TenantID, &session.FlowName, &session.Step,
		&answersJSON, &session.StartedAt, &session.CompletedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, setup.ErrNoOpenSession
		}
		return nil, fmt.Errorf("failed to get open session: %w", err)
	}

	session.Answers = setup.Answers{}
	if len(answersJSON) > 0 {
		if err := json.Unmarshal(answersJSON, &session.Answers); err != nil {
			return nil, fmt.Errorf("failed to decode session answers: %w", err)
		}
	}

	return session, nil
}

// Create creates a new session
func (r *SetupRepository) Create(ctx context.Context, session *setup.Session) error {
	answersJSON, err := encodeAnswers(session.Answers)
	if err != nil {
		return err
	}

	_, err = r.db.pool.Exec(ctx, `
		INSERT INTO setup_sessions (
			id, tenant_id, flow_name, step, answers, started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, session.ID, session.TenantID, session.FlowName, session.Step,
		answersJSON, session.StartedAt, session.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	return nil
}

// Update persists a session's step, answers, and completion state
func (r *SetupRepository) Update(ctx context.Context, session *setup.Session) error {
	answersJSON, err := encodeAnswers(session.Answers)
	if err != nil {
		return err
	}

	tag, err := r.db.pool.Exec(ctx, `
		UPDATE setup_sessions
		SET step = $2, answers = $3, completed_at = $4
		WHERE id = $1
	`, session.ID, session.Step, answersJSON, session.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return setup.ErrNoOpenSession
	}

	return nil
}

func encodeAnswers(answers setup.Answers) ([]byte, error) {
	if answers == nil {
		return []byte("{}"), nil
	}
	encoded, err := json.Marshal(answers)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session answers: %w", err)
	}
	return encoded, nil
}
