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
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/agentdesk/agentdesk/internal/memory"
)

// MemoryRepository implements memory.Repository
type MemoryRepository struct {
	db *DB
}

// NewMemoryRepository creates a new conversation memory repository
func NewMemoryRepository(db *DB) *MemoryRepository {
	return &MemoryRepository{db: db}
}

// AppendExchange stores the user message and the assistant reply in one
// transaction. UUIDv7 row IDs keep same-timestamp rows in insert order.
func (r *MemoryRepository) AppendExchange(ctx context.Context, tenantID, channelType string, userText, replyText string, at time.Time) error {
	userID, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate message id: %w", err)
	}
	replyID, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate message id: %w", err)
	}

	dbtx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbtx.Rollback(ctx)

	_, err = dbtx.Exec(ctx, `
		INSERT INTO conversation_messages (id, tenant_id, channel_type, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, userID.String(), tenantID, channelType, memory.RoleUser, userText, at)
	if err != nil {
		return fmt.Errorf("failed to insert user message: %w", err)
	}

	_, err = dbtx.Exec(ctx, `
		INSERT INTO conversation_messages (id, tenant_id, channel_type, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, replyID.String(), tenantID, channelType, memory.RoleAssistant, replyText, at)
	if err != nil {
		return fmt.Errorf("failed to insert assistant message: %w", err)
	}

	if err := dbtx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit exchange: %w", err)
	}

	return nil
}

// Recent returns the newest entries in chronological order
func (r *MemoryRepository) Recent(ctx context.Context, tenantID string, limit int) ([]memory.Entry, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT role, content, created_at
		FROM conversation_messages
		WHERE tenant_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation history: %w", err)
	}
	defer rows.Close()

	var entries []memory.Entry
	for rows.Next() {
		var entry memory.Entry
		if err := rows.Scan(&entry.Role, &entry.Content, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Newest-first from the query, oldest-first for the caller
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}

	return entries, nil
}
