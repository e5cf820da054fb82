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

	"github.com/jackc/pgx/v5"
	"github.com/agentdesk/agentdesk/internal/channel"
)

// ChannelRepository implements channel.Repository
type ChannelRepository struct {
	db *DB
}

// NewChannelRepository creates a new channel repository
func NewChannelRepository(db *DB) *ChannelRepository {
	return &ChannelRepository{db: db}
}

// Create creates a new channel
func (r *ChannelRepository) Create(ctx context.Context, ch *channel.Channel) error {
	now := time.Now()
	if !ch.CreatedAt.IsZero() {
		now = ch.CreatedAt
	}
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO channels (
			id, tenant_id, type, identifier, bot_username,
			email, phone_number, active, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, ch.ID, ch.TenantID, ch.Type, ch.Identifier, ch.BotUsername,
		ch.Email, ch.PhoneNumber, ch.Active, now)
	if err != nil {
		return fmt.Errorf("failed to insert channel: %w", err)
	}

	ch.CreatedAt = now

	return nil
}

// GetActive retrieves a tenant's active channel of the given type
func (r *ChannelRepository) GetActive(ctx context.Context, tenantID, channelType string) (*channel.Channel, error) {
	ch := &channel.Channel{}
	err := r.db.pool.QueryRow(ctx, `
		SELECT id, tenant_id, type, identifier, bot_username,
		       email, phone_number, active, created_at
		FROM channels
		WHERE tenant_id = $1 AND type = $2 AND active
	`, tenantID, channelType).Scan(
		&ch.ID, &ch.TenantID, &ch.Type, &ch.Identifier, &ch.BotUsername,
		&ch.Email, &ch.PhoneNumber, &ch.Active, &ch.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, channel.ErrChannelNotFound
		}
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}

	return ch, nil
}

// FindByPhone retrieves the active channel bound to a phone number
func (r *ChannelRepository) FindByPhone(ctx context.Context, phoneNumber string) (*channel.Channel, error) {
	ch := &channel.Channel{}
	err := r.db.pool.QueryRow(ctx, `
		SELECT id, tenant_id, type, identifier, bot_username,
		       email, phone_number, active, created_at
		FROM channels
		WHERE phone_number = $1 AND active
		ORDER BY created_at DESC
		LIMIT 1
	`, phoneNumber).Scan(
		&ch.ID, &ch.TenantID, &ch.Type, &ch.Identifier, &ch.BotUsername,
		&ch.Email, &ch.PhoneNumber, &ch.Active, &ch.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, channel.ErrChannelNotFound
		}
		return nil, fmt.Errorf("failed to find channel by phone: %w", err)
	}

	return ch, nil
}

// Deactivate marks a channel inactive
func (r *ChannelRepository) Deactivate(ctx context.Context, id string) error {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE channels SET active = false WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate channel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return channel.ErrChannelNotFound
	}

	return nil
}
