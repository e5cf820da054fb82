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

	"github.com/jackc/pgx/v5"
	"github.com/agentdesk/agentdesk/internal/agent"
)

// AgentConfigRepository implements agent.Repository
type AgentConfigRepository struct {
	db *DB
}

// NewAgentConfigRepository creates a new agent config repository
func NewAgentConfigRepository(db *DB) *AgentConfigRepository {
	return &AgentConfigRepository{db: db}
}

// Upsert creates or replaces a tenant's agent configuration
func (r *AgentConfigRepository) Upsert(ctx context.Context, cfg *agent.Config) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO agent_configs (
			id, tenant_id, agent_name, personality, language,
			custom_instructions, compiled_prompt, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tenant_id) DO UPDATE SET
			agent_name          = EXCLUDED.agent_name,
			personality         = EXCLUDED.personality,
			language            = EXCLUDED.language,
			custom_instructions = EXCLUDED.custom_instructions,
			compiled_prompt     = EXCLUDED.compiled_prompt,
			updated_at          = EXCLUDED.updated_at
	`, cfg.ID, cfg.TenantID, cfg.AgentName, cfg.Personality, cfg.Language,
		cfg.CustomInstructions, cfg.CompiledPrompt, cfg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert agent config: %w", err)
	}

	return nil
}

// GetByTenant retrieves a tenant's agent configuration
func (r *AgentConfigRepository) GetByTenant(ctx context.Context, tenantID string) (*agent.Config, error) {
	cfg := &agent.Config{}
	err := r.db.pool.QueryRow(ctx, `
		SELECT id, tenant_id, agent_name, personality, language,
		       custom_instructions, compiled_prompt, updated_at
		FROM agent_configs WHERE tenant_id = $1
	`, tenantID).Scan(
		&cfg.ID, &cfg.TenantID, &cfg.AgentName, &cfg.Personality, &cfg.Language,
		&cfg.CustomInstructions, &cfg.CompiledPrompt, &cfg.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, agent.ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to get agent config: %w", err)
	}

	return cfg, nil
}
