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

package agent

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// TestPurpose: Validates that prompt compilation is deterministic.
// Scope: Unit Test
// Expected: Two calls with an identical config produce byte-identical prompts.
// Test Case ID: AGT-01
func TestAgent_Compile_Deterministic(t *testing.T) {
	cfg := &Config{
		AgentName:          "Acme Assistant",
		Personality:        PersonalityFormal,
		Language:           "en",
		CustomInstructions: "We sell industrial fasteners.\nNever discuss prices.",
	}

	first := Compile(cfg)
	second := Compile(cfg)

	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)
}

func TestAgent_Compile_PersonalityStyles(t *testing.T) {
	cfg := &Config{AgentName: "Bot", Language: "en"}

	cfg.Personality = PersonalityFormal
	assert.Contains(t, Compile(cfg), "professional, formal, and business-like")

	cfg.Personality = PersonalityFriendly
	assert.Contains(t, Compile(cfg), "warm, friendly, and approachable")

	cfg.Personality = PersonalityBrief
	assert.Contains(t, Compile(cfg), "concise, brief, and to-the-point")

	// Unknown personality falls back to the neutral style
	cfg.Personality = "sarcastic"
	assert.Contains(t, Compile(cfg), "helpful and professional")
}

func TestAgent_Compile_DefaultBusinessDescription(t *testing.T) {
	cfg := &Config{AgentName: "Bot", Personality: PersonalityFriendly, Language: "en"}

	prompt := Compile(cfg)
	assert.Contains(t, prompt, "I help businesses automate their operations with AI.")

	cfg.CustomInstructions = "We run a bakery in Lisbon."
	prompt = Compile(cfg)
	assert.Contains(t, prompt, "We run a bakery in Lisbon.")
	assert.NotContains(t, prompt, "I help businesses automate")
}

func TestAgent_CompileWithTools(t *testing.T) {
	cfg := &Config{AgentName: "Bot", Personality: PersonalityBrief, Language: "en"}

	withoutTools := CompileWithTools(cfg, nil)
	assert.Equal(t, Compile(cfg), withoutTools)

	withTools := CompileWithTools(cfg, []string{"calendar", "crm"})
	assert.Contains(t, withTools, "Connected tools:")
	assert.Contains(t, withTools, "- calendar")
	assert.Contains(t, withTools, "- crm")
}

type mockConfigRepo struct {
	mock.Mock
}

func (m *mockConfigRepo) Upsert(ctx context.Context, cfg *Config) error {
	args := m.Called(ctx, cfg)
	return args.Error(0)
}

func (m *mockConfigRepo) GetByTenant(ctx context.Context, tenantID string) (*Config, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Config), args.Error(1)
}

// TestPurpose: Validates that saving a config recompiles the prompt and assigns a UUIDv7 ID.
// Scope: Unit Test
// Expected: The persisted config carries a derived compiled prompt, never a caller-supplied one.
// Test Case ID: AGT-02
func TestAgent_SaveConfig_RecompilesPrompt(t *testing.T) {
	repo := new(mockConfigRepo)
	service := NewService(repo)
	ctx := context.Background()

	cfg := &Config{
		TenantID:       "tenant-1",
		AgentName:      "Bot",
		Personality:    PersonalityFriendly,
		Language:       "en",
		CompiledPrompt: "stale caller-supplied prompt",
	}

	repo.On("Upsert", ctx, mock.MatchedBy(func(c *Config) bool {
		uid, err := uuid.Parse(c.ID)
		return err == nil && uid.Version() == 7 && c.CompiledPrompt == Compile(c)
	})).Return(nil)

	err := service.SaveConfig(ctx, cfg)
	assert.NoError(t, err)
	assert.NotEqual(t, "stale caller-supplied prompt", cfg.CompiledPrompt)

	repo.AssertExpectations(t)
}

func TestAgent_SaveConfig_RejectsUnknownPersonality(t *testing.T) {
	repo := new(mockConfigRepo)
	service := NewService(repo)

	err := service.SaveConfig(context.Background(), &Config{
		TenantID:    "tenant-1",
		AgentName:   "Bot",
		Personality: "aggressive",
	})

	assert.ErrorIs(t, err, ErrInvalidPersonality)
	repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}
