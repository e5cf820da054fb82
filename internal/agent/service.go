package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Service provides agent configuration business logic
type Service struct {
	repo Repository
}

// NewService creates a new agent config service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetConfig retrieves the agent configuration for a tenant
func (s *Service) GetConfig(ctx context.Context, tenantID string) (*Config, error) {
	return s.repo.GetByTenant(ctx, tenantID)
}

// SaveConfig recompiles the prompt and persists the configuration.
// The compiled prompt is derived state; it is never accepted from callers.
func (s *Service) SaveConfig(ctx context.Context, cfg *Config) error {
	if cfg.TenantID == "" {
		return fmt.Errorf("agent config requires a tenant id")
	}
	if cfg.Personality != "" && !ValidPersonality(cfg.Personality) {
		return fmt.Errorf("%w: %s", ErrInvalidPersonality, cfg.Personality)
	}

	if cfg.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate config id: %w", err)
		}
		cfg.ID = id.String()
	}

	cfg.CompiledPrompt = Compile(cfg)
	cfg.UpdatedAt = time.Now()

	if err := s.repo.Upsert(ctx, cfg); err != nil {
		return fmt.Errorf("failed to save agent config: %w", err)
	}

	return nil
}

// DefaultConfig builds the initial configuration created at onboarding
func DefaultConfig(tenantID, ownerName string) *Config {
	return &Config{
		TenantID:    tenantID,
		AgentName:   fmt.Sprintf("%s's Agent", ownerName),
		Personality: PersonalityFriendly,
		Language:    "en",
	}
}
