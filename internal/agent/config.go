package agent

import (
	"context"
	"errors"
	"time"
)

// Personality constants
const (
	PersonalityFormal   = "formal"
	PersonalityFriendly = "friendly"
	PersonalityBrief    = "brief"
)

var (
	ErrConfigNotFound     = errors.New("agent config not found")
	ErrInvalidPersonality = errors.New("invalid personality")
)

// Config holds a tenant's agent configuration. CompiledPrompt is derived
// from the other fields and is always regenerable.
type Config struct {
	ID                 string    `json:"id"`
	TenantID           string    `json:"tenant_id"`
	AgentName          string    `json:"agent_name"`
	Personality        string    `json:"personality"`
	Language           string    `json:"language"`
	CustomInstructions string    `json:"custom_instructions"`
	CompiledPrompt     string    `json:"compiled_prompt"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// ValidPersonality reports whether p is one of the supported personalities
func ValidPersonality(p string) bool {
	return p == PersonalityFormal || p == PersonalityFriendly || p == PersonalityBrief
}

// Repository defines the interface for agent config storage
type Repository interface {
	Upsert(ctx context.Context, cfg *Config) error
	GetByTenant(ctx context.Context, tenantID string) (*Config, error)
}
