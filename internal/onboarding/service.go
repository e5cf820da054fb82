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

// Package onboarding provisions a working agent for a new tenant in one
// call: tenant record, claimed bot identity, default config, channels,
// starter credits, and an API token.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agentdesk/agentdesk/internal/agent"
	"github.com/agentdesk/agentdesk/internal/audit"
	"github.com/agentdesk/agentdesk/internal/channel"
	"github.com/agentdesk/agentdesk/internal/observability/logger"
	"github.com/agentdesk/agentdesk/internal/pool"
	"github.com/agentdesk/agentdesk/internal/tenant"
)

// Tenants is the tenant surface onboarding needs
type Tenants interface {
	CreateTenant(ctx context.Context, name, email string) (*tenant.Tenant, error)
	RemoveTenant(ctx context.Context, id string) error
}

// Pool claims bot identities for new tenants
type Pool interface {
	Claim(ctx context.Context, tenantID string) (*pool.Resource, error)
	Release(ctx context.Context, tenantID string) (bool, error)
	PoolStatus(ctx context.Context) (*pool.Status, error)
	HealthNotice(status *pool.Status) string
}

// Agents stores agent configurations
type Agents interface {
	SaveConfig(ctx context.Context, cfg *agent.Config) error
}

// Ledger grants starter credits
type Ledger interface {
	AddCredits(ctx context.Context, tenantID string, amount int64, source string) error
}

// TokenIssuer mints tenant API tokens
type TokenIssuer interface {
	Issue(tenantID string) (string, error)
}

// WebhookRegistrar points a claimed bot at our inbound webhook.
// Best effort; failures are logged, not rolled back.
type WebhookRegistrar interface {
	SetWebhook(ctx context.Context, token, url, secret string) error
}

// Result is what a freshly onboarded tenant gets back
type Result struct {
	TenantID       string `json:"tenant_id"`
	BotUsername    string `json:"bot_username"`
	EmailAddress   string `json:"email_address"`
	APIToken       string `json:"api_token"`
	StarterCredits int64  `json:"starter_credits"`
}

// Service orchestrates the claim-agent flow
type Service struct {
	tenants        Tenants
	pool           Pool
	agents         Agents
	channels       channel.Repository
	ledger         Ledger
	tokens         TokenIssuer
	registrar      WebhookRegistrar
	auditLogger    audit.Logger
	starterCredits int64
	emailDomain    string
	publicBaseURL  string
	webhookSecret  string
}

// NewService creates an onboarding service. registrar may be nil when
// no public base URL is configured.
func NewService(tenants Tenants, p Pool, agents Agents, channels channel.Repository, ledger Ledger, tokens TokenIssuer, registrar WebhookRegistrar, auditLogger audit.Logger, starterCredits int64, emailDomain, publicBaseURL, webhookSecret string) *Service {
	return &Service{
		tenants:        tenants,
		pool:           p,
		agents:         agents,
		channels:       channels,
		ledger:         ledger,
		tokens:         tokens,
		registrar:      registrar,
		auditLogger:    auditLogger,
		starterCredits: starterCredits,
		emailDomain:    emailDomain,
		publicBaseURL:  publicBaseURL,
		webhookSecret:  webhookSecret,
	}
}

// ClaimAgent provisions everything a new tenant needs. If no bot
// identity is available the partially created tenant is rolled back and
// pool.ErrExhausted is returned for the transport layer to surface.
func (s *Service) ClaimAgent(ctx context.Context, name, email string) (*Result, error) {
	t, err := s.tenants.CreateTenant(ctx, name, email)
	if err != nil {
		return nil, err
	}

	resource, err := s.pool.Claim(ctx, t.ID)
	if err != nil {
		if rollbackErr := s.tenants.RemoveTenant(ctx, t.ID); rollbackErr != nil {
			slog.ErrorContext(ctx, "failed to roll back tenant after claim failure",
				logger.TenantID(t.ID),
				logger.Error(rollbackErr))
		}
		if errors.Is(err, pool.ErrExhausted) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to claim bot identity: %w", err)
	}

	cfg := agent.DefaultConfig(t.ID, name)
	if err := s.agents.SaveConfig(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to save default agent config: %w", err)
	}

	emailAddress := s.agentEmail(name, t.ID)
	if err := s.createChannels(ctx, t.ID, resource.Username, emailAddress); err != nil {
		return nil, err
	}

	if err := s.ledger.AddCredits(ctx, t.ID, s.starterCredits, "welcome"); err != nil {
		return nil, fmt.Errorf("failed to grant starter credits: %w", err)
	}

	apiToken, err := s.tokens.Issue(t.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue API token: %w", err)
	}

	s.registerWebhook(ctx, t.ID, resource.Token)

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTenantOnboarded,
		TenantID: t.ID,
		Metadata: map[string]any{
			"bot_username":    resource.Username,
			"starter_credits": s.starterCredits,
		},
	})

	s.logPoolHealth(ctx)

	return &Result{
		TenantID:       t.ID,
		BotUsername:    resource.Username,
		EmailAddress:   emailAddress,
		APIToken:       apiToken,
		StarterCredits: s.starterCredits,
	}, nil
}

func (s *Service) createChannels(ctx context.Context, tenantID, botUsername, emailAddress string) error {
	now := time.Now()

	chatID, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate channel id: %w", err)
	}
	if err := s.channels.Create(ctx, &channel.Channel{
		ID:          chatID.String(),
		TenantID:    tenantID,
		Type:        channel.TypeChatBot,
		Identifier:  botUsername,
		BotUsername: botUsername,
		Active:      true,
		CreatedAt:   now,
	}); err != nil {
		return fmt.Errorf("failed to create chat channel: %w", err)
	}

	emailID, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate channel id: %w", err)
	}
	if err := s.channels.Create(ctx, &channel.Channel{
		ID:         emailID.String(),
		TenantID:   tenantID,
		Type:       channel.TypeEmail,
		Identifier: emailAddress,
		Email:      emailAddress,
		Active:     true,
		CreatedAt:  now,
	}); err != nil {
		return fmt.Errorf("failed to create email channel: %w", err)
	}

	return nil
}

// registerWebhook is best effort. A tenant whose webhook registration
// fails can still be reached once an operator re-registers it.
func (s *Service) registerWebhook(ctx context.Context, tenantID, token string) {
	if s.registrar == nil || s.publicBaseURL == "" {
		return
	}
	url := fmt.Sprintf("%s/webhooks/chat/%s", strings.TrimRight(s.publicBaseURL, "/"), tenantID)
	if err := s.registrar.SetWebhook(ctx, token, url, s.webhookSecret); err != nil {
		slog.WarnContext(ctx, "failed to register chat webhook",
			logger.TenantID(tenantID),
			logger.Error(err))
	}
}

func (s *Service) logPoolHealth(ctx context.Context) {
	status, err := s.pool.PoolStatus(ctx)
	if err != nil {
		slog.WarnContext(ctx, "failed to read pool status", logger.Error(err))
		return
	}
	if notice := s.pool.HealthNotice(status); notice != "" {
		slog.WarnContext(ctx, notice, slog.Int("available", status.Available))
	}
}

// agentEmail derives a stable inbound address like acme-0199a7c2@domain
func (s *Service) agentEmail(name, tenantID string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	for _, r := range slug {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune('-')
		}
	}
	slug = strings.Trim(b.String(), "-")
	if slug == "" {
		slug = "agent"
	}
	suffix := strings.ReplaceAll(tenantID, "-", "")
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return fmt.Sprintf("%s-%s@%s", slug, suffix, s.emailDomain)
}
