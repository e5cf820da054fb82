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

package onboarding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/agentdesk/agentdesk/internal/agent"
	"github.com/agentdesk/agentdesk/internal/audit"
	"github.com/agentdesk/agentdesk/internal/channel"
	"github.com/agentdesk/agentdesk/internal/pool"
	"github.com/agentdesk/agentdesk/internal/tenant"
)

type mockTenants struct {
	mock.Mock
}

func (m *mockTenants) CreateTenant(ctx context.Context, name, email string) (*tenant.Tenant, error) {
	args := m.Called(ctx, name, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tenant.Tenant), args.Error(1)
}

func (m *mockTenants) RemoveTenant(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockPool struct {
	mock.Mock
}

func (m *mockPool) Claim(ctx context.Context, tenantID string) (*pool.Resource, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pool.Resource), args.Error(1)
}

func (m *mockPool) Release(ctx context.Context, tenantID string) (bool, error) {
	args := m.Called(ctx, tenantID)
	return args.Bool(0), args.Error(1)
}

func (m *mockPool) PoolStatus(ctx context.Context) (*pool.Status, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pool.Status), args.Error(1)
}

func (m *mockPool) HealthNotice(status *pool.Status) string {
	args := m.Called(status)
	return args.String(0)
}

type mockAgents struct {
	mock.Mock
}

func (m *mockAgents) SaveConfig(ctx context.Context, cfg *agent.Config) error {
	args := m.Called(ctx, cfg)
	return args.Error(0)
}

type mockChannelRepo struct {
	mock.Mock
}

func (m *mockChannelRepo) Create(ctx context.Context, ch *channel.Channel) error {
	args := m.Called(ctx, ch)
	return args.Error(0)
}

func (m *mockChannelRepo) GetActive(ctx context.Context, tenantID, channelType string) (*channel.Channel, error) {
	args := m.Called(ctx, tenantID, channelType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*channel.Channel), args.Error(1)
}

func (m *mockChannelRepo) FindByPhone(ctx context.Context, phone string) (*channel.Channel, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*channel.Channel), args.Error(1)
}

func (m *mockChannelRepo) Deactivate(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) AddCredits(ctx context.Context, tenantID string, amount int64, source string) error {
	args := m.Called(ctx, tenantID, amount, source)
	return args.Error(0)
}

type mockTokens struct {
	mock.Mock
}

func (m *mockTokens) Issue(tenantID string) (string, error) {
	args := m.Called(tenantID)
	return args.String(0), args.Error(1)
}

type mockRegistrar struct {
	mock.Mock
}

func (m *mockRegistrar) SetWebhook(ctx context.Context, token, url, secret string) error {
	args := m.Called(ctx, token, url, secret)
	return args.Error(0)
}

type nopAudit struct{}

func (nopAudit) Log(ctx context.Context, event audit.Event) {}

type onboardingFixture struct {
	tenants   *mockTenants
	pool      *mockPool
	agents    *mockAgents
	channels  *mockChannelRepo
	ledger    *mockLedger
	tokens    *mockTokens
	registrar *mockRegistrar
	service   *Service
}

func newOnboardingFixture(t *testing.T) *onboardingFixture {
	t.Helper()
	f := &onboardingFixture{
		tenants:   new(mockTenants),
		pool:      new(mockPool),
		agents:    new(mockAgents),
		channels:  new(mockChannelRepo),
		ledger:    new(mockLedger),
		tokens:    new(mockTokens),
		registrar: new(mockRegistrar),
	}
	f.service = NewService(
		f.tenants, f.pool, f.agents, f.channels, f.ledger, f.tokens, f.registrar,
		nopAudit{}, 100, "mail.example.com", "https://api.example.com", "hook-secret")
	return f
}

// TestPurpose: Validates the full claim-agent provisioning flow.
// Scope: Unit Test
// Security: The tenant API token in the result comes only from the issuer.
// Expected: Tenant, bot identity, config, both channels, starter credits,
// token, and webhook registration all happen; the result reflects them.
// Test Case ID: ONB-01
func TestOnboarding_ClaimAgent_Success(t *testing.T) {
	f := newOnboardingFixture(t)
	ctx := context.Background()

	f.tenants.On("CreateTenant", ctx, "Acme Shop", "owner@acme.test").
		Return(&tenant.Tenant{ID: "0199a7c2-1111-7000-8000-000000000001", Name: "Acme Shop"}, nil)
	f.pool.On("Claim", ctx, "0199a7c2-1111-7000-8000-000000000001").
		Return(&pool.Resource{Username: "acme_helper_bot", Token: "bot-token"}, nil)
	f.agents.On("SaveConfig", ctx, mock.MatchedBy(func(cfg *agent.Config) bool {
		return cfg.TenantID == "0199a7c2-1111-7000-8000-000000000001" && cfg.CompiledPrompt != ""
	})).Return(nil)
	f.channels.On("Create", ctx, mock.MatchedBy(func(ch *channel.Channel) bool {
		return ch.Type == channel.TypeChatBot && ch.BotUsername == "acme_helper_bot" && ch.Active
	})).Return(nil).Once()
	f.channels.On("Create", ctx, mock.MatchedBy(func(ch *channel.Channel) bool {
		return ch.Type == channel.TypeEmail && ch.Email == "acme-shop-0199a7c2@mail.example.com" && ch.Active
	})).Return(nil).Once()
	f.ledger.On("AddCredits", ctx, "0199a7c2-1111-7000-8000-000000000001", int64(100), "welcome").
		Return(nil)
	f.tokens.On("Issue", "0199a7c2-1111-7000-8000-000000000001").
		Return("api-token", nil)
	f.registrar.On("SetWebhook", ctx, "bot-token",
		"https://api.example.com/webhooks/chat/0199a7c2-1111-7000-8000-000000000001", "hook-secret").
		Return(nil)
	f.pool.On("PoolStatus", ctx).Return(&pool.Status{Available: 10}, nil)
	f.pool.On("HealthNotice", mock.Anything).Return("")

	result, err := f.service.ClaimAgent(ctx, "Acme Shop", "owner@acme.test")

	require.NoError(t, err)
	assert.Equal(t, "0199a7c2-1111-7000-8000-000000000001", result.TenantID)
	assert.Equal(t, "acme_helper_bot", result.BotUsername)
	assert.Equal(t, "acme-shop-0199a7c2@mail.example.com", result.EmailAddress)
	assert.Equal(t, "api-token", result.APIToken)
	assert.Equal(t, int64(100), result.StarterCredits)
	f.channels.AssertNumberOfCalls(t, "Create", 2)
	f.registrar.AssertExpectations(t)
}

// TestPurpose: Validates rollback when the identity pool is exhausted.
// Scope: Unit Test
// Expected: The created tenant is removed and the exhaustion error is
// returned unchanged for the transport layer to map.
// Test Case ID: ONB-02
func TestOnboarding_ClaimAgent_PoolExhaustedRollsBackTenant(t *testing.T) {
	f := newOnboardingFixture(t)
	ctx := context.Background()

	f.tenants.On("CreateTenant", ctx, "Acme Shop", "owner@acme.test").
		Return(&tenant.Tenant{ID: "tenant-1", Name: "Acme Shop"}, nil)
	f.pool.On("Claim", ctx, "tenant-1").Return(nil, pool.ErrExhausted)
	f.tenants.On("RemoveTenant", ctx, "tenant-1").Return(nil).Once()

	result, err := f.service.ClaimAgent(ctx, "Acme Shop", "owner@acme.test")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, pool.ErrExhausted)
	f.tenants.AssertExpectations(t)
	f.ledger.AssertNotCalled(t, "AddCredits",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOnboarding_ClaimAgent_RollbackFailureStillSurfacesClaimError(t *testing.T) {
	f := newOnboardingFixture(t)
	ctx := context.Background()

	f.tenants.On("CreateTenant", ctx, "Acme Shop", "owner@acme.test").
		Return(&tenant.Tenant{ID: "tenant-1"}, nil)
	f.pool.On("Claim", ctx, "tenant-1").Return(nil, errors.New("db down"))
	f.tenants.On("RemoveTenant", ctx, "tenant-1").Return(errors.New("also down"))

	_, err := f.service.ClaimAgent(ctx, "Acme Shop", "owner@acme.test")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to claim bot identity")
}

func TestOnboarding_ClaimAgent_DuplicateEmailPassesThrough(t *testing.T) {
	f := newOnboardingFixture(t)
	ctx := context.Background()

	f.tenants.On("CreateTenant", ctx, "Acme Shop", "owner@acme.test").
		Return(nil, tenant.ErrEmailTaken)

	_, err := f.service.ClaimAgent(ctx, "Acme Shop", "owner@acme.test")

	assert.ErrorIs(t, err, tenant.ErrEmailTaken)
	f.pool.AssertNotCalled(t, "Claim", mock.Anything, mock.Anything)
}

func TestOnboarding_AgentEmail_Slugging(t *testing.T) {
	f := newOnboardingFixture(t)

	tests := []struct {
		name     string
		tenantID string
		want     string
	}{
		{"Acme Shop", "0199a7c2-9999-7000-8000-000000000001", "acme-shop-0199a7c2@mail.example.com"},
		{"Café & Söhne!!", "abcdef1234567890", "caf--shne-abcdef12@mail.example.com"},
		{"---", "abcdef1234567890", "agent-abcdef12@mail.example.com"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, f.service.agentEmail(tt.name, tt.tenantID))
	}
}
