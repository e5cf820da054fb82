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

package billing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) AddCredits(ctx context.Context, tenantID string, amount int64, source string) error {
	args := m.Called(ctx, tenantID, amount, source)
	return args.Error(0)
}

func newTestService(ledger *mockLedger) *Service {
	return NewService(ledger, map[string]int64{
		"starter": 500,
		"growth":  2000,
	})
}

func TestBilling_CreditsFor(t *testing.T) {
	service := newTestService(new(mockLedger))

	tests := []struct {
		name    string
		event   Event
		want    int64
		wantErr error
	}{
		{name: "explicit credits win over tier", event: Event{Credits: 42, Tier: "starter"}, want: 42},
		{name: "tier lookup", event: Event{Tier: "growth"}, want: 2000},
		{name: "tier is case-insensitive", event: Event{Tier: "Starter"}, want: 500},
		{name: "unknown tier", event: Event{Tier: "enterprise"}, wantErr: ErrUnknownTier},
		{name: "no credits and no tier", event: Event{}, wantErr: ErrUnknownTier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := service.CreditsFor(tt.event)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestPurpose: Validates that a completed checkout grants the purchased
// credits with a traceable source line.
// Scope: Unit Test
// Expected: One AddCredits call tagged with the tier and idempotency key.
// Test Case ID: BIL-01
func TestBilling_HandleEvent_CheckoutCompleted(t *testing.T) {
	ledger := new(mockLedger)
	ledger.On("AddCredits", mock.Anything, "tenant-1", int64(500), "purchase (starter, key=evt_123)").
		Return(nil)
	service := newTestService(ledger)

	err := service.HandleEvent(context.Background(), Event{
		Type:           EventCheckoutCompleted,
		TenantID:       "tenant-1",
		Tier:           "starter",
		IdempotencyKey: "evt_123",
	})

	require.NoError(t, err)
	ledger.AssertExpectations(t)
}

func TestBilling_HandleEvent_InvoicePaid(t *testing.T) {
	ledger := new(mockLedger)
	ledger.On("AddCredits", mock.Anything, "tenant-1", int64(2000), "subscription purchase renewal (growth, key=evt_456)").
		Return(nil)
	service := newTestService(ledger)

	err := service.HandleEvent(context.Background(), Event{
		Type:           EventInvoicePaid,
		TenantID:       "tenant-1",
		Tier:           "growth",
		IdempotencyKey: "evt_456",
	})

	require.NoError(t, err)
	ledger.AssertExpectations(t)
}

// TestPurpose: Validates that failed and unknown payment events are
// acknowledged without granting credits.
// Scope: Unit Test
// Security: A malformed or hostile event type must never reach the ledger.
// Expected: Nil error and zero AddCredits calls.
// Test Case ID: BIL-02
func TestBilling_HandleEvent_NoGrantPaths(t *testing.T) {
	for _, eventType := range []string{EventPaymentFailed, "customer.updated", ""} {
		t.Run("type "+eventType, func(t *testing.T) {
			ledger := new(mockLedger)
			service := newTestService(ledger)

			err := service.HandleEvent(context.Background(), Event{
				Type:     eventType,
				TenantID: "tenant-1",
			})

			require.NoError(t, err)
			ledger.AssertNotCalled(t, "AddCredits",
				mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestBilling_HandleEvent_UnknownTierRejected(t *testing.T) {
	ledger := new(mockLedger)
	service := newTestService(ledger)

	err := service.HandleEvent(context.Background(), Event{
		Type:     EventCheckoutCompleted,
		TenantID: "tenant-1",
		Tier:     "enterprise",
	})

	assert.ErrorIs(t, err, ErrUnknownTier)
	ledger.AssertNotCalled(t, "AddCredits",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
