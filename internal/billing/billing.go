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

// Package billing turns payment-provider events into credit grants.
// Idempotency is owned by the provider's event delivery; each event is
// applied at most once per idempotency key by the caller.
package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agentdesk/agentdesk/internal/observability/logger"
)

const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventInvoicePaid       = "invoice.paid"
	EventPaymentFailed     = "payment_intent.failed"
)

var ErrUnknownTier = errors.New("unknown billing tier")

// Event is the payment-provider callback payload we act on
type Event struct {
	Type           string `json:"type"`
	TenantID       string `json:"tenant_id"`
	Credits        int64  `json:"credits"`
	Tier           string `json:"tier"`
	IdempotencyKey string `json:"idempotency_key"`
}

// Ledger is the credit entry point billing drives
type Ledger interface {
	AddCredits(ctx context.Context, tenantID string, amount int64, source string) error
}

// Service maps payment events to credit grants using a fixed tier table
type Service struct {
	ledger Ledger
	tiers  map[string]int64
}

// NewService creates a billing service. tiers maps tier name to the
// credits one purchase of that tier grants.
func NewService(ledger Ledger, tiers map[string]int64) *Service {
	return &Service{ledger: ledger, tiers: tiers}
}

// CreditsFor resolves the grant amount for an event: explicit credits
// win, otherwise the tier table decides.
func (s *Service) CreditsFor(event Event) (int64, error) {
	if event.Credits > 0 {
		return event.Credits, nil
	}
	credits, ok := s.tiers[strings.ToLower(event.Tier)]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTier, event.Tier)
	}
	return credits, nil
}

// HandleEvent applies one payment event. Failed payments are logged and
// acknowledged without touching the ledger.
func (s *Service) HandleEvent(ctx context.Context, event Event) error {
	switch event.Type {
	case EventCheckoutCompleted:
		credits, err := s.CreditsFor(event)
		if err != nil {
			return err
		}
		source := fmt.Sprintf("purchase (%s, key=%s)", event.Tier, event.IdempotencyKey)
		return s.ledger.AddCredits(ctx, event.TenantID, credits, source)

	case EventInvoicePaid:
		credits, err := s.CreditsFor(event)
		if err != nil {
			return err
		}
		source := fmt.Sprintf("subscription purchase renewal (%s, key=%s)", event.Tier, event.IdempotencyKey)
		return s.ledger.AddCredits(ctx, event.TenantID, credits, source)

	case EventPaymentFailed:
		slog.WarnContext(ctx, "payment failed",
			logger.TenantID(event.TenantID),
			logger.String("idempotency_key", event.IdempotencyKey))
		return nil

	default:
		slog.InfoContext(ctx, "ignoring unhandled payment event",
			logger.String("event_type", event.Type))
		return nil
	}
}
