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

package credit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agentdesk/agentdesk/internal/audit"
)

// Service provides credit ledger business logic
type Service struct {
	repo                Repository
	auditLogger         audit.Logger
	lowBalanceThreshold int64
}

// NewService creates a new credit ledger service
func NewService(repo Repository, auditLogger audit.Logger, lowBalanceThreshold int64) *Service {
	return &Service{
		repo:                repo,
		auditLogger:         auditLogger,
		lowBalanceThreshold: lowBalanceThreshold,
	}
}

// Balance returns the current balance for a tenant, zero when no account
// exists yet.
func (s *Service) Balance(ctx context.Context, tenantID string) (int64, error) {
	account, err := s.repo.GetAccount(ctx, tenantID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to load credit account: %w", err)
	}
	return account.Balance, nil
}

// Account returns the full account row for a tenant
func (s *Service) Account(ctx context.Context, tenantID string) (*Account, error) {
	return s.repo.GetAccount(ctx, tenantID)
}

// Deduct atomically checks and deducts amount from the tenant's balance.
// Returns false with no mutation when the balance is short or the account
// is absent; an error only signals a system failure.
func (s *Service) Deduct(ctx context.Context, tenantID string, amount int64, description string) (bool, error) {
	if amount <= 0 {
		return false, ErrInvalidAmount
	}

	tx, err := newTransaction(tenantID, -amount, KindDeduct, description)
	if err != nil {
		return false, err
	}

	if err := s.repo.Deduct(ctx, tenantID, amount, tx); err != nil {
		if errors.Is(err, ErrInsufficientCredits) || errors.Is(err, ErrAccountNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to deduct credits: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeCreditsDeducted,
		TenantID: tenantID,
		Metadata: map[string]any{"amount": amount, "description": description},
	})

	return true, nil
}

// Refund returns amount to the tenant's balance, recording a REFUND row
func (s *Service) Refund(ctx context.Context, tenantID string, amount int64, reason string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	tx, err := newTransaction(tenantID, amount, KindRefund, "Refund: "+reason)
	if err != nil {
		return err
	}

	if err := s.repo.Refund(ctx, tenantID, amount, tx); err != nil {
		return fmt.Errorf("failed to refund credits: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeCreditsRefunded,
		TenantID: tenantID,
		Metadata: map[string]any{"amount": amount, "reason": reason},
	})

	return nil
}

// AddCredits grants credits, creating the account on first grant. The
// source label decides the ledger kind: labels mentioning a purchase are
// recorded as PURCHASE, everything else as WELCOME.
func (s *Service) AddCredits(ctx context.Context, tenantID string, amount int64, source string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	kind := KindWelcome
	if strings.Contains(strings.ToLower(source), "purchase") {
		kind = KindPurchase
	}

	tx, err := newTransaction(tenantID, amount, kind, source)
	if err != nil {
		return err
	}

	if err := s.repo.Grant(ctx, tenantID, amount, tx); err != nil {
		return fmt.Errorf("failed to add credits: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeCreditsGranted,
		TenantID: tenantID,
		Metadata: map[string]any{"amount": amount, "source": source, "kind": kind},
	})

	return nil
}

// History returns the most recent transactions, newest first
func (s *Service) History(ctx context.Context, tenantID string, limit int) ([]*Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListTransactions(ctx, tenantID, limit)
}

// LowBalanceMessage returns an advisory message when the balance is below
// the configured threshold, empty string otherwise. Pure function of the
// balance.
func (s *Service) LowBalanceMessage(balance int64) string {
	if balance < s.lowBalanceThreshold {
		return fmt.Sprintf("You have %d credits left. Reply 'buy credits' to top up.", balance)
	}
	return ""
}

func newTransaction(tenantID string, amount int64, kind, description string) (*Transaction, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate transaction id: %w", err)
	}
	return &Transaction{
		ID:          id.String(),
		TenantID:    tenantID,
		Amount:      amount,
		Kind:        kind,
		Description: description,
		CreatedAt:   time.Now(),
	}, nil
}
