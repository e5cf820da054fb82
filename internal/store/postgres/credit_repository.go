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

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/agentdesk/agentdesk/internal/credit"
)

// CreditRepository implements credit.Repository. Every mutation runs
// the account update and the ledger insert in one transaction so the
// balance and the transaction log can never disagree.
type CreditRepository struct {
	db *DB
}

// NewCreditRepository creates a new credit repository
func NewCreditRepository(db *DB) *CreditRepository {
	return &CreditRepository{db: db}
}

// GetAccount retrieves a tenant's credit account
func (r *CreditRepository) GetAccount(ctx context.Context, tenantID string) (*credit.Account, error) {
	account := &credit.Account{}
	err := r.db.pool.QueryRow(ctx, `
		SELECT id, tenant_id, balance, total_purchased, total_used, updated_at
		FROM credit_accounts WHERE tenant_id = $1
	`, tenantID).Scan(
		&account.ID, &account.TenantID, &account.Balance,
		&account.TotalPurchased, &account.TotalUsed, &account.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, credit.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get credit account: %w", err)
	}

	return account, nil
}

// Deduct atomically debits the account and appends the ledger row. The
// conditional UPDATE is the concurrency guard: two racing deductions
// both pass only if the balance covers both.
func (r *CreditRepository) Deduct(ctx context.Context, tenantID string, amount int64, tx *credit.Transaction) error {
	return r.inTx(ctx, func(dbtx pgx.Tx) error {
		tag, err := dbtx.Exec(ctx, `
			UPDATE credit_accounts
			SET balance = balance - $2,
			    total_used = total_used + $2,
			    updated_at = now()
			WHERE tenant_id = $1 AND balance >= $2
		`, tenantID, amount)
		if err != nil {
			return fmt.Errorf("failed to debit account: %w", err)
		}
		if tag.RowsAffected() == 0 {
			// Distinguish a missing account from a short balance
			var exists bool
			if err := dbtx.QueryRow(ctx, `
				SELECT EXISTS (SELECT 1 FROM credit_accounts WHERE tenant_id = $1)
			`, tenantID).Scan(&exists); err != nil {
				return fmt.Errorf("failed to check account existence: %w", err)
			}
			if !exists {
				return credit.ErrAccountNotFound
			}
			return credit.ErrInsufficientCredits
		}

		return r.appendTransaction(ctx, dbtx, tx)
	})
}

// Refund atomically credits the amount back and appends the ledger row.
// A refund larger than total_used cannot happen for a refund paired with
// its deduction; the table constraints reject it and the transaction
// rolls back.
func (r *CreditRepository) Refund(ctx context.Context, tenantID string, amount int64, tx *credit.Transaction) error {
	return r.inTx(ctx, func(dbtx pgx.Tx) error {
		tag, err := dbtx.Exec(ctx, `
			UPDATE credit_accounts
			SET balance = balance + $2,
			    total_used = total_used - $2,
			    updated_at = now()
			WHERE tenant_id = $1
		`, tenantID, amount)
		if err != nil {
			return fmt.Errorf("failed to credit account: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return credit.ErrAccountNotFound
		}

		return r.appendTransaction(ctx, dbtx, tx)
	})
}

// Grant creates the account on first use, otherwise tops it up, and
// appends the ledger row
func (r *CreditRepository) Grant(ctx context.Context, tenantID string, amount int64, tx *credit.Transaction) error {
	return r.inTx(ctx, func(dbtx pgx.Tx) error {
		accountID, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate account id: %w", err)
		}

		_, err = dbtx.Exec(ctx, `
			INSERT INTO credit_accounts (id, tenant_id, balance, total_purchased, total_used, updated_at)
			VALUES ($1, $2, $3, $3, 0, now())
			ON CONFLICT (tenant_id) DO UPDATE SET
				balance = credit_accounts.balance + $3,
				total_purchased = credit_accounts.total_purchased + $3,
				updated_at = now()
		`, accountID.String(), tenantID, amount)
		if err != nil {
			return fmt.Errorf("failed to grant credits: %w", err)
		}

		return r.appendTransaction(ctx, dbtx, tx)
	})
}

// ListTransactions retrieves a tenant's most recent ledger rows
func (r *CreditRepository) ListTransactions(ctx context.Context, tenantID string, limit int) ([]*credit.Transaction, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, tenant_id, amount, kind, description, created_at
		FROM credit_transactions
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*credit.Transaction
	for rows.Next() {
		tx := &credit.Transaction{}
		if err := rows.Scan(&tx.ID, &tx.TenantID, &tx.Amount, &tx.Kind, &tx.Description, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}

func (r *CreditRepository) appendTransaction(ctx context.Context, dbtx pgx.Tx, tx *credit.Transaction) error {
	_, err := dbtx.Exec(ctx, `
		INSERT INTO credit_transactions (id, tenant_id, amount, kind, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, tx.ID, tx.TenantID, tx.Amount, tx.Kind, tx.Description, tx.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

func (r *CreditRepository) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	dbtx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbtx.Rollback(ctx)

	if err := fn(dbtx); err != nil {
		return err
	}

	if err := dbtx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
