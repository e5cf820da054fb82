package credit

import (
	"context"
	"errors"
	"time"
)

// Transaction kinds
const (
	KindPurchase = "purchase"
	KindDeduct   = "deduct"
	KindRefund   = "refund"
	KindWelcome  = "welcome"
)

var (
	ErrAccountNotFound     = errors.New("credit account not found")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrInvalidAmount       = errors.New("credit amount must be positive")
)

// Account is the running balance for one tenant.
// Invariant at every commit point: Balance == TotalPurchased - TotalUsed.
type Account struct {
	ID             string    `json:"id"`
	TenantID       string    `json:"tenant_id"`
	Balance        int64     `json:"balance"`
	TotalPurchased int64     `json:"total_purchased"`
	TotalUsed      int64     `json:"total_used"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Transaction is an immutable ledger row. The sum of Amount over a
// tenant's rows equals the account balance.
type Transaction struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Amount      int64     `json:"amount"` // signed: negative for deductions
	Kind        string    `json:"kind"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Repository defines the interface for ledger storage. Every mutating
// method applies the account update and the ledger append as one atomic
// transaction; partial application is a correctness violation.
type Repository interface {
	GetAccount(ctx context.Context, tenantID string) (*Account, error)

	// Deduct applies balance -= amount, total_used += amount and appends
	// tx, failing closed with ErrInsufficientCredits when the balance is
	// short and ErrAccountNotFound when no account exists.
	Deduct(ctx context.Context, tenantID string, amount int64, tx *Transaction) error

	// Refund applies balance += amount, total_used -= amount and appends
	// tx. A refund exceeding total_used is a caller bug; implementations
	// reject it rather than clamp.
	Refund(ctx context.Context, tenantID string, amount int64, tx *Transaction) error

	// Grant creates the account with the given balance when absent,
	// otherwise applies balance += amount, total_purchased += amount,
	// and appends tx.
	Grant(ctx context.Context, tenantID string, amount int64, tx *Transaction) error

	ListTransactions(ctx context.Context, tenantID string, limit int) ([]*Transaction, error)
}
