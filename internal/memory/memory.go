package memory

import (
	"context"
	"time"
)

// Roles used for conversation entries
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Entry is one role-tagged message of a tenant's conversation history
type Entry struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository defines the interface for durable history storage
type Repository interface {
	// AppendExchange stores a user message and the assistant reply as
	// one atomic unit
	AppendExchange(ctx context.Context, tenantID, channelType string, userText, replyText string, at time.Time) error

	// Recent returns the most recent entries in chronological order
	Recent(ctx context.Context, tenantID string, limit int) ([]Entry, error)
}

// Cache is an optional read-through cache for the recent window
type Cache interface {
	Get(ctx context.Context, tenantID string) ([]Entry, bool)
	Set(ctx context.Context, tenantID string, entries []Entry)
	Invalidate(ctx context.Context, tenantID string)
}
