package channel

import (
	"context"
	"errors"
	"time"
)

// Channel types
const (
	TypeChatBot   = "chat_bot"
	TypeEmail     = "email"
	TypeVoice     = "voice"
	TypeSMS       = "sms"
	TypeWebWidget = "web_widget"
)

var ErrChannelNotFound = errors.New("channel not found")

// Channel is a reachable endpoint bound to one tenant. At most one
// active channel per type is expected for routing lookups; the Active
// flag gates whether inbound events route anywhere.
type Channel struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Type        string    `json:"type"`
	Identifier  string    `json:"identifier"` // bot username, email, phone number
	BotUsername string    `json:"bot_username,omitempty"`
	Email       string    `json:"email,omitempty"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Repository defines the interface for channel storage
type Repository interface {
	Create(ctx context.Context, ch *Channel) error
	GetActive(ctx context.Context, tenantID, channelType string) (*Channel, error)
	FindByPhone(ctx context.Context, phoneNumber string) (*Channel, error)
	Deactivate(ctx context.Context, id string) error
}

// SendResult is the uniform outbound result contract. Core never depends
// on provider-specific fields beyond this pair.
type SendResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Sender delivers text to a destination on some provider
type Sender interface {
	Send(ctx context.Context, destination, text string) SendResult
}
