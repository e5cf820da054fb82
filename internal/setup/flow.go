package setup

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrNoOpenSession = errors.New("no open setup session")

// ValidationError is a recoverable bad-input failure: the user is
// re-prompted with Message and the session does not advance.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Answers maps step index to the answer given at that step
type Answers map[int]string

// Flow is one scripted multi-turn setup conversation. Implementations
// are a fixed, compile-time-known set; flows are never registered at
// runtime by name.
type Flow interface {
	Name() string
	// Triggers are the words that start this flow from free text
	Triggers() []string
	// Steps are the ordered prompts shown to the user
	Steps() []string
	// Validate checks the input for a step. A *ValidationError keeps the
	// session at the same step; any other error aborts the turn.
	Validate(step int, input string) error
	// Execute runs the terminal side-effecting action once every step
	// has an answer and returns the completion message.
	Execute(ctx context.Context, tenantID string, answers Answers) (string, error)
}

// Session tracks one tenant's progress through a flow. At most one
// session per tenant has CompletedAt == nil at any time.
type Session struct {
	ID          string     `json:"id"`
	TenantID    string     `json:"tenant_id"`
	FlowName    string     `json:"flow_name"`
	Step        int        `json:"step"`
	Answers     Answers    `json:"answers"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Repository defines the interface for session storage
type Repository interface {
	// GetOpen returns the tenant's open session, ErrNoOpenSession when
	// none exists
	GetOpen(ctx context.Context, tenantID string) (*Session, error)
	Create(ctx context.Context, session *Session) error
	Update(ctx context.Context, session *Session) error
}

// Prompt returns the prompt for a step of a flow
func Prompt(f Flow, step int) string {
	steps := f.Steps()
	if step < len(steps) {
		return steps[step]
	}
	return "Setup complete!"
}

func validationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
