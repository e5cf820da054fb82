package inference

import (
	"context"
	"errors"
	"fmt"
)

// Message is one role-tagged entry of conversation history
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Tool describes a capability advertised to the model
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Runtime is the uniform contract to invoke a language-model backend.
// History may be any length including empty; entries without both role
// and content are skipped by implementations.
type Runtime interface {
	Run(ctx context.Context, systemPrompt, message string, history []Message, tools []Tool) (string, error)
}

// Error codes
const (
	CodeTransport      = "transport_failed"
	CodeInvalidPayload = "invalid_payload"
	CodeMissingText    = "missing_text"
)

// Error is a distinguishable inference failure. Callers branch on Code,
// never on the message text.
type Error struct {
	Code        string
	Description string
	Err         error
}

func (e *Error) Error() string {
	return fmt.Sprintf("inference error: %s (%s)", e.Code, e.Description)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new inference error
func NewError(code, description string) *Error {
	return &Error{Code: code, Description: description}
}

// AsError reports whether err is an inference failure and returns it
// when so
func AsError(err error) (*Error, bool) {
	var infErr *Error
	if errors.As(err, &infErr) {
		return infErr, true
	}
	return nil, false
}
