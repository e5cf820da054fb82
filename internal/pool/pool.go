package pool

import (
	"context"
	"errors"
	"time"
)

// Resource status constants. Lifecycle: available -> assigned -> available
// (release), any -> retired (terminal).
const (
	StatusAvailable = "available"
	StatusAssigned  = "assigned"
	StatusRetired   = "retired"
)

var (
	// ErrExhausted is a first-class recoverable condition: callers must
	// be able to tell "no capacity" apart from a system failure.
	ErrExhausted       = errors.New("resource pool exhausted")
	ErrInvalidResource = errors.New("invalid resource token")
	ErrAlreadyInPool   = errors.New("resource already registered")
	ErrNotFound        = errors.New("pooled resource not found")
)

// Resource is a pre-provisioned bot identity held in reserve.
// Invariant: AssignedTo is non-empty iff Status == assigned.
type Resource struct {
	ID          string     `json:"id"`
	Token       string     `json:"-"` // sealed in storage, clear in memory
	Username    string     `json:"username"`
	DisplayName string     `json:"display_name"`
	Status      string     `json:"status"`
	AssignedTo  string     `json:"assigned_to,omitempty"`
	AssignedAt  *time.Time `json:"assigned_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Status is a snapshot of pool capacity
type Status struct {
	Available int  `json:"available"`
	Assigned  int  `json:"assigned"`
	Retired   int  `json:"retired"`
	Total     int  `json:"total"`
	LowAlert  bool `json:"low_alert"`
}

// Identity is what the external provider reports for a valid token
type Identity struct {
	Username    string
	DisplayName string
}

// Validator checks a token against the external identity provider
type Validator interface {
	Validate(ctx context.Context, token string) (*Identity, error)
}

// Repository defines the interface for pool storage. Claim must be a
// single serializable transaction: concurrent claims never double-assign.
type Repository interface {
	Create(ctx context.Context, r *Resource) error

	// Claim atomically selects the oldest available resource and binds
	// it to tenantID. Returns ErrExhausted when none is available.
	Claim(ctx context.Context, tenantID string, at time.Time) (*Resource, error)

	// Release returns the tenant's assigned resource to the pool.
	// Reports false when the tenant holds none.
	Release(ctx context.Context, tenantID string) (bool, error)

	// Retire forces the terminal state regardless of current status
	Retire(ctx context.Context, resourceID string) (bool, error)

	GetByTenant(ctx context.Context, tenantID string) (*Resource, error)
	Counts(ctx context.Context) (available, assigned, retired int, err error)
}
