package tenant

import (
	"time"
)

// Tenant represents a paying customer of the platform, owner of exactly
// one agent
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Status constants. Transitions are admin-controlled.
const (
	StatusActive    = "active"
	StatusInactive  = "inactive"
	StatusSuspended = "suspended"
)

// IsActive reports whether the tenant may receive dispatched messages
func (t *Tenant) IsActive() bool {
	return t.Status == StatusActive
}
