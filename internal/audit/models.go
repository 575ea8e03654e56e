package audit

import "time"

// Event is an immutable, append-only auth audit record.
//
// Invariants:
// - Events are never updated or deleted.
// - Token values and passwords are never stored.
// - Recording is best-effort; auth flows never fail because audit failed.
//
// Storage (Postgres): table auth_events, INSERT-only.
type Event struct {
	ID   string    `json:"id" db:"id"`
	Type EventType `json:"type" db:"type"`

	// UserID is empty when the actor could not be resolved (e.g. unknown email).
	UserID string `json:"user_id,omitempty" db:"user_id"`
	// Email is the address presented by the client, normalized.
	Email string `json:"email,omitempty" db:"email"`

	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent string `json:"user_agent,omitempty" db:"user_agent"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeRegistered     EventType = "registered"
	EventTypeLoginSucceeded EventType = "login_succeeded"
	EventTypeLoginFailed    EventType = "login_failed"
	EventTypeLoginThrottled EventType = "login_throttled"
	EventTypeTokenRefreshed EventType = "token_refreshed"
	EventTypeRefreshFailed  EventType = "token_refresh_failed"
	EventTypeLoggedOut      EventType = "logged_out"
)
