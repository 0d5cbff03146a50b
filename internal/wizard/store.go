// Package wizard runs multi-step form sessions. Values accumulate server
// side as the user moves through steps; nothing reaches the upstream API
// until the final submit.
package wizard

import (
	"context"
	"time"

	"github.com/pitabwire/mercura/model"
)

// SessionStore persists wizard sessions.
type SessionStore interface {
	// Create persists a new session.
	Create(ctx context.Context, session model.WizardSession) error

	// Get retrieves a session by ID. Returns NOT_FOUND if it doesn't exist.
	Get(ctx context.Context, sessionID string) (model.WizardSession, error)

	// Update persists session changes with optimistic locking. The version
	// must match the stored version. Returns CONFLICT if it moved.
	Update(ctx context.Context, session model.WizardSession) error

	// FindExpired returns active sessions whose deadline is before cutoff.
	FindExpired(ctx context.Context, cutoff time.Time) ([]model.WizardSession, error)

	// Delete removes a session.
	Delete(ctx context.Context, sessionID string) error
}
