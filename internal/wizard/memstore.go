package wizard

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pitabwire/mercura/model"
)

// MemorySessionStore is an in-memory SessionStore. The default for single
// instance deployments and tests.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]model.WizardSession
}

// NewMemorySessionStore creates a new in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]model.WizardSession)}
}

// Create persists a new session.
func (s *MemorySessionStore) Create(_ context.Context, session model.WizardSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; exists {
		return model.NewConflictError(
			fmt.Sprintf("wizard session %q already exists", session.ID),
		)
	}
	s.sessions[session.ID] = cloneSession(session)
	return nil
}

// Get retrieves a session by ID.
func (s *MemorySessionStore) Get(_ context.Context, sessionID string) (model.WizardSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return model.WizardSession{}, model.NewSessionNotFoundError(
			fmt.Sprintf("wizard session %q not found", sessionID),
		)
	}
	return cloneSession(session), nil
}

// Update persists session changes with optimistic locking.
func (s *MemorySessionStore) Update(_ context.Context, session model.WizardSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.sessions[session.ID]
	if !exists {
		return model.NewSessionNotFoundError(
			fmt.Sprintf("wizard session %q not found", session.ID),
		)
	}
	if existing.Version != session.Version {
		return model.NewConflictError(
			fmt.Sprintf("wizard session %q version conflict (expected %d, got %d)", session.ID, session.Version, existing.Version),
		)
	}

	session.Version++
	session.UpdatedAt = time.Now().UTC()
	s.sessions[session.ID] = cloneSession(session)
	return nil
}

// FindExpired returns active sessions past their deadline.
func (s *MemorySessionStore) FindExpired(_ context.Context, cutoff time.Time) ([]model.WizardSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.WizardSession
	for _, session := range s.sessions {
		if session.Status != model.SessionStatusActive {
			continue
		}
		if !session.ExpiresAt.Before(cutoff) {
			continue
		}
		result = append(result, cloneSession(session))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ExpiresAt.Before(result[j].ExpiresAt)
	})
	return result, nil
}

// Delete removes a session.
func (s *MemorySessionStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sessionID]; !exists {
		return model.NewSessionNotFoundError(
			fmt.Sprintf("wizard session %q not found", sessionID),
		)
	}
	delete(s.sessions, sessionID)
	return nil
}

// Len returns the number of stored sessions. For testing.
func (s *MemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// cloneSession copies the session so callers can't mutate stored state.
func cloneSession(session model.WizardSession) model.WizardSession {
	out := session
	if session.Values != nil {
		out.Values = make(map[string]any, len(session.Values))
		for k, v := range session.Values {
			out.Values[k] = v
		}
	}
	if session.Result != nil {
		out.Result = session.Result.Clone()
	}
	return out
}
