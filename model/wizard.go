package model

import "time"

// Wizard session statuses.
const (
	SessionStatusActive    = "active"
	SessionStatusCompleted = "completed"
	SessionStatusCancelled = "cancelled"
	SessionStatusExpired   = "expired"
)

// Wizard events accepted by the advance endpoint.
const (
	WizardEventNext   = "next"
	WizardEventBack   = "back"
	WizardEventSubmit = "submit"
	WizardEventCancel = "cancel"
)

// WizardSession is one in-flight multi-step form session. Values accumulate
// step by step and are only sent upstream on final submit.
type WizardSession struct {
	ID          string         `json:"id"`
	FormID      string         `json:"form_id"`
	Resource    string         `json:"resource"`
	Status      string         `json:"status"`
	CurrentStep string         `json:"current_step"`
	StepIndex   int            `json:"step_index"`
	Values      map[string]any `json:"values"`
	Version     int            `json:"version"`
	StartedAt   time.Time      `json:"started_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	ExpiresAt   time.Time      `json:"expires_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Result      Record         `json:"result,omitempty"`
}

// Active reports whether the session can still accept events.
func (s *WizardSession) Active() bool {
	return s.Status == SessionStatusActive
}

// ExpiredAt reports whether the session deadline passed at the given instant.
func (s *WizardSession) ExpiredAt(now time.Time) bool {
	return s.Status == SessionStatusActive && now.After(s.ExpiresAt)
}

// WizardEvent is the body of an advance request.
type WizardEvent struct {
	Event  string         `json:"event"`
	Values map[string]any `json:"values,omitempty"`
}

// WizardStateResponse is the session view returned after every wizard call.
type WizardStateResponse struct {
	Session     *WizardSession  `json:"session"`
	Step        *StepDescriptor `json:"step,omitempty"`
	StepCount   int             `json:"step_count"`
	CanGoBack   bool            `json:"can_go_back"`
	IsFinalStep bool            `json:"is_final_step"`
}
