package wizard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pitabwire/mercura/internal/command"
	"github.com/pitabwire/mercura/internal/definition"
	"github.com/pitabwire/mercura/internal/form"
	"github.com/pitabwire/mercura/model"
)

const defaultSessionTTL = 30 * time.Minute

// Submitter runs the create pipeline when a wizard session submits. The
// command executor satisfies this.
type Submitter interface {
	Execute(ctx context.Context, rctx *model.RequestContext, formID string, input command.Input) (model.CommandResponse, error)
}

// Engine manages the lifecycle of wizard sessions.
type Engine struct {
	registry  *definition.Registry
	store     SessionStore
	submitter Submitter
	validator *form.Validator
	ttl       time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithSessionTTL overrides the default session lifetime.
func WithSessionTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl > 0 {
			e.ttl = ttl
		}
	}
}

// WithClock overrides the time source. For testing.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a wizard engine.
func NewEngine(
	registry *definition.Registry,
	store SessionStore,
	submitter Submitter,
	logger *zap.Logger,
	opts ...Option,
) *Engine {
	e := &Engine{
		registry:  registry,
		store:     store,
		submitter: submitter,
		validator: form.NewValidator(),
		ttl:       defaultSessionTTL,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start creates a new session positioned on the form's first step.
func (e *Engine) Start(ctx context.Context, rctx *model.RequestContext, formID string) (model.WizardStateResponse, error) {
	formDef, resource, ok := e.registry.GetForm(formID)
	if !ok {
		return model.WizardStateResponse{}, model.NewNotFoundError(
			fmt.Sprintf("form %q not found", formID),
		)
	}
	if !formDef.MultiStep() {
		return model.WizardStateResponse{}, model.NewBadRequestError(
			fmt.Sprintf("form %q is single-step, submit it directly", formID),
		)
	}

	now := e.now().UTC()
	session := model.WizardSession{
		ID:          uuid.New().String(),
		FormID:      formID,
		Resource:    resource,
		Status:      model.SessionStatusActive,
		CurrentStep: formDef.Steps[0].ID,
		StepIndex:   0,
		Values:      make(map[string]any),
		Version:     1,
		StartedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(e.ttl),
	}

	if err := e.store.Create(ctx, session); err != nil {
		return model.WizardStateResponse{}, err
	}
	return e.stateResponse(session, formDef), nil
}

// Get returns the current session state. An active session past its
// deadline is expired on read.
func (e *Engine) Get(ctx context.Context, rctx *model.RequestContext, sessionID string) (model.WizardStateResponse, error) {
	session, formDef, err := e.loadActive(ctx, sessionID, true)
	if err != nil {
		return model.WizardStateResponse{}, err
	}
	return e.stateResponse(session, formDef), nil
}

// Advance processes a wizard event on the session's current step.
func (e *Engine) Advance(ctx context.Context, rctx *model.RequestContext, sessionID string, event model.WizardEvent) (model.WizardStateResponse, error) {
	session, formDef, err := e.loadActive(ctx, sessionID, false)
	if err != nil {
		return model.WizardStateResponse{}, err
	}

	mergeValues(&session, event.Values)

	switch event.Event {
	case model.WizardEventNext:
		return e.advanceNext(ctx, session, formDef)
	case model.WizardEventBack:
		return e.advanceBack(ctx, session, formDef)
	case model.WizardEventSubmit:
		return e.submit(ctx, rctx, session, formDef)
	case model.WizardEventCancel:
		return e.cancel(ctx, session, formDef)
	default:
		return model.WizardStateResponse{}, model.NewBadRequestError(
			fmt.Sprintf("unknown wizard event %q", event.Event),
		)
	}
}

// ProcessExpirations marks overdue active sessions as expired. Run
// periodically from main.
func (e *Engine) ProcessExpirations(ctx context.Context) error {
	expired, err := e.store.FindExpired(ctx, e.now().UTC())
	if err != nil {
		return fmt.Errorf("find expired sessions: %w", err)
	}

	for _, session := range expired {
		session.Status = model.SessionStatusExpired
		if err := e.store.Update(ctx, session); err != nil {
			e.logger.Warn("expire wizard session",
				zap.String("session_id", session.ID),
				zap.Error(err),
			)
			continue
		}
		e.logger.Info("wizard session expired",
			zap.String("session_id", session.ID),
			zap.String("form_id", session.FormID),
		)
	}
	return nil
}

func (e *Engine) advanceNext(ctx context.Context, session model.WizardSession, formDef model.FormDefinition) (model.WizardStateResponse, error) {
	if session.StepIndex >= len(formDef.Steps)-1 {
		return model.WizardStateResponse{}, model.NewInvalidTransitionError(
			fmt.Sprintf("session %q is on the final step, submit instead", session.ID),
		)
	}

	if errs := e.validateStep(session, formDef.Steps[session.StepIndex]); len(errs) > 0 {
		// Keep entered values but stay on the step.
		if err := e.store.Update(ctx, session); err != nil {
			return model.WizardStateResponse{}, err
		}
		session.Version++
		return e.stateResponse(session, formDef), model.NewValidationError(errs)
	}

	session.StepIndex++
	session.CurrentStep = formDef.Steps[session.StepIndex].ID
	if err := e.store.Update(ctx, session); err != nil {
		return model.WizardStateResponse{}, err
	}
	session.Version++
	return e.stateResponse(session, formDef), nil
}

func (e *Engine) advanceBack(ctx context.Context, session model.WizardSession, formDef model.FormDefinition) (model.WizardStateResponse, error) {
	if session.StepIndex == 0 {
		return model.WizardStateResponse{}, model.NewInvalidTransitionError(
			fmt.Sprintf("session %q is on the first step", session.ID),
		)
	}

	// Back never validates. Entered values are kept.
	session.StepIndex--
	session.CurrentStep = formDef.Steps[session.StepIndex].ID
	if err := e.store.Update(ctx, session); err != nil {
		return model.WizardStateResponse{}, err
	}
	session.Version++
	return e.stateResponse(session, formDef), nil
}

func (e *Engine) submit(ctx context.Context, rctx *model.RequestContext, session model.WizardSession, formDef model.FormDefinition) (model.WizardStateResponse, error) {
	if session.StepIndex != len(formDef.Steps)-1 {
		return model.WizardStateResponse{}, model.NewInvalidTransitionError(
			fmt.Sprintf("session %q must reach the final step before submit", session.ID),
		)
	}

	resp, err := e.submitter.Execute(ctx, rctx, session.FormID, command.Input{Values: session.Values})
	if err != nil {
		// Persist the latest values so the user can fix and resubmit.
		if uerr := e.store.Update(ctx, session); uerr == nil {
			session.Version++
		}
		return e.stateResponse(session, formDef), err
	}

	now := e.now().UTC()
	session.Status = model.SessionStatusCompleted
	session.CompletedAt = &now
	session.Result = resp.Result
	if err := e.store.Update(ctx, session); err != nil {
		return model.WizardStateResponse{}, err
	}
	session.Version++
	return e.stateResponse(session, formDef), nil
}

func (e *Engine) cancel(ctx context.Context, session model.WizardSession, formDef model.FormDefinition) (model.WizardStateResponse, error) {
	session.Status = model.SessionStatusCancelled
	if err := e.store.Update(ctx, session); err != nil {
		return model.WizardStateResponse{}, err
	}
	session.Version++
	return e.stateResponse(session, formDef), nil
}

// loadActive loads a session and its form. With readOnly false the session
// must be active; either way an overdue session is marked expired first.
func (e *Engine) loadActive(ctx context.Context, sessionID string, readOnly bool) (model.WizardSession, model.FormDefinition, error) {
	session, err := e.store.Get(ctx, sessionID)
	if err != nil {
		return model.WizardSession{}, model.FormDefinition{}, err
	}

	formDef, _, ok := e.registry.GetForm(session.FormID)
	if !ok {
		return model.WizardSession{}, model.FormDefinition{}, model.NewNotFoundError(
			fmt.Sprintf("form %q not found", session.FormID),
		)
	}

	if session.ExpiredAt(e.now().UTC()) {
		session.Status = model.SessionStatusExpired
		if err := e.store.Update(ctx, session); err != nil {
			return model.WizardSession{}, model.FormDefinition{}, err
		}
		return model.WizardSession{}, model.FormDefinition{}, model.NewSessionExpiredError(
			fmt.Sprintf("wizard session %q has expired", sessionID),
		)
	}

	if !readOnly && !session.Active() {
		return model.WizardSession{}, model.FormDefinition{}, model.NewSessionNotActiveError(
			fmt.Sprintf("wizard session %q is %s", sessionID, session.Status),
		)
	}
	return session, formDef, nil
}

func (e *Engine) validateStep(session model.WizardSession, step model.StepDefinition) []model.FieldError {
	resDef, ok := e.registry.GetResource(session.Resource)
	if !ok {
		return []model.FieldError{{
			Field:   "",
			Code:    "INVALID_VALUE",
			Message: fmt.Sprintf("resource %q not found", session.Resource),
		}}
	}
	return e.validator.ValidateFields(session.Values, step.Fields, form.SchemaByName(resDef.Schema))
}

func (e *Engine) stateResponse(session model.WizardSession, formDef model.FormDefinition) model.WizardStateResponse {
	resp := model.WizardStateResponse{
		Session:     &session,
		StepCount:   len(formDef.Steps),
		CanGoBack:   session.StepIndex > 0 && session.Active(),
		IsFinalStep: session.StepIndex == len(formDef.Steps)-1,
	}

	if session.Active() && session.StepIndex < len(formDef.Steps) {
		var schemaByName map[string]model.FieldSchema
		if resDef, ok := e.registry.GetResource(session.Resource); ok {
			schemaByName = form.SchemaByName(resDef.Schema)
		}
		step := form.DescribeStep(formDef.Steps[session.StepIndex], schemaByName)
		resp.Step = &step
	}
	return resp
}

func mergeValues(session *model.WizardSession, values map[string]any) {
	if session.Values == nil {
		session.Values = make(map[string]any)
	}
	for k, v := range values {
		session.Values[k] = v
	}
}
