// Package command executes create submissions end to end: validation,
// payload assembly, idempotency, the upstream write, and cache invalidation.
package command

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/pitabwire/mercura/internal/collection"
	"github.com/pitabwire/mercura/internal/definition"
	"github.com/pitabwire/mercura/internal/form"
	"github.com/pitabwire/mercura/model"
)

// Creator posts a new record to an upstream collection.
type Creator interface {
	Create(ctx context.Context, rctx *model.RequestContext, path string, record model.Record) (model.Record, error)
}

// ListCache serves cached collection listings and supports invalidation.
type ListCache interface {
	List(ctx context.Context, rctx *model.RequestContext, path string, query url.Values) (collection.ListResult, error)
	Invalidate(path string)
}

// Input is one create submission.
type Input struct {
	Values         map[string]any `json:"values"`
	IdempotencyKey string         `json:"-"`
}

// Observer receives lifecycle events from create execution. Implementations
// may record metrics or audit logs.
type Observer interface {
	OnCreateExecuted(ctx context.Context, event Event)
}

// Event describes the outcome of a create execution.
type Event struct {
	FormID   string        `json:"form_id"`
	Resource string        `json:"resource"`
	Success  bool          `json:"success"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Executor runs the create pipeline for a form.
type Executor struct {
	registry    *definition.Registry
	creator     Creator
	cache       ListCache
	validator   *form.Validator
	assembler   *form.Assembler
	idempotency IdempotencyStore
	idemTTL     time.Duration
	observers   []Observer
	logger      *zap.Logger
	now         func() time.Time
}

// ExecutorOption configures optional dependencies.
type ExecutorOption func(*Executor)

// WithIdempotencyStore sets the idempotency store and entry TTL.
func WithIdempotencyStore(store IdempotencyStore, ttl time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.idempotency = store
		if ttl > 0 {
			e.idemTTL = ttl
		}
	}
}

// WithObserver adds an execution observer.
func WithObserver(obs Observer) ExecutorOption {
	return func(e *Executor) { e.observers = append(e.observers, obs) }
}

// WithClock overrides the time source. For testing.
func WithClock(now func() time.Time) ExecutorOption {
	return func(e *Executor) { e.now = now }
}

// NewExecutor creates an Executor with its required dependencies.
func NewExecutor(
	registry *definition.Registry,
	creator Creator,
	cache ListCache,
	logger *zap.Logger,
	opts ...ExecutorOption,
) *Executor {
	e := &Executor{
		registry:  registry,
		creator:   creator,
		cache:     cache,
		validator: form.NewValidator(),
		assembler: form.NewAssembler(),
		idemTTL:   24 * time.Hour,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the full create pipeline for a form submission.
func (e *Executor) Execute(ctx context.Context, rctx *model.RequestContext, formID string, input Input) (model.CommandResponse, error) {
	start := time.Now()

	formDef, resource, ok := e.registry.GetForm(formID)
	if !ok {
		return model.CommandResponse{}, model.NewNotFoundError(
			fmt.Sprintf("form %q not found", formID),
		)
	}
	resourceDef, ok := e.registry.GetResource(resource)
	if !ok {
		return model.CommandResponse{}, model.NewNotFoundError(
			fmt.Sprintf("resource %q not found", resource),
		)
	}

	// Validate the whole form at once so every failing field is reported.
	schemaByName := form.SchemaByName(resourceDef.Schema)
	if errs := e.validator.ValidateFields(input.Values, formDef.Fields(), schemaByName); len(errs) > 0 {
		return model.CommandResponse{
			Success: false,
			Errors:  errs,
		}, model.NewValidationError(errs)
	}

	// Replay a previous result for a repeated key before touching upstream.
	var idemKey, inputHash string
	if e.idempotency != nil && input.IdempotencyKey != "" {
		idemKey = FormatIdempotencyKey(formID, input.IdempotencyKey)
		inputHash = hashInput(input)

		cached, found, err := e.idempotency.Check(ctx, idemKey, inputHash)
		if err != nil {
			return model.CommandResponse{}, err
		}
		if found && cached != nil {
			return *cached, nil
		}
	}

	payload, err := e.assembler.BuildPayload(input.Values, formDef.Fields(), schemaByName)
	if err != nil {
		return model.CommandResponse{}, model.NewBadRequestError(
			fmt.Sprintf("payload assembly: %v", err),
		)
	}

	if err := e.finalizePayload(ctx, rctx, formDef, payload); err != nil {
		e.notifyObservers(ctx, formID, resource, false, time.Since(start), err.Error())
		return model.CommandResponse{}, err
	}

	created, err := e.creator.Create(ctx, rctx, resourceDef.Collection.Path, payload)
	if err != nil {
		e.notifyObservers(ctx, formID, resource, false, time.Since(start), err.Error())
		return model.CommandResponse{}, err
	}

	// Invalidate cached listings before reporting success so the client's
	// follow-up list fetch cannot observe the stale snapshot.
	e.cache.Invalidate(resourceDef.Collection.Path)

	resp := model.CommandResponse{
		Success: true,
		Message: formDef.SuccessMessage,
		Result:  created,
	}

	if idemKey != "" {
		// Best effort, a failed store only costs dedup on retry.
		if err := e.idempotency.Store(ctx, idemKey, inputHash, resp, e.idemTTL); err != nil {
			e.logger.Warn("command: idempotency store failed",
				zap.String("form_id", formID),
				zap.Error(err),
			)
		}
	}

	e.notifyObservers(ctx, formID, resource, true, time.Since(start), "")
	return resp, nil
}

// finalizePayload attaches server-computed fields. An items field bound to
// a product source turns the submission into an order: line totals come
// from the current product catalog, never from the client.
func (e *Executor) finalizePayload(ctx context.Context, rctx *model.RequestContext, formDef model.FormDefinition, payload model.Record) error {
	itemsField, ok := findItemsField(formDef)
	if !ok {
		return nil
	}

	sourceDef, ok := e.registry.GetResource(itemsField.OptionsSource)
	if !ok {
		return model.NewInternalError()
	}

	listing, err := e.cache.List(ctx, rctx, sourceDef.Collection.Path, nil)
	if err != nil {
		return err
	}

	catalog := form.CatalogFromRecords(listing.Items)
	unresolved, err := form.FinalizeOrder(payload, catalog, e.now())
	if err != nil {
		return model.NewValidationError([]model.FieldError{{
			Field:   itemsField.Name,
			Code:    "INVALID_VALUE",
			Message: err.Error(),
		}})
	}
	if len(unresolved) > 0 {
		// Lines without a catalog match are priced at zero, not rejected.
		e.logger.Warn("command: order items priced at zero",
			zap.String("form_id", formDef.ID),
			zap.Strings("product_ids", unresolved),
		)
	}
	return nil
}

func findItemsField(formDef model.FormDefinition) (model.FormField, bool) {
	for _, f := range formDef.Fields() {
		if f.Type == "items" && f.OptionsSource != "" {
			return f, true
		}
	}
	return model.FormField{}, false
}

func (e *Executor) notifyObservers(ctx context.Context, formID, resource string, success bool, duration time.Duration, errMsg string) {
	if len(e.observers) == 0 {
		return
	}
	event := Event{
		FormID:   formID,
		Resource: resource,
		Success:  success,
		Duration: duration,
		Error:    errMsg,
	}
	for _, obs := range e.observers {
		obs.OnCreateExecuted(ctx, event)
	}
}

// hashInput produces a deterministic hash of submitted values for
// idempotency comparison.
func hashInput(input Input) string {
	data, _ := json.Marshal(input.Values)
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
