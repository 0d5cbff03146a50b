package transport

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pitabwire/mercura/model"
)

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusOK, map[string]string{"hello": "world"})

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["hello"] != "world" {
		t.Errorf("body = %v", body)
	}
}

func TestWriteErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
		code string
	}{
		{"bad request", model.NewBadRequestError("nope"), http.StatusBadRequest, model.ErrBadRequest},
		{"not found", model.NewNotFoundError("missing"), http.StatusNotFound, model.ErrNotFound},
		{"conflict", model.NewConflictError("dup"), http.StatusConflict, model.ErrConflict},
		{"validation", model.NewValidationError([]model.FieldError{{Field: "sku"}}), http.StatusUnprocessableEntity, model.ErrValidationError},
		{"network", model.NewNetworkError("refused"), http.StatusBadGateway, model.ErrNetworkError},
		{"unavailable", model.NewUpstreamUnavailableError(), http.StatusBadGateway, model.ErrUpstreamUnavailable},
		{"timeout", model.NewUpstreamTimeoutError(), http.StatusGatewayTimeout, model.ErrUpstreamTimeout},
		{"invalid transition", model.NewInvalidTransitionError("no"), http.StatusUnprocessableEntity, model.ErrInvalidTransition},
		{"session not found", model.NewSessionNotFoundError("gone"), http.StatusNotFound, model.ErrSessionNotFound},
		{"session not active", model.NewSessionNotActiveError("done"), http.StatusConflict, model.ErrSessionNotActive},
		{"session expired", model.NewSessionExpiredError("late"), http.StatusGone, model.ErrSessionExpired},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, model.ErrInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, tt.err)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}

			var body struct {
				Error *model.ErrorEnvelope `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if body.Error == nil || body.Error.Code != tt.code {
				t.Errorf("code = %+v, want %q", body.Error, tt.code)
			}
		})
	}
}

func TestWriteValidationErrorDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteValidationError(rec, []model.FieldError{
		{Field: "price", Code: "MIN", Message: "price must be at least 0"},
	})

	var body struct {
		Error *model.ErrorEnvelope `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(body.Error.Details) != 1 || body.Error.Details[0].Field != "price" {
		t.Errorf("details = %+v", body.Error.Details)
	}
}
