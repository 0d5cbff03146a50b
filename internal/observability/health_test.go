package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubChecker struct {
	err error
}

func (c *stubChecker) HealthCheck(context.Context) error { return c.err }

func decodeReadiness(t *testing.T, rec *httptest.ResponseRecorder) ReadinessResponse {
	t.Helper()
	var resp ReadinessResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

func TestHandleHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleHealth()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("Status = %q", resp.Status)
	}
}

func TestHandleReady_allOK(t *testing.T) {
	handler := HandleReady(ReadinessChecks{
		DefinitionsLoaded: func() bool { return true },
		UpstreamHealthy:   func() bool { return true },
		SessionStore:      &stubChecker{},
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decodeReadiness(t, rec)
	if resp.Status != "ready" {
		t.Errorf("Status = %q", resp.Status)
	}
	if len(resp.Checks) != 3 {
		t.Errorf("checks = %d", len(resp.Checks))
	}
}

func TestHandleReady_definitionsMissing(t *testing.T) {
	handler := HandleReady(ReadinessChecks{
		DefinitionsLoaded: func() bool { return false },
		UpstreamHealthy:   func() bool { return true },
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decodeReadiness(t, rec)
	if resp.Status != "not_ready" {
		t.Errorf("Status = %q", resp.Status)
	}
	if resp.Checks["definitions"].Status != "error" {
		t.Errorf("definitions check = %+v", resp.Checks["definitions"])
	}
}

func TestHandleReady_optionalCheckerFailure(t *testing.T) {
	handler := HandleReady(ReadinessChecks{
		DefinitionsLoaded: func() bool { return true },
		UpstreamHealthy:   func() bool { return true },
		IdempotencyStore:  &stubChecker{err: errors.New("redis down")},
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decodeReadiness(t, rec)
	if resp.Checks["idempotency_store"].Error != "redis down" {
		t.Errorf("check = %+v", resp.Checks["idempotency_store"])
	}
}
