// Package integration provides a reusable harness for end-to-end testing of
// the Mercura BFF. It wires the full router against a mock collection API
// and the shipped resource definitions.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/pitabwire/mercura/internal/collection"
	"github.com/pitabwire/mercura/internal/command"
	"github.com/pitabwire/mercura/internal/config"
	"github.com/pitabwire/mercura/internal/definition"
	"github.com/pitabwire/mercura/internal/enrich"
	"github.com/pitabwire/mercura/internal/metadata"
	"github.com/pitabwire/mercura/internal/observability"
	"github.com/pitabwire/mercura/internal/transport"
	"github.com/pitabwire/mercura/internal/wizard"
	"github.com/pitabwire/mercura/model"
)

// Harness encapsulates a fully wired BFF instance backed by a mock
// collection API.
type Harness struct {
	t      *testing.T
	server *httptest.Server

	Backend          *MockBackend
	Registry         *definition.Registry
	Client           *collection.Client
	Lister           *collection.CachedLister
	SessionStore     *wizard.MemorySessionStore
	IdempotencyStore *command.MemoryIdempotencyStore
	Executor         *command.Executor
	Wizard           *wizard.Engine
}

// HarnessOption configures the test harness.
type HarnessOption func(*harnessConfig)

type harnessConfig struct {
	retryAttempts    int
	breakerThreshold int
	upstreamTimeout  time.Duration
	cacheTTL         time.Duration
	sessionTTL       time.Duration
	handlerTimeout   time.Duration
}

// WithRetryAttempts sets the upstream retry budget for idempotent requests.
func WithRetryAttempts(n int) HarnessOption {
	return func(c *harnessConfig) { c.retryAttempts = n }
}

// WithBreakerThreshold sets the consecutive-failure count that opens the
// upstream circuit breaker.
func WithBreakerThreshold(n int) HarnessOption {
	return func(c *harnessConfig) { c.breakerThreshold = n }
}

// WithUpstreamTimeout sets the per-request upstream timeout.
func WithUpstreamTimeout(d time.Duration) HarnessOption {
	return func(c *harnessConfig) { c.upstreamTimeout = d }
}

// WithCacheTTL sets the list cache TTL.
func WithCacheTTL(d time.Duration) HarnessOption {
	return func(c *harnessConfig) { c.cacheTTL = d }
}

// WithSessionTTL sets the wizard session lifetime.
func WithSessionTTL(d time.Duration) HarnessOption {
	return func(c *harnessConfig) { c.sessionTTL = d }
}

// NewHarness creates and starts a full BFF test instance against a fresh
// mock backend. Cleanup is automatic.
func NewHarness(t *testing.T, opts ...HarnessOption) *Harness {
	t.Helper()

	hc := &harnessConfig{
		retryAttempts:    1,
		breakerThreshold: 100,
		upstreamTimeout:  5 * time.Second,
		cacheTTL:         time.Minute,
		sessionTTL:       30 * time.Minute,
		handlerTimeout:   10 * time.Second,
	}
	for _, opt := range opts {
		opt(hc)
	}

	logger := zap.NewNop()
	backend := NewMockBackend(t)

	loader := definition.NewLoader()
	defs, err := loader.LoadAll([]string{definitionsDir()})
	if err != nil {
		t.Fatalf("load definitions: %v", err)
	}
	if verrs := definition.NewValidator().Validate(defs); len(verrs) > 0 {
		t.Fatalf("definition validation: %v", verrs)
	}
	registry := definition.NewRegistry(defs)

	upstreamCfg := config.UpstreamConfig{
		BaseURL: backend.URL(),
		Timeout: hc.upstreamTimeout,
		Retry: config.RetryConfig{
			MaxAttempts:    hc.retryAttempts,
			BackoffInitial: time.Millisecond,
			BackoffMax:     5 * time.Millisecond,
		},
		CircuitBreaker: config.CircuitBreakerConfig{
			FailureThreshold: hc.breakerThreshold,
			SuccessThreshold: 1,
			Timeout:          time.Minute,
		},
	}
	client := collection.NewClient(upstreamCfg, logger)
	lister := collection.NewCachedLister(client, hc.cacheTTL, 100)

	// Deterministic enrichment so assertions can pin exact values.
	enricher := enrich.NewEnricher(&enrich.FixedProvider{Metrics: enrich.Metrics{
		CSAT:     4.5,
		Progress: 75,
		Trend:    []float64{10, 20, 30, 40, 50, 60, 70},
	}})

	idemStore := command.NewMemoryIdempotencyStore()
	executor := command.NewExecutor(registry, client, lister, logger,
		command.WithIdempotencyStore(idemStore, time.Hour))

	sessionStore := wizard.NewMemorySessionStore()
	engine := wizard.NewEngine(registry, sessionStore, executor, logger,
		wizard.WithSessionTTL(hc.sessionTTL))

	cfg := config.Defaults()
	cfg.Server.HandlerTimeout = hc.handlerTimeout
	cfg.Server.CORS.AllowedOrigins = []string{"http://localhost:3000"}
	cfg.Observability.Metrics.Enabled = false

	router := transport.NewRouter(transport.Dependencies{
		Config:   cfg,
		Logger:   logger,
		Pages:    metadata.NewPageProvider(registry, lister, enricher, logger),
		Forms:    metadata.NewFormProvider(registry, lister, logger),
		Executor: executor,
		Wizard:   engine,
		Ready: observability.ReadinessChecks{
			DefinitionsLoaded: func() bool { return len(registry.AllResources()) > 0 },
			UpstreamHealthy:   func() bool { return client.Breaker().State() != collection.BreakerOpen },
		},
	})

	h := &Harness{
		t:                t,
		Backend:          backend,
		Registry:         registry,
		Client:           client,
		Lister:           lister,
		SessionStore:     sessionStore,
		IdempotencyStore: idemStore,
		Executor:         executor,
		Wizard:           engine,
	}
	h.server = httptest.NewServer(router)
	t.Cleanup(h.server.Close)
	return h
}

// BaseURL returns the test server's base URL.
func (h *Harness) BaseURL() string {
	return h.server.URL
}

// GET performs a GET request against the BFF.
func (h *Harness) GET(path string) *http.Response {
	h.t.Helper()
	return h.doRequest(http.MethodGet, path, nil, nil)
}

// POST performs a POST request with a JSON body.
func (h *Harness) POST(path string, body any) *http.Response {
	h.t.Helper()
	return h.doRequest(http.MethodPost, path, body, nil)
}

// POSTWithHeaders performs a POST request with extra headers.
func (h *Harness) POSTWithHeaders(path string, body any, headers map[string]string) *http.Response {
	h.t.Helper()
	return h.doRequest(http.MethodPost, path, body, headers)
}

func (h *Harness) doRequest(method, path string, body any, headers map[string]string) *http.Response {
	h.t.Helper()

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			h.t.Fatalf("marshal request body: %v", err)
		}
		bodyReader = strings.NewReader(string(data))
	}

	req, err := http.NewRequestWithContext(context.Background(), method, h.server.URL+path, bodyReader)
	if err != nil {
		h.t.Fatalf("create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		h.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return resp
}

// ParseJSON reads the response body and unmarshals it into the target.
func (h *Harness) ParseJSON(resp *http.Response, target any) {
	h.t.Helper()
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read response body: %v", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		h.t.Fatalf("unmarshal response body: %v\nbody: %s", err, string(data))
	}
}

// AssertJSON checks the status code and parses the body.
func (h *Harness) AssertJSON(t *testing.T, resp *http.Response, expected int, target any) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
	h.ParseJSON(resp, target)
}

// AssertStatus checks the status code. The body is drained and replaced with
// an in-memory copy so callers can still read it afterwards (e.g. ErrorOf).
func (h *Harness) AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))
	if resp.StatusCode != expected {
		t.Errorf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
}

// ErrorOf extracts the error envelope from a response body.
func (h *Harness) ErrorOf(resp *http.Response) *model.ErrorEnvelope {
	h.t.Helper()
	var body struct {
		Error *model.ErrorEnvelope `json:"error"`
	}
	h.ParseJSON(resp, &body)
	if body.Error == nil {
		h.t.Fatal("response carried no error envelope")
	}
	return body.Error
}

// definitionsDir returns the absolute path to the shipped definitions.
func definitionsDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "definitions")
}

// ProductFixtures returns a small catalog for seeding the mock backend.
func ProductFixtures() []map[string]any {
	return []map[string]any{
		{"id": "p1", "productName": "Standing Desk", "sku": "DSK-100", "category": "Furniture",
			"price": 499.0, "stock": float64(12), "activeStatus": "active", "description": "Adjustable desk"},
		{"id": "p2", "productName": "Office Chair", "sku": "CHR-200", "category": "Furniture",
			"price": 149.0, "stock": float64(40), "activeStatus": "active", "description": "Mesh back"},
		{"id": "p3", "productName": "Desk Lamp", "sku": "LMP-300", "category": "Lighting",
			"price": 39.0, "stock": float64(0), "activeStatus": "inactive", "description": "LED lamp"},
	}
}

// OrderFixtures returns stored orders for seeding the mock backend.
func OrderFixtures() []map[string]any {
	return []map[string]any{
		{"id": "o1", "orderId": "ORD-1001", "clientName": "Acme Corp", "deliveryAddress": "1 Main St",
			"paymentStatus": "Paid", "deliveryStatus": "Shipped", "expectedDelivery": "2025-04-01",
			"items":       []any{map[string]any{"productId": "p1", "quantity": float64(1)}},
			"totalAmount": 499.0, "createdAt": "2025-03-01T09:00:00Z"},
		{"id": "o2", "orderId": "ORD-1002", "clientName": "Globex", "deliveryAddress": "2 High St",
			"paymentStatus": "Pending", "deliveryStatus": "Pending", "expectedDelivery": "2025-04-15",
			"items":       []any{map[string]any{"productId": "p3", "quantity": float64(2)}},
			"totalAmount": 78.0, "createdAt": "2025-03-02T10:00:00Z"},
	}
}
