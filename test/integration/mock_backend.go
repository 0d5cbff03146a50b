package integration

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"
)

// MockBackend simulates the remote collection REST API. Each collection is a
// stateful in-memory list served at GET /<path> and appended to at
// POST /<path>. Scripted responses can be queued per route to simulate
// failures, delays, and malformed payloads; once the queue drains, the last
// scripted response repeats unless the route falls back to stateful mode.
type MockBackend struct {
	t      *testing.T
	server *httptest.Server

	mu          sync.RWMutex
	collections map[string][]map[string]any
	scripted    map[string]*responseQueue
	received    map[string][]*RecordedRequest
	nextID      int
	countHeader bool
}

// RecordedRequest captures one request received by the mock backend.
type RecordedRequest struct {
	Method      string
	Path        string
	QueryParams map[string]string
	Headers     http.Header
	Body        map[string]any
	ReceivedAt  time.Time
}

type responseQueue struct {
	responses []*mockResponse
	current   int
	exhaust   bool
}

type mockResponse struct {
	status    int
	rawBody   string
	body      any
	delay     time.Duration
	connError bool
}

// RouteMock configures scripted responses for one "METHOD /path" route.
type RouteMock struct {
	backend *MockBackend
	route   string
}

// NewMockBackend starts a mock collection API server. The server is closed
// when the test finishes.
func NewMockBackend(t *testing.T) *MockBackend {
	t.Helper()

	mb := &MockBackend{
		t:           t,
		collections: make(map[string][]map[string]any),
		scripted:    make(map[string]*responseQueue),
		received:    make(map[string][]*RecordedRequest),
		nextID:      1,
		countHeader: true,
	}
	mb.server = httptest.NewServer(http.HandlerFunc(mb.handle))
	t.Cleanup(mb.server.Close)
	return mb
}

// URL returns the base URL of the mock server.
func (mb *MockBackend) URL() string {
	return mb.server.URL
}

// DisableCountHeader stops the mock from sending X-Total-Count, forcing the
// client to fall back to counting the response slice.
func (mb *MockBackend) DisableCountHeader() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.countHeader = false
}

// Seed replaces the stored records for a collection path.
func (mb *MockBackend) Seed(path string, records []map[string]any) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.collections[path] = records
}

// Records returns a copy of the stored records for a collection path.
func (mb *MockBackend) Records(path string) []map[string]any {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	out := make([]map[string]any, len(mb.collections[path]))
	copy(out, mb.collections[path])
	return out
}

// On returns a builder for scripting responses on "METHOD /path".
func (mb *MockBackend) On(method, path string) *RouteMock {
	return &RouteMock{backend: mb, route: method + " " + path}
}

// RespondWith queues a JSON response.
func (rm *RouteMock) RespondWith(status int, body any) *RouteMock {
	rm.backend.addScripted(rm.route, &mockResponse{status: status, body: body})
	return rm
}

// RespondWithRaw queues a response with a verbatim body.
func (rm *RouteMock) RespondWithRaw(status int, body string) *RouteMock {
	rm.backend.addScripted(rm.route, &mockResponse{status: status, rawBody: body})
	return rm
}

// RespondWithDelay queues a delayed response to simulate a slow upstream.
func (rm *RouteMock) RespondWithDelay(delay time.Duration, status int, body any) *RouteMock {
	rm.backend.addScripted(rm.route, &mockResponse{status: status, body: body, delay: delay})
	return rm
}

// RespondWithConnectionError queues a dropped connection.
func (rm *RouteMock) RespondWithConnectionError() *RouteMock {
	rm.backend.addScripted(rm.route, &mockResponse{connError: true})
	return rm
}

// ThenFallthrough makes the route resume stateful behavior once the queued
// responses are consumed, instead of repeating the last one.
func (rm *RouteMock) ThenFallthrough() {
	rm.backend.mu.Lock()
	defer rm.backend.mu.Unlock()
	if q, ok := rm.backend.scripted[rm.route]; ok {
		q.exhaust = true
	}
}

func (mb *MockBackend) addScripted(route string, resp *mockResponse) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	q, ok := mb.scripted[route]
	if !ok {
		q = &responseQueue{}
		mb.scripted[route] = q
	}
	q.responses = append(q.responses, resp)
}

func (mb *MockBackend) handle(w http.ResponseWriter, r *http.Request) {
	route := r.Method + " " + r.URL.Path
	mb.record(route, r)

	if resp := mb.nextScripted(route); resp != nil {
		mb.serveScripted(w, resp)
		return
	}

	switch r.Method {
	case http.MethodGet:
		mb.serveList(w, r)
	case http.MethodPost:
		mb.serveCreate(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (mb *MockBackend) record(route string, r *http.Request) {
	rec := &RecordedRequest{
		Method:      r.Method,
		Path:        r.URL.Path,
		QueryParams: make(map[string]string),
		Headers:     r.Header.Clone(),
		ReceivedAt:  time.Now(),
	}
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			rec.QueryParams[key] = values[0]
		}
	}
	if r.Body != nil {
		body, _ := io.ReadAll(r.Body)
		if len(body) > 0 {
			var parsed map[string]any
			if err := json.Unmarshal(body, &parsed); err == nil {
				rec.Body = parsed
			}
		}
	}

	mb.mu.Lock()
	mb.received[route] = append(mb.received[route], rec)
	mb.mu.Unlock()
}

func (mb *MockBackend) nextScripted(route string) *mockResponse {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	q, ok := mb.scripted[route]
	if !ok || len(q.responses) == 0 {
		return nil
	}
	if q.current >= len(q.responses) {
		if q.exhaust {
			return nil
		}
		return q.responses[len(q.responses)-1]
	}
	resp := q.responses[q.current]
	q.current++
	return resp
}

func (mb *MockBackend) serveScripted(w http.ResponseWriter, resp *mockResponse) {
	if resp.connError {
		if hj, ok := w.(http.Hijacker); ok {
			if conn, _, err := hj.Hijack(); err == nil {
				conn.Close()
			}
		}
		return
	}
	if resp.delay > 0 {
		time.Sleep(resp.delay)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.status)
	if resp.rawBody != "" {
		fmt.Fprint(w, resp.rawBody)
		return
	}
	if resp.body != nil {
		json.NewEncoder(w).Encode(resp.body)
	}
}

func (mb *MockBackend) serveList(w http.ResponseWriter, r *http.Request) {
	mb.mu.RLock()
	records, ok := mb.collections[r.URL.Path]
	sendCount := mb.countHeader
	mb.mu.RUnlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "unknown collection " + r.URL.Path})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if sendCount {
		w.Header().Set("X-Total-Count", strconv.Itoa(len(records)))
	}
	json.NewEncoder(w).Encode(records)
}

func (mb *MockBackend) serveCreate(w http.ResponseWriter, r *http.Request) {
	route := http.MethodPost + " " + r.URL.Path
	mb.mu.Lock()
	reqs := mb.received[route]
	rec := reqs[len(reqs)-1]

	created := make(map[string]any, len(rec.Body)+1)
	for k, v := range rec.Body {
		created[k] = v
	}
	created["id"] = strconv.Itoa(mb.nextID)
	mb.nextID++
	mb.collections[r.URL.Path] = append(mb.collections[r.URL.Path], created)
	mb.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}

// CallCount returns how many requests hit "METHOD /path".
func (mb *MockBackend) CallCount(method, path string) int {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	return len(mb.received[method+" "+path])
}

// LastRequest returns the last request received on "METHOD /path", or nil.
func (mb *MockBackend) LastRequest(method, path string) *RecordedRequest {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	reqs := mb.received[method+" "+path]
	if len(reqs) == 0 {
		return nil
	}
	return reqs[len(reqs)-1]
}

// AssertCalled verifies the route was hit the expected number of times.
func (mb *MockBackend) AssertCalled(t *testing.T, method, path string, want int) {
	t.Helper()
	if got := mb.CallCount(method, path); got != want {
		t.Errorf("mock: %s %s called %d times, want %d", method, path, got, want)
	}
}
