package collection

import (
	"fmt"
	"sync"
	"time"

	"github.com/pitabwire/mercura/internal/config"
)

// BreakerState represents the current state of a circuit breaker.
type BreakerState int

const (
	// BreakerClosed allows all requests through. Failures are counted.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects all requests immediately.
	BreakerOpen
	// BreakerHalfOpen allows probe requests through.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// minErrorRateSamples is the minimum number of requests in a window before
// the error rate threshold is evaluated. This prevents tripping on very
// few requests (e.g. 1 failure out of 1 total = 100% but not meaningful).
const minErrorRateSamples = 10

// Breaker implements the circuit breaker pattern with three states:
// Closed, Open, HalfOpen. It trips on either consecutive failure count
// or error rate within a tumbling window. Safe for concurrent use.
type Breaker struct {
	mu               sync.Mutex
	state            BreakerState
	failures         int
	successes        int
	failureThreshold int
	successThreshold int
	timeout          time.Duration
	openedAt         time.Time

	errorRateThreshold float64
	errorRateWindow    time.Duration
	windowStart        time.Time
	windowTotal        int
	windowFailures     int
}

// NewBreaker creates a circuit breaker from configuration. Zero or negative
// thresholds fall back to safe defaults; a zero error rate threshold or
// window disables rate-based tripping.
func NewBreaker(cfg config.CircuitBreakerConfig) *Breaker {
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold < 1 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Breaker{
		state:              BreakerClosed,
		failureThreshold:   cfg.FailureThreshold,
		successThreshold:   cfg.SuccessThreshold,
		timeout:            cfg.Timeout,
		errorRateThreshold: cfg.ErrorRateThreshold,
		errorRateWindow:    cfg.ErrorRateWindow,
		windowStart:        time.Now(),
	}
}

// Allow checks whether a request should be allowed through.
// Returns nil if allowed, or an error if the circuit is open.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return nil
	case BreakerOpen:
		if time.Since(b.openedAt) > b.timeout {
			b.state = BreakerHalfOpen
			b.successes = 0
			return nil
		}
		return fmt.Errorf("circuit breaker is open")
	case BreakerHalfOpen:
		return nil
	}
	return nil
}

// RecordSuccess records a successful request.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		b.failures = 0
		b.recordWindowCall(false)
	case BreakerHalfOpen:
		b.successes++
		if b.successes >= b.successThreshold {
			b.state = BreakerClosed
			b.failures = 0
			b.successes = 0
			b.resetWindow()
		}
	}
}

// RecordFailure records a failed request.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		b.failures++
		b.recordWindowCall(true)

		// Trip on consecutive failure threshold OR error rate threshold.
		if b.failures >= b.failureThreshold || b.errorRateExceeded() {
			b.state = BreakerOpen
			b.openedAt = time.Now()
			b.resetWindow()
		}
	case BreakerHalfOpen:
		// Any failure in half-open immediately reopens.
		b.state = BreakerOpen
		b.openedAt = time.Now()
		b.successes = 0
	}
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerOpen && time.Since(b.openedAt) > b.timeout {
		b.state = BreakerHalfOpen
		b.successes = 0
	}
	return b.state
}

// ErrorRate returns the current error rate and total requests in the window.
func (b *Breaker) ErrorRate() (rate float64, total int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeResetWindow()
	if b.windowTotal == 0 {
		return 0, 0
	}
	return float64(b.windowFailures) / float64(b.windowTotal), b.windowTotal
}

// recordWindowCall tracks a call in the tumbling window. Must be called with lock held.
func (b *Breaker) recordWindowCall(isFailure bool) {
	if b.errorRateWindow <= 0 {
		return
	}
	b.maybeResetWindow()
	b.windowTotal++
	if isFailure {
		b.windowFailures++
	}
}

// maybeResetWindow resets the tumbling window if it has expired. Must be called with lock held.
func (b *Breaker) maybeResetWindow() {
	if b.errorRateWindow <= 0 {
		return
	}
	if time.Since(b.windowStart) > b.errorRateWindow {
		b.windowStart = time.Now()
		b.windowTotal = 0
		b.windowFailures = 0
	}
}

// resetWindow clears the window counters. Must be called with lock held.
func (b *Breaker) resetWindow() {
	b.windowStart = time.Now()
	b.windowTotal = 0
	b.windowFailures = 0
}

// errorRateExceeded checks the error rate in the current window against the
// threshold. Requires at least minErrorRateSamples requests. Must be called
// with lock held.
func (b *Breaker) errorRateExceeded() bool {
	if b.errorRateThreshold <= 0 || b.errorRateWindow <= 0 {
		return false
	}
	if b.windowTotal < minErrorRateSamples {
		return false
	}
	rate := float64(b.windowFailures) / float64(b.windowTotal)
	return rate >= b.errorRateThreshold
}
