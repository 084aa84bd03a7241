package ai

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the fallback provider's circuit is open.
var ErrCircuitOpen = errors.New("provider circuit open")

const (
	// rateLimitCooldown disables a provider after a rate-limit failure.
	rateLimitCooldown = 5 * time.Minute
	// failureCooldown disables a provider after repeated non-rate-limit failures.
	failureCooldown = 2 * time.Minute
	// failureThreshold is the consecutive-failure count that opens the circuit.
	failureThreshold = 3
)

// breaker is the two-state circuit for a fallback provider:
// Available -> Disabled(until) -> Available. The cooldown passing closes the
// circuit and resets the failure counter.
type breaker struct {
	mu               sync.Mutex
	disabledUntil    time.Time
	consecutiveFails int

	now func() time.Time
}

func newBreaker() *breaker {
	return &breaker{now: time.Now}
}

// Allow reports whether a call may reach the provider, auto-closing the
// circuit once the cooldown deadline has passed.
func (b *breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.disabledUntil.IsZero() {
		return true
	}
	if b.now().Before(b.disabledUntil) {
		return false
	}
	b.disabledUntil = time.Time{}
	b.consecutiveFails = 0
	return true
}

func (b *breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFails = 0
}

// RecordFailure opens the circuit immediately on a rate-limit signal, or
// after failureThreshold consecutive failures otherwise.
func (b *breaker) RecordFailure(rateLimited bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if rateLimited {
		b.disabledUntil = b.now().Add(rateLimitCooldown)
		b.consecutiveFails = 0
		return
	}
	b.consecutiveFails++
	if b.consecutiveFails >= failureThreshold {
		b.disabledUntil = b.now().Add(failureCooldown)
		b.consecutiveFails = 0
	}
}
