package resilience

import (
	"testing"
	"time"
)

// TestCircuitBreaker_HalfOpenRecovery exercises a full
// closed->open->half-open->closed cycle: failureThreshold=3,
// successThreshold=2, timeout=60s, halfOpenRequests=3.
func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          60 * time.Second,
		HalfOpenRequests: 3,
	})

	for i := 0; i < 3; i++ {
		if !cb.Allow() {
			t.Fatalf("expected call %d to be admitted while closed", i)
		}
		cb.RecordFailure()
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected OPEN after 3 consecutive failures, got %s", cb.State())
	}

	// Within the cooldown, everything fails fast.
	cb.openedAt = time.Now().Add(-59 * time.Second)
	if cb.Allow() {
		t.Fatalf("expected calls within cooldown to fail fast")
	}

	// After the cooldown elapses, the breaker admits test traffic.
	cb.openedAt = time.Now().Add(-61 * time.Second)
	if !cb.Allow() {
		t.Fatalf("expected HALF-OPEN to admit the first test call")
	}
	if cb.State() != StateHalfOpen {
		t.Fatalf("expected HALF-OPEN, got %s", cb.State())
	}

	cb.RecordSuccess()
	cb.Allow()
	cb.RecordSuccess()
	if cb.State() != StateClosed {
		t.Fatalf("expected CLOSED after 2 consecutive successes, got %s", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenReopensOnFailure(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Timeout:          time.Millisecond,
		HalfOpenRequests: 3,
	})
	cb.Allow()
	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatalf("expected OPEN")
	}

	time.Sleep(2 * time.Millisecond)
	for i := 0; i < 3; i++ {
		if !cb.Allow() {
			t.Fatalf("expected half-open attempt %d to be admitted", i)
		}
		cb.RecordFailure()
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected re-OPEN after exhausting half-open attempts without success, got %s", cb.State())
	}
}
