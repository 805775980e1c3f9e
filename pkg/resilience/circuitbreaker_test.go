package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestCircuitBreakerTripsAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, Cooldown: time.Hour})
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		if err := cb.Execute(func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("Execute %d: %v", i, err)
		}
	}

	if st := cb.State(); st != StateOpen {
		t.Fatalf("state = %v, want open", st)
	}
	if err := cb.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitBreakerHalfOpenProbeRecovers(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, Cooldown: 10 * time.Millisecond})

	if err := cb.Execute(func() error { return errors.New("boom") }); err == nil {
		t.Fatal("expected failure")
	}
	time.Sleep(20 * time.Millisecond)

	if st := cb.State(); st != StateHalfOpen {
		t.Fatalf("state = %v, want half-open after cooldown", st)
	}
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("probe call: %v", err)
	}
	if st := cb.State(); st != StateClosed {
		t.Fatalf("state = %v, want closed after successful probe", st)
	}
}

func TestCircuitBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2, Cooldown: time.Hour})
	boom := errors.New("boom")

	cb.Execute(func() error { return boom })
	cb.Execute(func() error { return nil })
	cb.Execute(func() error { return boom })

	if st := cb.State(); st != StateClosed {
		t.Fatalf("state = %v, want closed (failures interleaved with success)", st)
	}
}

func TestIsRateLimited(t *testing.T) {
	if !IsRateLimited(errors.New("openai: API error 429: slow down")) {
		t.Error("expected a 429 error to classify as rate limited")
	}
	if IsRateLimited(errors.New("connection refused")) {
		t.Error("plain connection error misclassified")
	}
	if IsRateLimited(nil) {
		t.Error("nil error misclassified")
	}
}
