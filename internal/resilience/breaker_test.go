package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func failing(_ context.Context) (int, error) {
	return 0, NewTransientError(errors.New("unavailable"), 503)
}

func succeeding(_ context.Context) (int, error) {
	return 1, nil
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewBreaker(2, time.Minute)
	ctx := context.Background()

	_, _ = Call(ctx, b, failing)
	if b.State() != BreakerClosed {
		t.Fatalf("expected closed after one failure, got %s", b.State())
	}
	_, _ = Call(ctx, b, failing)
	if b.State() != BreakerOpen {
		t.Fatalf("expected open after threshold, got %s", b.State())
	}

	var called bool
	_, err := Call(ctx, b, func(context.Context) (int, error) {
		called = true
		return 0, nil
	})
	if !errors.Is(err, ErrBreakerOpen) {
		t.Fatalf("expected ErrBreakerOpen, got %v", err)
	}
	if called {
		t.Error("function must not run while open")
	}
}

func TestBreaker_PermanentErrorsDoNotTrip(t *testing.T) {
	b := NewBreaker(1, time.Minute)
	_, _ = Call(context.Background(), b, func(context.Context) (int, error) {
		return 0, errors.New("bad request")
	})
	if b.State() != BreakerClosed {
		t.Fatalf("expected closed, got %s", b.State())
	}
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker(1, 30*time.Second)
	b.now = func() time.Time { return now }

	var transitions []string
	b.OnStateChange = func(from, to BreakerState) {
		transitions = append(transitions, from.String()+"->"+to.String())
	}

	ctx := context.Background()
	_, _ = Call(ctx, b, failing)
	if b.State() != BreakerOpen {
		t.Fatalf("expected open, got %s", b.State())
	}

	now = now.Add(31 * time.Second)
	if b.State() != BreakerHalfOpen {
		t.Fatalf("expected half-open after cooldown, got %s", b.State())
	}

	v, err := Call(ctx, b, succeeding)
	if err != nil || v != 1 {
		t.Fatalf("probe failed: %v", err)
	}
	if b.State() != BreakerClosed {
		t.Fatalf("expected closed after successful probe, got %s", b.State())
	}

	want := []string{"closed->open", "open->half-open", "half-open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %s, want %s", i, transitions[i], want[i])
		}
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker(1, 10*time.Second)
	b.now = func() time.Time { return now }

	ctx := context.Background()
	_, _ = Call(ctx, b, failing)
	now = now.Add(11 * time.Second)
	_, _ = Call(ctx, b, failing)
	if b.State() != BreakerOpen {
		t.Fatalf("expected reopened, got %s", b.State())
	}
}
