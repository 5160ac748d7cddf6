package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fast(attempts int) Backoff {
	return Backoff{Attempts: attempts, Initial: time.Millisecond, Max: 5 * time.Millisecond, Multiplier: 2}
}

func TestRetry_SucceedsAfterTransient(t *testing.T) {
	var calls, hooks int
	b := fast(3)
	b.OnRetry = func(int, error) { hooks++ }
	v, err := Retry(context.Background(), b, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", NewTransientError(errors.New("busy"), 503)
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "ok" || calls != 3 || hooks != 2 {
		t.Errorf("got v=%q calls=%d hooks=%d", v, calls, hooks)
	}
}

func TestRetry_StopsOnPermanentError(t *testing.T) {
	var calls int
	perm := errors.New("no imagery")
	_, err := Retry(context.Background(), fast(5), func(context.Context) (int, error) {
		calls++
		return 0, perm
	})
	if !errors.Is(err, perm) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	var calls int
	_, err := Retry(context.Background(), fast(4), func(context.Context) (int, error) {
		calls++
		return 0, NewTransientError(errors.New("down"), 502)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 4 {
		t.Errorf("expected 4 calls, got %d", calls)
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	b := Backoff{Attempts: 10, Initial: time.Hour, Max: time.Hour}
	b.OnRetry = func(int, error) { cancel() }
	_, err := Retry(ctx, b, func(context.Context) (int, error) {
		calls++
		return 0, NewTransientError(errors.New("slow"), 504)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call before cancel, got %d", calls)
	}
}

func TestBackoff_DelayCapped(t *testing.T) {
	b := Backoff{Initial: 100 * time.Millisecond, Max: time.Second, Multiplier: 10}
	if d := b.Delay(0); d != 100*time.Millisecond {
		t.Errorf("first delay = %v", d)
	}
	if d := b.Delay(5); d != time.Second {
		t.Errorf("capped delay = %v", d)
	}
}

func TestBackoffFromConfig(t *testing.T) {
	b := BackoffFromConfig(5, 10, 0)
	if b.Attempts != 5 || b.Initial != 10*time.Millisecond || b.Max != DefaultBackoff().Max {
		t.Errorf("unexpected backoff %+v", b)
	}
}
