package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestBreaker_OpensAndCoolsDown(t *testing.T) {
	b := NewBreaker(2, time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	transient := NewTransientError(errors.New("503"), 503)
	b.Record(transient)
	if err := b.Allow(); err != nil {
		t.Fatalf("breaker opened early: %v", err)
	}
	b.Record(transient)
	if !errors.Is(b.Allow(), ErrCircuitOpen) {
		t.Fatal("expected open breaker")
	}

	now = now.Add(2 * time.Minute)
	if err := b.Allow(); err != nil {
		t.Fatalf("expected probe after cooldown, got %v", err)
	}
	b.Record(nil)
	if b.Open() {
		t.Error("success should close the breaker")
	}
}

func TestBreaker_IgnoresPermanentErrors(t *testing.T) {
	b := NewBreaker(1, time.Minute)
	b.Record(errors.New("not found"))
	if b.Open() {
		t.Error("permanent errors must not trip the breaker")
	}
}
