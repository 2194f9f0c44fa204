package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestAcquireWithinBudget(t *testing.T) {
	g := NewGate(map[string]Limit{
		"youtube": {MaxRequests: 100, Window: time.Second},
	}, Limit{})

	waited, err := g.Acquire(context.Background(), "youtube")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if waited {
		t.Error("first acquire should not wait")
	}
}

func TestAcquireWaitsWhenExhausted(t *testing.T) {
	g := NewGate(map[string]Limit{
		"youtube": {MaxRequests: 1, Window: 50 * time.Millisecond},
	}, Limit{})

	if _, err := g.Acquire(context.Background(), "youtube"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	start := time.Now()
	waited, err := g.Acquire(context.Background(), "youtube")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !waited {
		t.Error("second acquire should report a wait")
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Error("second acquire returned too quickly")
	}
}

func TestAcquireRespectsContext(t *testing.T) {
	g := NewGate(map[string]Limit{
		"youtube": {MaxRequests: 1, Window: time.Hour},
	}, Limit{})

	g.Acquire(context.Background(), "youtube")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := g.Acquire(ctx, "youtube"); err == nil {
		t.Fatal("expected error when context expires while waiting")
	}
}

func TestUnknownSourceUsesFallback(t *testing.T) {
	g := NewGate(nil, Limit{})

	// Zero fallback means unlimited.
	for i := 0; i < 10; i++ {
		waited, err := g.Acquire(context.Background(), "mystery")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if waited {
			t.Fatal("unlimited fallback should never wait")
		}
	}
}
