package retry

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/time/rate"
)

func TestDoSucceedsWithoutRetry(t *testing.T) {
	r := New(rate.Inf, 1, 3, nil)
	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one call, got %d", calls)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	r := New(rate.Inf, 1, 3, nil)
	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoReturnsExhaustedAfterMaxAttempts(t *testing.T) {
	r := New(rate.Inf, 1, 2, nil)
	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("always fails")
	})
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestDoAbortsOnContextCancel(t *testing.T) {
	r := New(1, 0, 3, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Do(ctx, func(ctx context.Context) error {
		t.Fatal("fn should not be called when the limiter wait is already cancelled")
		return nil
	})
	if err == nil {
		t.Fatal("expected an error from the cancelled context")
	}
}
