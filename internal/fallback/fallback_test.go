package fallback

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestAttemptFirstSuccessWins(t *testing.T) {
	var tried []string
	got, err := Attempt(context.Background(), []string{"a", "b", "c"},
		func(s string) string { return s },
		func(_ context.Context, s string) (int, error) {
			tried = append(tried, s)
			if s == "b" {
				return 42, nil
			}
			return 0, errors.New("nope")
		})
	if err != nil {
		t.Fatalf("Attempt failed: %v", err)
	}
	if got != 42 {
		t.Errorf("result = %d, want 42", got)
	}
	if len(tried) != 2 || tried[0] != "a" || tried[1] != "b" {
		t.Errorf("tried = %v, want [a b]", tried)
	}
}

func TestAttemptExhausted(t *testing.T) {
	lastErr := errors.New("last failure")
	_, err := Attempt(context.Background(), []string{"a", "b"},
		func(s string) string { return s },
		func(_ context.Context, s string) (struct{}, error) {
			if s == "b" {
				return struct{}{}, lastErr
			}
			return struct{}{}, fmt.Errorf("failure on %s", s)
		})

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if len(exhausted.Attempts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(exhausted.Attempts))
	}
	if exhausted.Attempts[0].Candidate != "a" || exhausted.Attempts[1].Candidate != "b" {
		t.Errorf("attempt order = %q, %q", exhausted.Attempts[0].Candidate, exhausted.Attempts[1].Candidate)
	}
	if !errors.Is(err, lastErr) {
		t.Error("ExhaustedError should unwrap to the last attempt's error")
	}
}

func TestAttemptStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var tried int
	_, err := Attempt(ctx, []string{"a", "b", "c"},
		func(s string) string { return s },
		func(_ context.Context, s string) (int, error) {
			tried++
			cancel()
			return 0, errors.New("fail then cancel")
		})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if tried != 1 {
		t.Errorf("tried = %d, want 1", tried)
	}
}
