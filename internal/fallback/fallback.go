// Package fallback implements the try-candidates-in-order pattern shared by
// version listing (try upstreams until one answers) and artifact download
// (try mirrors until one serves the file).
package fallback

import (
	"context"
	"fmt"
	"strings"
)

// AttemptError records one failed candidate.
type AttemptError struct {
	Candidate string
	Err       error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("%s: %v", e.Candidate, e.Err)
}

func (e *AttemptError) Unwrap() error { return e.Err }

// ExhaustedError is returned when every candidate failed.
type ExhaustedError struct {
	Attempts []*AttemptError
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = a.Error()
	}
	return fmt.Sprintf("all %d candidates failed: %s", len(e.Attempts), strings.Join(parts, "; "))
}

// Unwrap exposes the last attempt's error, which is usually the most
// specific one by the time everything has failed.
func (e *ExhaustedError) Unwrap() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}

// Attempt runs op against each candidate in order and returns the first
// success. Later candidates are only tried after the preceding one has
// definitively failed. Context cancellation stops the walk immediately.
func Attempt[C, T any](ctx context.Context, candidates []C, name func(C) string, op func(context.Context, C) (T, error)) (T, error) {
	var zero T
	exhausted := &ExhaustedError{}
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		v, err := op(ctx, c)
		if err == nil {
			return v, nil
		}
		exhausted.Attempts = append(exhausted.Attempts, &AttemptError{Candidate: name(c), Err: err})
	}
	return zero, exhausted
}
