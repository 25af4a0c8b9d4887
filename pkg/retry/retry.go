// Package retry runs operations under a bounded exponential backoff policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// Policy bounds how an operation is retried.
type Policy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int `toml:"max_attempts" json:"max_attempts" validate:"gte=1"`

	// InitialBackoff is the delay before the first retry. It doubles on each
	// subsequent retry up to MaxBackoff.
	InitialBackoff time.Duration `toml:"initial_backoff" json:"initial_backoff" validate:"gte=0"`

	// MaxBackoff caps the delay between retries.
	MaxBackoff time.Duration `toml:"max_backoff" json:"max_backoff" validate:"gtefield=InitialBackoff"`

	// Permanent reports errors that must not be retried. Context errors are
	// never retried regardless.
	Permanent func(error) bool `toml:"-" json:"-"`

	// OnRetry is called before each retry with the attempt that failed.
	OnRetry func(attempt int, err error) `toml:"-" json:"-"`
}

// DefaultPolicy is three attempts starting at 200ms.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
	}
}

// ExhaustedError is returned when every attempt failed.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Do calls fn until it succeeds, returns a non-retryable error, the policy is
// exhausted, or ctx is done.
func Do[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	retryable := func(err error) bool {
		if err == nil {
			return false
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		if p.Permanent != nil && p.Permanent(err) {
			return false
		}
		return true
	}

	builder := retrypolicy.Builder[T]().
		HandleIf(func(_ T, err error) bool { return retryable(err) }).
		WithMaxAttempts(attempts).
		ReturnLastFailure()

	if p.InitialBackoff > 0 {
		maxBackoff := p.MaxBackoff
		if maxBackoff < p.InitialBackoff {
			maxBackoff = p.InitialBackoff
		}
		builder = builder.WithBackoff(p.InitialBackoff, maxBackoff)
	} else {
		builder = builder.WithDelay(0)
	}

	if p.OnRetry != nil {
		builder = builder.OnRetry(func(e failsafe.ExecutionEvent[T]) {
			p.OnRetry(e.Attempts(), e.LastError())
		})
	}

	tries := 0

	result, err := failsafe.NewExecutor[T](builder.Build()).
		WithContext(ctx).
		Get(func() (T, error) {
			tries++
			return fn(ctx)
		})
	if err == nil {
		return result, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		return zero, fmt.Errorf("%w: %w", ctxErr, err)
	}
	if retryable(err) && tries >= attempts {
		return zero, &ExhaustedError{Attempts: tries, Err: err}
	}
	return zero, err
}
