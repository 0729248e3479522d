package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/errors"
)

// WithDeadline runs fn under a context that expires after limit. If the limit
// passes first, the error wraps ErrTimeout. A non-positive limit runs fn with
// ctx unchanged.
func WithDeadline[T any](ctx context.Context, limit time.Duration, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	if limit <= 0 {
		return fn(ctx)
	}
	dctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	type outcome struct {
		val T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := fn(dctx)
		done <- outcome{v, err}
	}()

	var zero T
	select {
	case o := <-done:
		if o.err != nil && errors.Is(o.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return zero, fmt.Errorf("%s: %w after %v", name, apperrors.ErrTimeout, limit)
		}
		return o.val, o.err
	case <-dctx.Done():
		if ctx.Err() != nil {
			return zero, fmt.Errorf("%s: %w", name, ctx.Err())
		}
		return zero, fmt.Errorf("%s: %w after %v", name, apperrors.ErrTimeout, limit)
	}
}
