package resilience

import (
	"context"
	"time"

	"github.com/loomrun/loom/errs"
)

// Timeout races op against a deadline, failing with errs.Timeout if op
// hasn't returned in time. Cancellation of the underlying work is
// best-effort: op's goroutine keeps running after Timeout returns if
// it doesn't respect ctx cancellation itself. The contract here is
// only about *returning* by the deadline.
func Timeout(ctx context.Context, d time.Duration, op string, fn func(ctx context.Context) (any, error)) (any, error) {
	cctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		val any
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(cctx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-cctx.Done():
		return nil, errs.Timeout(op)
	}
}
