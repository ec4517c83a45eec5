package engine

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// HeartbeatFunc is invoked periodically with the elapsed time while a
// wrapped operation is still running.
type HeartbeatFunc func(elapsed time.Duration)

// RunWithHeartbeat runs op under a hard deadline, firing beat every
// interval until op returns. Usable by any long awaited operation, not
// just generation. When the deadline expires the operation's context is
// cancelled and the returned error names the limit.
func RunWithHeartbeat(ctx context.Context, deadline, interval time.Duration, beat HeartbeatFunc, op func(ctx context.Context) error) error {
	runCtx := ctx
	var cancel context.CancelFunc
	if deadline > 0 {
		runCtx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	done := make(chan error, 1)
	start := time.Now()
	go func() { done <- op(runCtx) }()

	var ticker *time.Ticker
	var tick <-chan time.Time
	if interval > 0 && beat != nil {
		ticker = time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	deadlineErr := func(err error) error {
		if deadline > 0 && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("operation exceeded hard deadline of %s", deadline)
		}
		return err
	}

	for {
		select {
		case err := <-done:
			return deadlineErr(err)
		case <-tick:
			beat(time.Since(start))
		case <-runCtx.Done():
			// Drain op so its goroutine can exit once it honors cancellation.
			go func() { <-done }()
			return deadlineErr(runCtx.Err())
		}
	}
}
