package util

import (
	"context"
	"time"

	"k8s.io/utils/clock"
)

// WaitFor suspends the caller for d or until ctx is done, whichever comes first. It returns
// ctx.Err() if the wait was cut short. A non-positive d returns immediately.
func WaitFor(ctx context.Context, c clock.Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := c.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C():
		return nil
	}
}
