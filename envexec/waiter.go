package envexec

import (
	"context"
	"time"
)

type waitResult int

const (
	waitExited waitResult = iota
	waitTimeLimitExceeded
	waitCanceled
)

type waiter struct {
	timeLimit time.Duration
}

// Wait blocks until the process exits, the time limit is reached or the
// context is done. The wait error is returned only when the process exited.
func (w *waiter) Wait(ctx context.Context, exited <-chan error) (waitResult, error) {
	var timeout <-chan time.Time
	if w.timeLimit > 0 {
		timer := time.NewTimer(w.timeLimit)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case err := <-exited:
		return waitExited, err
	case <-timeout:
		return waitTimeLimitExceeded, nil
	case <-ctx.Done():
		return waitCanceled, nil
	}
}
