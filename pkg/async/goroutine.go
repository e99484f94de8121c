package async

import (
	"context"
	"time"

	"github.com/campusgate/campusgate/pkg/observability"
)

// Go runs fn in a goroutine with panic recovery and a deadline. The
// context is detached from the parent's cancellation but keeps its
// values, so a background task started from a request handler survives
// the response being written.
//
// Use this instead of a bare `go func()` for fire-and-forget work such
// as audit writes.
func Go(parentCtx context.Context, timeout time.Duration, taskName string, logger *observability.Logger, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(parentCtx), timeout)
		defer cancel()
		defer observability.RecoverPanic(logger, taskName)

		if err := fn(ctx); err != nil {
			logger.WithError(err).WithField("task", taskName).Warn("background task failed")
		}
	}()
}
