package syncer

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Options configure the background sync processor. The zero value gets
// sensible defaults.
type Options struct {
	// Interval is the normal period between drain passes.
	Interval time.Duration
	// Jitter is a random extra wait added to each period so passes from
	// many clients spread out.
	Jitter time.Duration
	// BackoffBase is the first retry delay after a pass with transient
	// failures. Subsequent retries double it up to BackoffCap.
	BackoffBase time.Duration
	// BackoffCap bounds the retry delay.
	BackoffCap time.Duration
	// Online reports whether the network is reachable. Passes are
	// skipped while offline. nil means always online.
	Online func(ctx context.Context) bool
}

func (o *Options) withDefaults() Options {
	opts := *o
	if opts.Interval == 0 {
		opts.Interval = 15 * time.Minute
	}
	if opts.Jitter == 0 {
		opts.Jitter = 5 * time.Minute
	}
	if opts.BackoffBase == 0 {
		opts.BackoffBase = 30 * time.Second
	}
	if opts.BackoffCap == 0 {
		opts.BackoffCap = 10 * time.Minute
	}
	return opts
}

// NewProcessor returns the processor loop for the engine, suitable for
// running under a group. The loop drains periodically, immediately on
// Kick, and with exponential backoff after passes that saw transient
// failures. It decides only when to run a pass, never what to do with
// any action. Only storage errors terminate the loop.
func NewProcessor(e *Engine, opts Options) func(ctx context.Context) error {
	opts = (&opts).withDefaults()

	return func(ctx context.Context) error {
		e.log.Info("sync processor started")
		defer e.log.Info("sync processor stopped")

		var retries int
		for {
			wait := opts.Interval + time.Duration(rand.Int63n(int64(opts.Jitter)))

			if opts.Online == nil || opts.Online(ctx) {
				result, err := e.Drain(ctx)
				switch {
				case errors.Is(err, context.Canceled):
					return nil
				case err != nil:
					return err
				}
				if result.Retry() {
					retries++
					wait = backoff(opts.BackoffBase, opts.BackoffCap, retries)
				} else {
					retries = 0
				}
			} else {
				// offline; probe again after the backoff base rather
				// than sleeping a whole period
				wait = opts.BackoffBase
			}

			select {
			case <-ctx.Done():
				return nil
			case <-e.kick:
				// drain now
			case <-time.After(wait):
			}
		}
	}
}

// backoff returns the delay before retry n: base doubled per retry,
// bounded by cap.
func backoff(base, cap time.Duration, n int) time.Duration {
	d := base
	for i := 1; i < n; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	if d > cap {
		return cap
	}
	return d
}
