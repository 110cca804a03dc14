package load

import (
	"context"
	"math/rand"
	"time"
)

// backoff computes a bounded exponential delay with jitter for attempt
// (0-based). Hand-rolled against the standard library: the pack has no
// retry/backoff library among the teacher's or the rest of the corpus's
// dependencies, and the policy is a handful of lines (spec.md §6's
// retry_backoff_base_ms), so pulling in a dependency for it would add a
// new concern to go.mod without a grounding source.
func backoff(baseMS int, attempt int) time.Duration {
	d := time.Duration(baseMS) * time.Millisecond
	for i := 0; i < attempt; i++ {
		d *= 2
		if d > 30*time.Second {
			d = 30 * time.Second
			break
		}
	}
	jitter := time.Duration(rand.Int63n(int64(d)/4 + 1))
	return d + jitter
}

// sleep waits for d or until ctx is cancelled, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
