package admission

import "time"

// Bucket is the per-scope counter/window state. A bucket with
// ResetAt in the future is in cooldown: its allowance is spent and
// further admission is up to the Overflow strategy. Otherwise it is
// counting and Remaining is decremented per admitted request.
//
// Remaining reads as the full rate during cooldown, not zero: the
// exhaustion transition replenishes the counter in the same step that
// arms ResetAt. Enforcement during the window is carried by ResetAt.
type Bucket struct {
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns the time left until the cooldown window ends,
// clamped to zero once it has elapsed.
func (b Bucket) RetryAfter(now time.Time) time.Duration {
	if d := b.ResetAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
