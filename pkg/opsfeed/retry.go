package opsfeed

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
)

// ErrRetriesExhausted is returned by schedule once the attempt ceiling is
// reached; the caller transitions the connection to StateFailed.
var ErrRetriesExhausted = errors.New("reconnect attempts exhausted")

// retrier schedules reconnect attempts at a fixed interval with a hard
// attempt ceiling. This is deliberately not exponential: the feed server is
// local infrastructure and a constant cadence keeps reconnect latency
// predictable, while the ceiling keeps the policy bounded.
//
// At most one attempt is pending at a time; cancel and reset stop it, so a
// clean disconnect or a successful reconnect never races a stale timer into
// a duplicate connection attempt.
type retrier struct {
	mu       sync.Mutex
	policy   *backoff.ConstantBackOff
	max      int
	attempts int
	timer    *time.Timer
}

func newRetrier(delay time.Duration, max int) *retrier {
	return &retrier{policy: backoff.NewConstantBackOff(delay), max: max}
}

// schedule arms the retry timer for fn, incrementing the attempt count. Once
// attempts have reached the ceiling it returns ErrRetriesExhausted and arms
// nothing.
func (r *retrier) schedule(fn func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.attempts >= r.max {
		return ErrRetriesExhausted
	}
	r.attempts++
	r.stopLocked()
	r.timer = time.AfterFunc(r.policy.NextBackOff(), fn)
	return nil
}

// cancel stops any pending attempt without touching the attempt count.
func (r *retrier) cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

// reset cancels any pending attempt and rewinds the attempt count; called on
// every successful connect and on operator-initiated reconnects after
// failure.
func (r *retrier) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
	r.attempts = 0
	r.policy.Reset()
}

func (r *retrier) attemptCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}

func (r *retrier) stopLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}
