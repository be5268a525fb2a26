package admission

import (
	"net/http"
	"sync"
	"time"
)

// Decision is the outcome of one Admit call. When Proceed is false,
// Reject holds the fully decorated response the adapter must return
// instead of forwarding the request. Bucket is a snapshot of the
// scope's state after the call.
type Decision struct {
	Proceed bool
	Bucket  Bucket
	Reject  *Rejection

	// Overflowed reports that the scope was in cooldown and the
	// Overflow strategy made the call, whichever way it went.
	Overflowed bool
}

// Engine runs the admission state machine for one Policy over a shared
// scope-key registry. It is safe for concurrent use.
type Engine struct {
	policy   Policy
	overflow Overflow
	store    *store

	now        func() time.Time
	idleTTL    time.Duration
	sweepEvery time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithOverflow replaces the default RejectAll strategy.
func WithOverflow(o Overflow) Option {
	return func(e *Engine) {
		if o != nil {
			e.overflow = o
		}
	}
}

// WithIdleTTL enables eviction of scope entries idle for at least d.
// Without it the registry grows with the number of distinct keys.
func WithIdleTTL(d time.Duration) Option {
	return func(e *Engine) { e.idleTTL = d }
}

// WithSweepEvery sets how often the idle sweep runs. Only meaningful
// together with WithIdleTTL.
func WithSweepEvery(d time.Duration) Option {
	return func(e *Engine) { e.sweepEvery = d }
}

// New creates an Engine admitting rate requests per window of length
// per. It fails with ErrInvalidPolicy on non-positive inputs.
func New(rate int, per time.Duration, opts ...Option) (*Engine, error) {
	p := Policy{Rate: rate, Per: per}
	if err := p.validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		policy:     p,
		overflow:   RejectAll{},
		store:      newStore(rate),
		now:        time.Now,
		sweepEvery: 2 * time.Minute,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.idleTTL > 0 && e.sweepEvery > 0 {
		go e.janitor()
	}
	return e, nil
}

// Policy returns the engine's limit configuration.
func (e *Engine) Policy() Policy { return e.policy }

// TrackedScopes reports how many scope keys currently have a bucket.
func (e *Engine) TrackedScopes() int { return e.store.len() }

// Close stops the idle sweeper, if any.
func (e *Engine) Close() {
	e.closeOnce.Do(func() { close(e.done) })
}

// Admit decides whether the request identified by key proceeds at
// instant now.
//
// A bucket whose ResetAt lies in the future is in cooldown and the
// call is delegated to the Overflow strategy; the engine neither
// decrements nor resets it. Otherwise the bucket is counting: its
// allowance is decremented, and on reaching zero it is replenished to
// the full rate while ResetAt is armed to now+per in the same step.
// Cooldown lapses implicitly once now passes ResetAt.
func (e *Engine) Admit(r *http.Request, key string, now time.Time) Decision {
	ent := e.store.getOrCreate(key, now)

	ent.mu.Lock()
	defer ent.mu.Unlock()

	if ent.b.ResetAt.After(now) {
		rej := e.overflow.Decide(r, &ent.b)
		if rej == nil {
			return Decision{Proceed: true, Bucket: ent.b, Overflowed: true}
		}
		out := *rej
		out.Headers = append(append([]Header(nil), rej.Headers...), e.limitedHeaders(ent.b, now)...)
		return Decision{Bucket: ent.b, Reject: &out, Overflowed: true}
	}

	ent.b.Remaining--
	if ent.b.Remaining == 0 {
		ent.b.Remaining = e.policy.Rate
		ent.b.ResetAt = now.Add(e.policy.Per)
	}
	return Decision{Proceed: true, Bucket: ent.b}
}

// DecorateInfo sets the capacity headers on h. The adapter calls this
// for every response, before admission is evaluated.
func (e *Engine) DecorateInfo(h http.Header) {
	setAll(h, e.infoHeaders())
}

// DecorateLimited sets the over-quota headers on h. The adapter calls
// this only for responses it builds itself on the reject path;
// rejections returned by Admit already carry these headers.
func (e *Engine) DecorateLimited(h http.Header, b Bucket, now time.Time) {
	setAll(h, e.limitedHeaders(b, now))
}

func (e *Engine) infoHeaders() []Header {
	if ih, ok := e.overflow.(InfoHeaderer); ok {
		return ih.InfoHeaders(e.policy)
	}
	return defaultInfoHeaders(e.policy)
}

func (e *Engine) limitedHeaders(b Bucket, now time.Time) []Header {
	if lh, ok := e.overflow.(LimitedHeaderer); ok {
		return lh.LimitedHeaders(b, now)
	}
	return defaultLimitedHeaders(b, now)
}

func (e *Engine) janitor() {
	t := time.NewTicker(e.sweepEvery)
	defer t.Stop()

	for {
		select {
		case <-e.done:
			return
		case <-t.C:
			e.store.sweep(e.now().Add(-e.idleTTL))
		}
	}
}
