package admission

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRequest() *http.Request {
	return httptest.NewRequest("GET", "/orders", nil)
}

func TestNew_InvalidPolicy(t *testing.T) {
	_, err := New(0, time.Second)
	require.ErrorIs(t, err, ErrInvalidPolicy)

	_, err = New(10, 0)
	require.ErrorIs(t, err, ErrInvalidPolicy)

	_, err = New(-1, -time.Second)
	require.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestAdmit_FirstRateCallsProceed(t *testing.T) {
	eng, err := New(5, 10*time.Second)
	require.NoError(t, err)
	defer eng.Close()

	now := time.Now()
	for i := 0; i < 5; i++ {
		dec := eng.Admit(testRequest(), "k", now)
		assert.True(t, dec.Proceed, "call %d should proceed", i+1)
		assert.False(t, dec.Overflowed, "call %d should be counted, not delegated", i+1)
	}
}

func TestAdmit_ExhaustionReplenishesAndArmsCooldown(t *testing.T) {
	eng, err := New(2, 10*time.Second)
	require.NoError(t, err)
	defer eng.Close()

	now := time.Now()

	dec := eng.Admit(testRequest(), "k", now)
	assert.True(t, dec.Proceed)
	assert.Equal(t, 1, dec.Bucket.Remaining)

	// exhaustion: counter replenishes to the full rate in the same
	// step that arms the window; enforcement is carried by ResetAt
	dec = eng.Admit(testRequest(), "k", now)
	assert.True(t, dec.Proceed)
	assert.Equal(t, 2, dec.Bucket.Remaining)
	assert.Equal(t, now.Add(10*time.Second), dec.Bucket.ResetAt)
}

func TestAdmit_CooldownDelegatesToOverflow(t *testing.T) {
	calls := 0
	eng, err := New(2, 10*time.Second, WithOverflow(OverflowFunc(func(r *http.Request, b *Bucket) *Rejection {
		calls++
		return nil
	})))
	require.NoError(t, err)
	defer eng.Close()

	now := time.Now()
	eng.Admit(testRequest(), "k", now)
	eng.Admit(testRequest(), "k", now) // arms cooldown

	dec := eng.Admit(testRequest(), "k", now.Add(time.Second))
	assert.True(t, dec.Proceed)
	assert.True(t, dec.Overflowed)
	assert.Equal(t, 1, calls)
	// the engine never decrements during cooldown
	assert.Equal(t, 2, dec.Bucket.Remaining)
}

func TestAdmit_CooldownLapses(t *testing.T) {
	eng, err := New(2, 10*time.Second)
	require.NoError(t, err)
	defer eng.Close()

	now := time.Now()
	eng.Admit(testRequest(), "k", now)
	eng.Admit(testRequest(), "k", now) // arms cooldown until now+10s

	dec := eng.Admit(testRequest(), "k", now.Add(10*time.Second))
	assert.True(t, dec.Proceed)
	assert.False(t, dec.Overflowed)
	assert.Equal(t, 1, dec.Bucket.Remaining)
}

// The concrete walkthrough: rate=2, per=10s, calls at t=0,1,2,3,13.
func TestAdmit_Scenario(t *testing.T) {
	eng, err := New(2, 10*time.Second)
	require.NoError(t, err)
	defer eng.Close()

	t0 := time.Unix(1000, 0)

	dec := eng.Admit(testRequest(), "a", t0)
	assert.True(t, dec.Proceed)
	assert.Equal(t, 1, dec.Bucket.Remaining)

	dec = eng.Admit(testRequest(), "a", t0.Add(1*time.Second))
	assert.True(t, dec.Proceed)
	assert.Equal(t, 2, dec.Bucket.Remaining)
	assert.Equal(t, t0.Add(11*time.Second), dec.Bucket.ResetAt)

	dec = eng.Admit(testRequest(), "a", t0.Add(3*time.Second))
	assert.False(t, dec.Proceed)
	assert.True(t, dec.Overflowed)
	require.NotNil(t, dec.Reject)

	dec = eng.Admit(testRequest(), "a", t0.Add(13*time.Second))
	assert.True(t, dec.Proceed)
	assert.Equal(t, 1, dec.Bucket.Remaining)
}

func TestAdmit_RemainingStaysInRange(t *testing.T) {
	eng, err := New(3, time.Minute)
	require.NoError(t, err)
	defer eng.Close()

	now := time.Now()
	for i := 0; i < 20; i++ {
		dec := eng.Admit(testRequest(), "k", now.Add(time.Duration(i)*time.Second))
		assert.GreaterOrEqual(t, dec.Bucket.Remaining, 0)
		assert.LessOrEqual(t, dec.Bucket.Remaining, 3)
	}
}

func TestAdmit_DefaultOverflowRejects(t *testing.T) {
	eng, err := New(2, 10*time.Second)
	require.NoError(t, err)
	defer eng.Close()

	now := time.Unix(2000, 0)
	eng.Admit(testRequest(), "k", now)
	eng.Admit(testRequest(), "k", now)

	dec := eng.Admit(testRequest(), "k", now.Add(4*time.Second))
	require.NotNil(t, dec.Reject)
	assert.False(t, dec.Proceed)
	assert.Equal(t, http.StatusTooManyRequests, dec.Reject.Status)
	assert.Contains(t, string(dec.Reject.Body), "rate_limited")

	hs := map[string]string{}
	for _, h := range dec.Reject.Headers {
		hs[h.Name] = h.Value
	}
	// the replenished value, not zero
	assert.Equal(t, "2", hs["X-Ratelimit-Remaining"])

	retryAfter, err := strconv.ParseFloat(hs["Retry-After"], 64)
	require.NoError(t, err)
	assert.InDelta(t, 6.0, retryAfter, 0.001)

	reset, err := strconv.ParseInt(hs["X-Ratelimit-Reset"], 10, 64)
	require.NoError(t, err)
	assert.Equal(t, now.Add(10*time.Second).Unix(), reset)
}

func TestAdmit_OverflowMayMutateBucket(t *testing.T) {
	eng, err := New(2, 10*time.Second, WithOverflow(OverflowFunc(func(r *http.Request, b *Bucket) *Rejection {
		// graduated penalty: push the window further out
		b.ResetAt = b.ResetAt.Add(5 * time.Second)
		return RejectAll{}.Decide(r, b)
	})))
	require.NoError(t, err)
	defer eng.Close()

	now := time.Unix(3000, 0)
	eng.Admit(testRequest(), "k", now)
	eng.Admit(testRequest(), "k", now) // ResetAt = now+10s

	dec := eng.Admit(testRequest(), "k", now.Add(time.Second))
	require.NotNil(t, dec.Reject)
	assert.Equal(t, now.Add(15*time.Second), dec.Bucket.ResetAt)

	// mutation sticks for later calls
	dec = eng.Admit(testRequest(), "k", now.Add(12*time.Second))
	assert.False(t, dec.Proceed)
}

func TestAdmit_SharedRejectionTemplateIsNotMutated(t *testing.T) {
	shared := &Rejection{Status: http.StatusTooManyRequests, Body: []byte("slow down")}
	eng, err := New(1, time.Minute, WithOverflow(OverflowFunc(func(*http.Request, *Bucket) *Rejection {
		return shared
	})))
	require.NoError(t, err)
	defer eng.Close()

	now := time.Now()
	eng.Admit(testRequest(), "k", now)

	for i := 0; i < 3; i++ {
		dec := eng.Admit(testRequest(), "k", now.Add(time.Second))
		require.NotNil(t, dec.Reject)
		assert.Len(t, dec.Reject.Headers, 3)
	}
	assert.Empty(t, shared.Headers)
}

func TestAdmit_ConcurrentFirstAccess(t *testing.T) {
	const workers = 50

	eng, err := New(1000, time.Minute)
	require.NoError(t, err)
	defer eng.Close()

	now := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dec := eng.Admit(testRequest(), "fresh", now)
			assert.True(t, dec.Proceed)
		}()
	}
	wg.Wait()

	// exactly one bucket, no lost updates
	assert.Equal(t, 1, eng.TrackedScopes())
	dec := eng.Admit(testRequest(), "fresh", now)
	assert.Equal(t, 1000-workers-1, dec.Bucket.Remaining)
}

func TestAdmit_IndependentScopes(t *testing.T) {
	eng, err := New(1, time.Minute)
	require.NoError(t, err)
	defer eng.Close()

	now := time.Now()
	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("scope-%d", i)
		dec := eng.Admit(testRequest(), key, now)
		assert.True(t, dec.Proceed, "first call for %s", key)
	}
	assert.Equal(t, 5, eng.TrackedScopes())

	// each scope armed independently
	dec := eng.Admit(testRequest(), "scope-0", now.Add(time.Second))
	assert.False(t, dec.Proceed)
}

func TestBucket_RetryAfterClamped(t *testing.T) {
	now := time.Now()
	b := Bucket{ResetAt: now.Add(-time.Second)}
	assert.Equal(t, time.Duration(0), b.RetryAfter(now))

	b.ResetAt = now.Add(3 * time.Second)
	assert.Equal(t, 3*time.Second, b.RetryAfter(now))
}
