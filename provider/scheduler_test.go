package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests observe pacing without real sleeps.
type fakeClock struct {
	now   time.Time
	slept []time.Duration
}

func (c *fakeClock) sleep(_ context.Context, d time.Duration) error {
	if d > 0 {
		c.slept = append(c.slept, d)
		c.now = c.now.Add(d)
	}
	return nil
}

func newTestScheduler(policy RateLimitPolicy) (*Scheduler, *fakeClock) {
	s := NewScheduler(policy)
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	s.sleep = clock.sleep
	s.now = func() time.Time { return clock.now }
	return s, clock
}

func TestSchedulerInterval(t *testing.T) {
	s := NewScheduler(RateLimitPolicy{RequestsPerMinute: 30, MinIntervalMs: 500})
	assert.Equal(t, 2*time.Second, s.Interval())

	s = NewScheduler(RateLimitPolicy{RequestsPerMinute: 600, MinIntervalMs: 500})
	assert.Equal(t, 500*time.Millisecond, s.Interval())
}

func TestSchedulerPacesConsecutiveCalls(t *testing.T) {
	s, clock := newTestScheduler(RateLimitPolicy{Provider: "test", RequestsPerMinute: 60, MinIntervalMs: 1000, RetryAfterMs: 100})

	var calls int
	task := func(context.Context) error {
		calls++
		return nil
	}

	require.NoError(t, s.Execute(context.Background(), task, 1, nil))
	// Second call immediately after: must wait out the full interval.
	require.NoError(t, s.Execute(context.Background(), task, 0, nil))

	assert.Equal(t, 2, calls)
	require.Len(t, clock.slept, 1)
	assert.Equal(t, time.Second, clock.slept[0])
}

func TestSchedulerThrottleCallback(t *testing.T) {
	s, _ := newTestScheduler(RateLimitPolicy{Provider: "test", RequestsPerMinute: 60, MinIntervalMs: 1000, RetryAfterMs: 100})

	task := func(context.Context) error { return nil }
	require.NoError(t, s.Execute(context.Background(), task, 5, nil))

	var events []ThrottleEvent
	require.NoError(t, s.Execute(context.Background(), task, 5, func(ev ThrottleEvent) {
		events = append(events, ev)
	}))

	require.Len(t, events, 1)
	assert.Equal(t, int64(1000), events[0].DelayMs)
	assert.Equal(t, int64(1000+5*1000), events[0].EtaMs)
	assert.Equal(t, 5, events[0].RemainingIterations)
	assert.Equal(t, "test", events[0].Policy.Provider)
}

func TestSchedulerRetriesOn429(t *testing.T) {
	s, clock := newTestScheduler(RateLimitPolicy{Provider: "test", RequestsPerMinute: 6000, MinIntervalMs: 0, RetryAfterMs: 100})

	attempts := 0
	task := func(context.Context) error {
		attempts++
		if attempts < 3 {
			return &CallError{Status: 429, Message: "slow down"}
		}
		return nil
	}

	require.NoError(t, s.Execute(context.Background(), task, 0, nil))
	assert.Equal(t, 3, attempts)
	// Exponential backoff from the policy base: 100ms, 200ms.
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, clock.slept)
}

func TestSchedulerHonorsRetryAfter(t *testing.T) {
	s, clock := newTestScheduler(RateLimitPolicy{Provider: "test", RequestsPerMinute: 6000, MinIntervalMs: 0, RetryAfterMs: 100})

	attempts := 0
	task := func(context.Context) error {
		attempts++
		if attempts == 1 {
			return &CallError{Status: 429, RetryAfter: 2, Message: "slow down"}
		}
		return nil
	}

	require.NoError(t, s.Execute(context.Background(), task, 0, nil))
	assert.Equal(t, []time.Duration{2 * time.Second}, clock.slept)
}

func TestSchedulerGivesUpAfterRetryBudget(t *testing.T) {
	s, _ := newTestScheduler(RateLimitPolicy{Provider: "test", RequestsPerMinute: 6000, MinIntervalMs: 0, RetryAfterMs: 10})

	attempts := 0
	task := func(context.Context) error {
		attempts++
		return &CallError{Status: 429, Message: "always limited"}
	}

	err := s.Execute(context.Background(), task, 0, nil)
	require.Error(t, err)
	assert.Equal(t, 4, attempts)
}

func TestSchedulerPassesThroughNon429(t *testing.T) {
	s, _ := newTestScheduler(PolicyFor("simulator"))

	attempts := 0
	task := func(context.Context) error {
		attempts++
		return &CallError{Status: 500, Message: "boom"}
	}

	err := s.Execute(context.Background(), task, 0, nil)
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestSchedulerForIsProcessWide(t *testing.T) {
	a := SchedulerFor("shared-test-provider")
	b := SchedulerFor("shared-test-provider")
	assert.Same(t, a, b)
}
