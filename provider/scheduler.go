package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/biaslens/evalcore/apperr"
)

// RateLimitPolicy is a provider's pacing and retry policy.
type RateLimitPolicy struct {
	// Provider is the policy's provider id.
	Provider string

	// RequestsPerMinute caps sustained call rate.
	RequestsPerMinute int

	// MinIntervalMs is the minimum gap between consecutive calls.
	MinIntervalMs int

	// RetryAfterMs is the base backoff applied to 429 responses that carry
	// no Retry-After header.
	RetryAfterMs int
}

// policyTable holds the static per-provider pacing policies. Providers not
// listed use defaultPolicy.
var policyTable = map[string]RateLimitPolicy{
	"openai":       {Provider: "openai", RequestsPerMinute: 60, MinIntervalMs: 500, RetryAfterMs: 2000},
	"anthropic":    {Provider: "anthropic", RequestsPerMinute: 50, MinIntervalMs: 600, RetryAfterMs: 2000},
	"bedrock":      {Provider: "bedrock", RequestsPerMinute: 40, MinIntervalMs: 750, RetryAfterMs: 3000},
	"google":       {Provider: "google", RequestsPerMinute: 60, MinIntervalMs: 500, RetryAfterMs: 2000},
	"cohere":       {Provider: "cohere", RequestsPerMinute: 40, MinIntervalMs: 750, RetryAfterMs: 2000},
	"azure-openai": {Provider: "azure-openai", RequestsPerMinute: 60, MinIntervalMs: 500, RetryAfterMs: 2000},
	"ollama":       {Provider: "ollama", RequestsPerMinute: 600, MinIntervalMs: 50, RetryAfterMs: 500},
	"simulator":    {Provider: "simulator", RequestsPerMinute: 6000, MinIntervalMs: 0, RetryAfterMs: 100},
}

var defaultPolicy = RateLimitPolicy{Provider: "default", RequestsPerMinute: 30, MinIntervalMs: 1000, RetryAfterMs: 2000}

// PolicyFor returns the pacing policy for a provider id.
func PolicyFor(providerID string) RateLimitPolicy {
	if p, ok := policyTable[providerID]; ok {
		return p
	}
	p := defaultPolicy
	p.Provider = providerID
	return p
}

// CallError is returned by model invocations that failed with an HTTP-level
// status. The scheduler inspects it to drive 429 backoff.
type CallError struct {
	// Status is the HTTP status code of the failed call.
	Status int

	// RetryAfter is the server-suggested wait in seconds, zero if absent.
	RetryAfter int

	// Message describes the failure.
	Message string
}

// Error implements the error interface.
func (e *CallError) Error() string {
	return fmt.Sprintf("provider call failed with status %d: %s", e.Status, e.Message)
}

// ThrottleEvent describes an imminent pacing delay. The scheduler hands it to
// the caller's callback so the wait can surface in progress messages.
type ThrottleEvent struct {
	// DelayMs is the pacing sleep about to be taken.
	DelayMs int64

	// EtaMs estimates time to completion: the current delay plus the paced
	// cost of the remaining iterations.
	EtaMs int64

	// RemainingIterations is how many calls the current run still owes.
	RemainingIterations int

	// Policy is the provider policy in force.
	Policy RateLimitPolicy
}

// ThrottleCallback receives throttle events. It may publish progress updates;
// it must not block for long.
type ThrottleCallback func(ThrottleEvent)

// Scheduler paces calls to one provider. Issue is sequential per instance;
// parallelism across providers uses one scheduler each.
type Scheduler struct {
	policy RateLimitPolicy

	mu         sync.Mutex
	lastCallAt time.Time

	breaker *gobreaker.CircuitBreaker

	// sleep is replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) error

	// now is replaceable in tests.
	now func() time.Time
}

const maxCallRetries = 3

// NewScheduler creates a scheduler for the given policy. The circuit breaker
// trips after a sustained run of provider failures and recovers after a
// cool-down, so a dead endpoint does not burn the whole iteration budget.
func NewScheduler(policy RateLimitPolicy) *Scheduler {
	return &Scheduler{
		policy: policy,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "provider:" + policy.Provider,
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 8
			},
		}),
		sleep: sleepCtx,
		now:   time.Now,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Interval returns the effective pacing gap: the larger of the policy's
// minimum interval and the per-minute budget spread evenly.
func (s *Scheduler) Interval() time.Duration {
	interval := time.Duration(s.policy.MinIntervalMs) * time.Millisecond
	if s.policy.RequestsPerMinute > 0 {
		perMinute := time.Duration(60000/s.policy.RequestsPerMinute) * time.Millisecond
		if perMinute > interval {
			interval = perMinute
		}
	}
	return interval
}

// Execute paces and runs one provider call. remainingIterations feeds the
// throttle callback's ETA estimate; onThrottle may be nil.
//
// On a 429 the call is retried up to three times, honoring the provider's
// Retry-After when present and exponential backoff otherwise. Non-429 errors
// are returned to the caller unretried.
func (s *Scheduler) Execute(ctx context.Context, task func(ctx context.Context) error, remainingIterations int, onThrottle ThrottleCallback) error {
	interval := s.Interval()

	s.mu.Lock()
	wait := time.Duration(0)
	if !s.lastCallAt.IsZero() {
		elapsed := s.now().Sub(s.lastCallAt)
		if elapsed < interval {
			wait = interval - elapsed
		}
	}
	s.mu.Unlock()

	if wait > 0 && onThrottle != nil {
		onThrottle(ThrottleEvent{
			DelayMs:             wait.Milliseconds(),
			EtaMs:               wait.Milliseconds() + int64(remainingIterations)*interval.Milliseconds(),
			RemainingIterations: remainingIterations,
			Policy:              s.policy,
		})
	}
	if err := s.sleep(ctx, wait); err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt <= maxCallRetries; attempt++ {
		_, err := s.breaker.Execute(func() (any, error) {
			return nil, task(ctx)
		})
		if err == nil {
			s.mu.Lock()
			s.lastCallAt = s.now()
			s.mu.Unlock()
			return nil
		}
		lastErr = err

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return apperr.New(apperr.KindProvider, apperr.CodeModelCallFailed,
				"provider circuit open after repeated failures").WithCause(err)
		}

		var callErr *CallError
		if !errors.As(err, &callErr) || callErr.Status != 429 {
			return err
		}
		if attempt == maxCallRetries {
			break
		}

		backoff := time.Duration(s.policy.RetryAfterMs) * time.Millisecond << attempt
		if callErr.RetryAfter > 0 {
			backoff = time.Duration(callErr.RetryAfter) * time.Second
		}
		if err := s.sleep(ctx, backoff); err != nil {
			return err
		}
	}

	return apperr.New(apperr.KindProvider, apperr.CodeModelCallFailed,
		"provider rate limit persisted through retries").WithCause(lastErr)
}

// schedulers is the process-wide scheduler map: one instance per provider so
// concurrent evaluations on the same provider share its pacing state.
var (
	schedulersMu sync.Mutex
	schedulers   = map[string]*Scheduler{}
)

// SchedulerFor returns the process-wide scheduler for a provider, creating
// it on first use.
func SchedulerFor(providerID string) *Scheduler {
	schedulersMu.Lock()
	defer schedulersMu.Unlock()
	if s, ok := schedulers[providerID]; ok {
		return s
	}
	s := NewScheduler(PolicyFor(providerID))
	schedulers[providerID] = s
	return s
}
