package evidence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/biaslens/evalcore/evaltypes"
	"github.com/biaslens/evalcore/heuristic"
)

// fakeCollector scripts per-call outcomes for shipper tests.
type fakeCollector struct {
	storageType string
	fail        func(call int) error

	mu    sync.Mutex
	calls int
	seen  []EvidenceData
}

func (f *fakeCollector) StorageType() string {
	if f.storageType == "" {
		return StorageObjectStore
	}
	return f.storageType
}

func (f *fakeCollector) StoreEvidence(_ context.Context, data EvidenceData) (ReferenceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := f.calls
	f.calls++
	f.seen = append(f.seen, data)
	if f.fail != nil {
		if err := f.fail(call); err != nil {
			return ReferenceInfo{}, err
		}
	}
	return ReferenceInfo{
		ReferenceID:     data.ReferenceID,
		StorageLocation: "fake://" + data.ReferenceID,
		StorageType:     f.StorageType(),
	}, nil
}

func (f *fakeCollector) TestConnection(context.Context) error { return nil }

// recordingAudit captures audit events for assertions.
type recordingAudit struct {
	mu     sync.Mutex
	events []string
}

func (a *recordingAudit) Event(name string, _ map[string]any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, name)
}

func (a *recordingAudit) count(name string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, e := range a.events {
		if e == name {
			n++
		}
	}
	return n
}

func testShipper(c Collector, audit AuditSink) *Shipper {
	s := NewShipper(c, audit, nil)
	s.retry = RetryOptions{MaxRetries: 0, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond,
		sleep:  func(context.Context, time.Duration) error { return nil },
		jitter: func() time.Duration { return 0 }}
	s.sleep = func(context.Context, time.Duration) error { return nil }
	return s
}

func captures(n int) []evaltypes.CapturedEvidence {
	out := make([]evaltypes.CapturedEvidence, n)
	for i := range out {
		out[i] = evaltypes.CapturedEvidence{
			Prompt:        "p",
			Output:        "o",
			TestCaseID:    "case_a",
			Iteration:     i + 1,
			Timestamp:     time.Unix(1700000000, 0),
			HeuristicType: heuristic.Anchoring,
			ReferenceID:   "ref",
		}
	}
	return out
}

func TestShipperAllSucceed(t *testing.T) {
	fc := &fakeCollector{}
	audit := &recordingAudit{}

	result := testShipper(fc, audit).Ship(context.Background(), "run-1", captures(30), false)

	assert.Equal(t, 30, result.SuccessCount)
	assert.Equal(t, 0, result.FailureCount)
	assert.Len(t, result.StoredReferences, 30)
	assert.False(t, result.RateLimitEncountered)
	assert.Equal(t, 30, audit.count("evidence_storage_success"))
	assert.Equal(t, 1, audit.count("evidence_storage_started"))
	assert.Equal(t, 1, audit.count("evidence_collection_completed"))

	// Every shipped payload carries the generated collector reference id.
	for _, data := range fc.seen {
		assert.Contains(t, data.Metadata, "generatedReferenceId")
		assert.Regexp(t, `^evaluation-run-run-1-test-case-case_a-iteration-\d+-[0-9a-f-]{36}$`,
			data.Metadata["generatedReferenceId"])
	}
}

func TestShipperContinuesPastFailures(t *testing.T) {
	fc := &fakeCollector{fail: func(call int) error {
		if call%2 == 0 {
			return Classify(500, "flaky", nil)
		}
		return nil
	}}
	audit := &recordingAudit{}

	result := testShipper(fc, audit).Ship(context.Background(), "run-1", captures(10), false)

	assert.Equal(t, 5, result.SuccessCount)
	assert.Equal(t, 5, result.FailureCount)
	assert.Equal(t, 5, audit.count("evidence_storage_failed"))
	assert.False(t, result.RateLimitEncountered)
	assert.Zero(t, result.ConsecutiveRateLimitErrors)
}

func TestShipperRecordsRateLimits(t *testing.T) {
	fc := &fakeCollector{fail: func(int) error {
		e := Classify(429, "throttled", nil)
		e.RateLimit = &RateLimitInfo{RetryAfter: 2, Remaining: -1}
		return e
	}}
	audit := &recordingAudit{}

	result := testShipper(fc, audit).Ship(context.Background(), "run-1", captures(5), false)

	assert.Equal(t, 0, result.SuccessCount)
	assert.Equal(t, 5, result.FailureCount)
	assert.True(t, result.RateLimitEncountered)
	assert.Equal(t, 5, result.ConsecutiveRateLimitErrors)
	assert.InDelta(t, 0.0, result.SuccessRate(), 1e-9)
}

func TestShipperBatchSizes(t *testing.T) {
	assert.Equal(t, 25, batchSizeFor(StorageObjectStore))
	assert.Equal(t, 15, batchSizeFor(StorageLogSearch))
	assert.Equal(t, 20, batchSizeFor(StorageDocumentSearch))
	assert.Equal(t, 20, batchSizeFor("something_else"))
}

func TestShouldShipAsync(t *testing.T) {
	assert.False(t, ShouldShipAsync(100))
	assert.True(t, ShouldShipAsync(101))
}

func TestShipperEmptyCapture(t *testing.T) {
	fc := &fakeCollector{}
	result := testShipper(fc, &recordingAudit{}).Ship(context.Background(), "run-1", nil, false)
	assert.Zero(t, result.SuccessCount)
	assert.InDelta(t, 1.0, result.SuccessRate(), 1e-9)
}
