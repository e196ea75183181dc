package evidence

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/biaslens/evalcore/evaltypes"
)

// AsyncThreshold is the capture count above which shipping runs in the
// background after the evaluation completes.
const AsyncThreshold = 100

// batchSizeFor returns the per-backend batch size.
func batchSizeFor(storageType string) int {
	switch storageType {
	case StorageObjectStore:
		return 25
	case StorageLogSearch:
		return 15
	case StorageDocumentSearch:
		return 20
	default:
		return 20
	}
}

// Delay tuning per mode. Rate-limited batches stretch the inter-batch delay
// toward the cap; calm batches relax it back toward the floor.
const (
	syncInitialDelay  = 100 * time.Millisecond
	asyncInitialDelay = 200 * time.Millisecond
	syncDelayCap      = 10 * time.Second
	asyncDelayCap     = 15 * time.Second
	delayRelaxFactor  = 0.9
)

// ShipResult summarizes one shipping pass.
type ShipResult struct {
	// StoredReferences lists every successfully shipped item in capture order.
	StoredReferences []ReferenceInfo

	// SuccessCount and FailureCount partition the attempted items.
	SuccessCount int
	FailureCount int

	// RateLimitEncountered is set when any item hit backend throttling.
	RateLimitEncountered bool

	// ConsecutiveRateLimitErrors counts the rate-limited items of the pass.
	// Neither successes nor other failures reset it.
	ConsecutiveRateLimitErrors int
}

// SuccessRate returns the shipped fraction in [0,1]; 1 for an empty pass.
func (r *ShipResult) SuccessRate() float64 {
	total := r.SuccessCount + r.FailureCount
	if total == 0 {
		return 1
	}
	return float64(r.SuccessCount) / float64(total)
}

// Shipper drains a run's capture buffer into one collector in
// storage-type-sized batches with adaptive inter-batch delay.
type Shipper struct {
	collector Collector
	audit     AuditSink
	logger    *zap.Logger
	retry     RetryOptions

	// sleep is replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewShipper creates a shipper. A nil audit sink discards events; a nil
// logger discards logs.
func NewShipper(collector Collector, audit AuditSink, logger *zap.Logger) *Shipper {
	if audit == nil {
		audit = NopAudit{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Shipper{
		collector: collector,
		audit:     audit,
		logger:    logger,
		retry:     DefaultRetryOptions(),
		sleep: func(ctx context.Context, d time.Duration) error {
			if d <= 0 {
				return nil
			}
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				return nil
			}
		},
	}
}

// SetRetryOptions overrides the per-item retry policy.
func (s *Shipper) SetRetryOptions(opts RetryOptions) {
	s.retry = opts
}

// ShouldShipAsync reports whether a capture of the given size ships in the
// background.
func ShouldShipAsync(captured int) bool {
	return captured > AsyncThreshold
}

// Ship writes every captured item through the collector. Individual
// failures never abort the pass; they are recorded and shipping continues.
// async selects the background-mode delay tuning.
func (s *Shipper) Ship(ctx context.Context, runID string, captured []evaltypes.CapturedEvidence, async bool) *ShipResult {
	result := &ShipResult{}
	if len(captured) == 0 {
		return result
	}

	initialDelay, delayCap := syncInitialDelay, syncDelayCap
	if async {
		initialDelay, delayCap = asyncInitialDelay, asyncDelayCap
	}
	interBatchDelay := initialDelay

	s.audit.Event("evidence_storage_started", map[string]any{
		"evaluation_run_id": runID,
		"items":             len(captured),
		"storage_type":      s.collector.StorageType(),
		"async":             async,
	})

	batchSize := batchSizeFor(s.collector.StorageType())
	for start := 0; start < len(captured); start += batchSize {
		end := start + batchSize
		if end > len(captured) {
			end = len(captured)
		}

		rateLimitedThisBatch := false
		for _, item := range captured[start:end] {
			delay, limited := s.shipOne(ctx, runID, item, result, async, interBatchDelay, delayCap)
			interBatchDelay = delay
			rateLimitedThisBatch = rateLimitedThisBatch || limited
		}

		if end < len(captured) {
			if !rateLimitedThisBatch {
				relaxed := time.Duration(float64(interBatchDelay) * delayRelaxFactor)
				if relaxed < initialDelay {
					relaxed = initialDelay
				}
				interBatchDelay = relaxed
			}
			if err := s.sleep(ctx, interBatchDelay); err != nil {
				s.logger.Warn("evidence shipping interrupted",
					zap.String("evaluation_run_id", runID), zap.Error(err))
				break
			}
		}
	}

	if rate := result.SuccessRate(); rate < 0.5 {
		s.logger.Warn("evidence shipping success rate below 50%",
			zap.String("evaluation_run_id", runID),
			zap.Float64("success_rate", rate),
			zap.Int("succeeded", result.SuccessCount),
			zap.Int("failed", result.FailureCount))
	}

	s.audit.Event("evidence_collection_completed", map[string]any{
		"evaluation_run_id":      runID,
		"succeeded":              result.SuccessCount,
		"failed":                 result.FailureCount,
		"rate_limit_encountered": result.RateLimitEncountered,
	})

	return result
}

// shipOne ships one item and returns the adjusted inter-batch delay and
// whether the item was rate limited.
func (s *Shipper) shipOne(ctx context.Context, runID string, item evaltypes.CapturedEvidence, result *ShipResult, async bool, delay, delayCap time.Duration) (time.Duration, bool) {
	generatedRef := CollectorReferenceID(runID, item.TestCaseID, item.Iteration)
	data := EvidenceData{
		ReferenceID:     item.ReferenceID,
		EvaluationRunID: runID,
		TestCaseID:      item.TestCaseID,
		Iteration:       item.Iteration,
		Timestamp:       item.Timestamp,
		Prompt:          item.Prompt,
		Output:          item.Output,
		Metadata: map[string]string{
			"heuristicType":        string(item.HeuristicType),
			"generatedReferenceId": generatedRef,
		},
	}

	var ref ReferenceInfo
	err := WithRetry(ctx, s.retry, func(ctx context.Context) error {
		var storeErr error
		ref, storeErr = s.collector.StoreEvidence(ctx, data)
		return storeErr
	})

	if err == nil {
		result.StoredReferences = append(result.StoredReferences, ref)
		result.SuccessCount++
		s.audit.Event("evidence_storage_success", map[string]any{
			"evaluation_run_id": runID,
			"reference_id":      ref.ReferenceID,
			"storage_location":  ref.StorageLocation,
		})
		return delay, false
	}

	result.FailureCount++

	limited := false
	if collErr, ok := err.(*CollectorError); ok && collErr.IsRateLimit() {
		limited = true
		result.RateLimitEncountered = true
		result.ConsecutiveRateLimitErrors++

		retryAfterCap := 10 * time.Second
		if async {
			retryAfterCap = 15 * time.Second
		}
		if collErr.RateLimit != nil && collErr.RateLimit.RetryAfter > 0 {
			suggested := time.Duration(collErr.RateLimit.RetryAfter) * time.Second
			if suggested > retryAfterCap {
				suggested = retryAfterCap
			}
			delay = suggested
		} else {
			delay *= 2
			if delay > delayCap {
				delay = delayCap
			}
		}
	}
	// A non-rate-limit failure leaves the consecutive counter untouched,
	// matching the synchronous path's accounting.

	s.audit.Event("evidence_storage_failed", map[string]any{
		"evaluation_run_id": runID,
		"test_case_id":      item.TestCaseID,
		"iteration":         item.Iteration,
		"error":             err.Error(),
		"rate_limited":      limited,
	})

	return delay, limited
}
