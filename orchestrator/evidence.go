package orchestrator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/biaslens/evalcore/detect"
	"github.com/biaslens/evalcore/evaltypes"
	"github.com/biaslens/evalcore/evidence"
)

// shipEvidence runs the batch shipper over the capture buffer. Small
// captures ship synchronously before the evaluation row is completed; large
// captures ship in the background after the response, deferring the
// evidence reference fields to the async task.
func (o *Orchestrator) shipEvidence(ctx context.Context, plan *runPlan, capture *detect.CaptureBuffer, logger *zap.Logger) shipOutcome {
	ev := plan.evaluation
	if plan.collector == nil || len(capture.Evidence) == 0 {
		return shipOutcome{synchronous: true}
	}

	o.publishProgress(ctx, ev.ID, evaltypes.Progress{
		ProgressPercent: 65,
		CurrentPhase:    evaltypes.PhaseStoringEvidence,
		TestsCompleted:  ev.IterationsRun * len(ev.HeuristicTypes),
		TestsTotal:      ev.IterationCount * len(ev.HeuristicTypes),
		Message:         "Storing evidence in your configured store",
	})

	shipper := evidence.NewShipper(plan.collector, o.opts.Audit, logger)
	if o.opts.shipRetry != nil {
		shipper.SetRetryOptions(*o.opts.shipRetry)
	}

	if evidence.ShouldShipAsync(len(capture.Evidence)) {
		// Hand the buffer to the background task; the orchestrator's own
		// references to it are dropped with the run.
		evidenceCopy := capture.Evidence
		o.opts.Audit.Event("evidence_collection_async_started", map[string]any{
			"evaluation_run_id": ev.ID, "items": len(evidenceCopy),
		})
		o.background.Add(1)
		go func() {
			defer o.background.Done()
			bgCtx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
			defer cancel()

			result := shipper.Ship(bgCtx, ev.ID, evidenceCopy, true)
			refID := o.recordShippedReferences(bgCtx, plan, result, logger)
			if refID != "" {
				if err := o.opts.Store.SetEvidenceReference(bgCtx, ev.ID, refID, plan.collector.StorageType()); err != nil {
					logger.Error("failed to record async evidence reference", zap.Error(err))
				}
			}
			o.opts.Audit.Event("evidence_collection_async_completed", map[string]any{
				"evaluation_run_id": ev.ID,
				"succeeded":         result.SuccessCount,
				"failed":            result.FailureCount,
			})
		}()
		return shipOutcome{synchronous: false}
	}

	result := shipper.Ship(ctx, ev.ID, capture.Evidence, false)
	refID := o.recordShippedReferences(ctx, plan, result, logger)
	if o.opts.Metrics != nil {
		o.opts.Metrics.ShipmentsSucceeded.WithLabelValues(plan.collector.StorageType()).Add(float64(result.SuccessCount))
		o.opts.Metrics.ShipmentsFailed.WithLabelValues(plan.collector.StorageType()).Add(float64(result.FailureCount))
	}
	return shipOutcome{
		synchronous: true,
		referenceID: refID,
		storageType: plan.collector.StorageType(),
		result:      result,
	}
}

// recordShippedReferences inserts one EvidenceReference row per stored item
// and returns the run-level reference id, or "" when nothing shipped.
//
// A reference-row insertion failure after at least one successful shipment
// still counts as successful storage: customers can recover references
// directly from their store. The anomaly is logged.
func (o *Orchestrator) recordShippedReferences(ctx context.Context, plan *runPlan, result *evidence.ShipResult, logger *zap.Logger) string {
	if result.SuccessCount == 0 {
		return ""
	}
	ev := plan.evaluation

	runRef := detect.RunReferenceID()

	byRef := map[string]evaltypes.IterationResult{}
	for _, it := range ev.PerIterationResults {
		byRef[it.ReferenceID] = it
	}

	refs := make([]evaltypes.EvidenceReference, 0, len(result.StoredReferences))
	for _, stored := range result.StoredReferences {
		it, ok := byRef[stored.ReferenceID]
		if !ok {
			continue
		}

		perCase := make([]evaltypes.IterationResult, 0, 4)
		for _, candidate := range ev.PerIterationResults {
			if candidate.TestCaseID == it.TestCaseID {
				perCase = append(perCase, candidate)
			}
		}

		refs = append(refs, evaltypes.EvidenceReference{
			EvaluationID:        ev.ID,
			TestCaseID:          it.TestCaseID,
			ReferenceID:         stored.ReferenceID,
			StorageLocation:     stored.StorageLocation,
			StorageType:         stored.StorageType,
			DeterminismMode:     ev.DeterminismMode,
			SeedValue:           ev.SeedValue,
			IterationsRun:       ev.IterationsRun,
			AchievedLevel:       ev.AchievedLevel,
			ParametersUsed:      ev.ParametersUsed,
			ConfidenceIntervals: ev.ConfidenceIntervals,
			PerIterationResults: perCase,
		})
	}

	if err := o.opts.Store.InsertEvidenceReferences(ctx, refs); err != nil {
		logger.Error("evidence reference rows failed to insert; references remain recoverable from the customer store",
			zap.Int("shipped", result.SuccessCount), zap.Error(err))
		o.opts.Audit.Event("evidence_reference_storage_failed", map[string]any{
			"evaluation_run_id": ev.ID, "error": err.Error(),
		})
	} else {
		o.opts.Audit.Event("evidence_reference_stored", map[string]any{
			"evaluation_run_id": ev.ID, "rows": len(refs),
		})
	}

	return runRef
}
