package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/biaslens/evalcore/detect"
	"github.com/biaslens/evalcore/evaltypes"
	"github.com/biaslens/evalcore/evidence"
	"github.com/biaslens/evalcore/heuristic"
	"github.com/biaslens/evalcore/provider"
)

// tracer instruments the background task; a no-op provider keeps this free
// when tracing is not configured.
var tracer = otel.Tracer("github.com/biaslens/evalcore/orchestrator")

// run is the background task that owns the evaluation from intake onward.
// Any error or panic flips the evaluation to failed with the message
// surfaced through the progress row.
func (o *Orchestrator) run(ctx context.Context, plan *runPlan) {
	ev := plan.evaluation
	logger := o.opts.Logger.With(zap.String("evaluation_id", ev.ID))

	var span trace.Span
	ctx, span = tracer.Start(ctx, "evaluation.run", trace.WithAttributes(
		attribute.String("evaluation.id", ev.ID),
		attribute.String("evaluation.provider", plan.providerID),
		attribute.Int("evaluation.iterations", ev.IterationCount),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("evaluation task panicked", zap.Any("panic", r))
			o.failEvaluation(ctx, ev.ID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	startedAt := time.Now().UTC()
	if err := o.runDetection(ctx, plan, startedAt, logger); err != nil {
		if err == errCancelled {
			logger.Info("evaluation cancelled externally")
			o.publishProgress(ctx, ev.ID, evaltypes.Progress{
				CurrentPhase: evaltypes.PhaseFailed,
				Message:      "Evaluation cancelled",
			})
			o.deleteProgressLater(ev.ID)
			return
		}
		logger.Error("evaluation failed", zap.Error(err))
		o.failEvaluation(ctx, ev.ID, err.Error())
		return
	}

	if o.opts.Metrics != nil {
		o.opts.Metrics.EvaluationsCompleted.Inc()
	}

	o.publishProgress(ctx, ev.ID, evaltypes.Progress{
		ProgressPercent: 100,
		CurrentPhase:    evaltypes.PhaseCompleted,
		TestsCompleted:  ev.IterationsRun,
		TestsTotal:      ev.IterationCount * len(ev.HeuristicTypes),
		Message:         "Evaluation completed",
	})
	o.deleteProgressLater(ev.ID)
}

// errCancelled signals an external cancellation observed at a heuristic
// boundary.
var errCancelled = fmt.Errorf("evaluation cancelled")

// runDetection executes the detection loop, shipping, aggregation,
// persistence, and repro-pack construction.
func (o *Orchestrator) runDetection(ctx context.Context, plan *runPlan, startedAt time.Time, logger *zap.Logger) error {
	ev := plan.evaluation
	totalHeuristics := len(ev.HeuristicTypes)
	totalTests := ev.IterationCount * totalHeuristics

	o.publishProgress(ctx, ev.ID, evaltypes.Progress{
		ProgressPercent: 10,
		CurrentPhase:    evaltypes.PhaseDetecting,
		TestsTotal:      totalTests,
		Message:         "Preparing detection algorithms…",
	})

	capture := &detect.CaptureBuffer{}
	findings := make([]evaltypes.HeuristicFinding, 0, totalHeuristics)
	intervals := map[heuristic.Type]evaltypes.ConfidenceInterval{}

	for i, h := range ev.HeuristicTypes {
		// Cancellation is observed at heuristic boundaries only; in-flight
		// calls complete.
		status, err := o.opts.Store.GetEvaluationStatus(ctx, ev.ID)
		if err == nil && status == evaltypes.StatusFailed {
			return errCancelled
		}

		current := h
		percent := 10 + (60*i)/totalHeuristics
		o.publishProgress(ctx, ev.ID, evaltypes.Progress{
			ProgressPercent:  percent,
			CurrentPhase:     evaltypes.PhaseDetecting,
			CurrentHeuristic: &current,
			TestsCompleted:   i * ev.IterationCount,
			TestsTotal:       totalTests,
			Message:          fmt.Sprintf("Testing for %s", h.DisplayName()),
		})

		detector, err := detect.For(h)
		if err != nil {
			return err
		}

		hCtx, hSpan := tracer.Start(ctx, "evaluation.detect",
			trace.WithAttributes(attribute.String("heuristic", string(h))))
		finding, err := detector.Run(hCtx, detect.RunOptions{
			Client:     plan.client,
			Scheduler:  plan.scheduler,
			Params:     plan.params,
			Iterations: ev.IterationCount,
			Capture:    capture,
			OnThrottle: o.throttleCallback(ctx, ev.ID, percent, &current, i*ev.IterationCount, totalTests),
		})
		hSpan.End()
		if err != nil {
			return err
		}

		finding.EvaluationID = ev.ID
		findings = append(findings, *finding)
		intervals[h] = finding.ConfidenceInterval
	}

	ev.IterationsRun = ev.IterationCount
	ev.ConfidenceIntervals = intervals
	ev.PerIterationResults = capture.Iterations

	// Shipping: synchronous unless the capture is large enough to defer.
	shipped := o.shipEvidence(ctx, plan, capture, logger)

	o.publishProgress(ctx, ev.ID, evaltypes.Progress{
		ProgressPercent: 80,
		CurrentPhase:    evaltypes.PhaseProcessing,
		TestsCompleted:  totalTests,
		TestsTotal:      totalTests,
		Message:         "Aggregating bias metrics",
	})

	aggregatedAt := time.Now().UTC()
	ev.OverallScore = overallScore(findings)
	ev.ZoneStatus = heuristic.ZoneForScore(ev.OverallScore)

	if err := o.opts.Store.InsertFindings(ctx, findings); err != nil {
		return err
	}
	recs := detect.BuildRecommendations(ev.ID, findings)
	if err := o.opts.Store.InsertRecommendations(ctx, recs); err != nil {
		return err
	}

	completedAt := time.Now().UTC()
	ev.Status = evaltypes.StatusCompleted
	ev.CompletedAt = &completedAt
	if shipped.synchronous && shipped.referenceID != "" {
		ev.EvidenceReferenceID = shipped.referenceID
		ev.EvidenceStorageType = shipped.storageType
	}

	if err := o.opts.Store.CompleteEvaluation(ctx, ev); err != nil {
		return err
	}

	o.publishProgress(ctx, ev.ID, evaltypes.Progress{
		ProgressPercent: 90,
		CurrentPhase:    evaltypes.PhaseFinalizing,
		TestsCompleted:  totalTests,
		TestsTotal:      totalTests,
		Message:         "Signing reproducibility manifest",
	})

	// A missing signing key is fatal even though the evaluation row already
	// says completed: the pack is part of the contract.
	if err := o.buildAndStorePack(ctx, plan, startedAt, aggregatedAt, completedAt, capture, shipped); err != nil {
		return err
	}

	return nil
}

// throttleCallback surfaces scheduler pacing into progress messages without
// advancing the percentage.
func (o *Orchestrator) throttleCallback(ctx context.Context, evaluationID string, percent int, current *heuristic.Type, completed, total int) provider.ThrottleCallback {
	return func(evt provider.ThrottleEvent) {
		if o.opts.Metrics != nil {
			o.opts.Metrics.ThrottleEvents.WithLabelValues(evt.Policy.Provider).Inc()
		}
		etaSeconds := evt.EtaMs / 1000
		o.publishProgress(ctx, evaluationID, evaltypes.Progress{
			ProgressPercent:  percent,
			CurrentPhase:     evaltypes.PhaseDetecting,
			CurrentHeuristic: current,
			TestsCompleted:   completed,
			TestsTotal:       total,
			Message: fmt.Sprintf("Pacing %s requests: waiting %dms, about %ds remaining",
				evt.Policy.Provider, evt.DelayMs, etaSeconds),
		})
	}
}

// overallScore is the confidence-weighted severity aggregate; 75 for an
// empty finding set.
func overallScore(findings []evaltypes.HeuristicFinding) float64 {
	if len(findings) == 0 {
		return 75
	}
	var num, den float64
	for _, f := range findings {
		w := f.ConfidenceLevel * (f.SeverityScore/100 + 0.5)
		num += f.SeverityScore * w
		den += w
	}
	if den == 0 {
		return 75
	}
	return num / den
}

// failEvaluation flips the row to failed and surfaces the message through
// the progress channel.
func (o *Orchestrator) failEvaluation(ctx context.Context, evaluationID, message string) {
	if o.opts.Metrics != nil {
		o.opts.Metrics.EvaluationsFailed.Inc()
	}
	if err := o.opts.Store.MarkEvaluationFailed(ctx, evaluationID, message); err != nil {
		o.opts.Logger.Error("failed to mark evaluation failed",
			zap.String("evaluation_id", evaluationID), zap.Error(err))
	}
	o.publishProgress(ctx, evaluationID, evaltypes.Progress{
		CurrentPhase: evaltypes.PhaseFailed,
		Message:      message,
	})
	o.deleteProgressLater(evaluationID)
}

// deleteProgressLater removes the progress row after a short linger so late
// subscribers still observe the terminal state.
func (o *Orchestrator) deleteProgressLater(evaluationID string) {
	linger := o.opts.linger
	o.background.Add(1)
	go func() {
		defer o.background.Done()
		time.Sleep(linger)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := o.opts.Progress.Delete(ctx, evaluationID); err != nil {
			o.opts.Logger.Warn("progress row delete failed",
				zap.String("evaluation_id", evaluationID), zap.Error(err))
		}
	}()
}

// shipOutcome summarizes the evidence shipping decision and result.
type shipOutcome struct {
	synchronous bool
	referenceID string
	storageType string
	result      *evidence.ShipResult
}
