package detect

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/biaslens/evalcore/evaltypes"
	"github.com/biaslens/evalcore/heuristic"
	"github.com/biaslens/evalcore/llmclient"
	"github.com/biaslens/evalcore/provider"
)

// CaptureBuffer collects raw prompt/output pairs and the parallel
// hash-and-reference records for the repro pack. It lives only in the
// background task's memory; nothing in it may reach the control-plane store.
type CaptureBuffer struct {
	// Evidence holds the raw captures awaiting shipment.
	Evidence []evaltypes.CapturedEvidence

	// Iterations holds the hashed per-call records the repro pack embeds.
	Iterations []evaltypes.IterationResult
}

// RunOptions configures one detector run.
type RunOptions struct {
	// Client invokes the model. A nil client runs the deterministic simulator.
	Client llmclient.Client

	// Scheduler paces calls. Required.
	Scheduler *provider.Scheduler

	// Params are the resolved decoding parameters for every call.
	Params evaltypes.Parameters

	// Iterations is the number of model calls to issue.
	Iterations int

	// Capture, when non-nil, receives raw evidence and hashed iteration
	// records.
	Capture *CaptureBuffer

	// OnThrottle surfaces scheduler pacing waits; may be nil.
	OnThrottle provider.ThrottleCallback
}

// Detector runs one heuristic's catalog against a model and aggregates the
// outcome into a finding.
type Detector interface {
	// Type returns the heuristic this detector tests.
	Type() heuristic.Type

	// Catalog returns the detector's fixed test-case catalog.
	Catalog() []TestCase

	// Run issues the configured number of paced model calls and aggregates
	// scores into a finding. Scores and captures accumulate in request
	// order: call i maps to case i mod len(catalog), iteration i/len+1.
	Run(ctx context.Context, opts RunOptions) (*evaltypes.HeuristicFinding, error)
}

// For returns the detector for a heuristic type.
func For(t heuristic.Type) (Detector, error) {
	cases := CatalogFor(t)
	if len(cases) == 0 {
		return nil, fmt.Errorf("detect: no catalog for heuristic %q", t)
	}
	return &biasDetector{heuristicType: t, cases: cases}, nil
}

// biasDetector is the shared detector implementation; per-heuristic behavior
// lives in the catalog, the scorer cues, and the severity tables.
type biasDetector struct {
	heuristicType heuristic.Type
	cases         []TestCase
}

func (d *biasDetector) Type() heuristic.Type { return d.heuristicType }

func (d *biasDetector) Catalog() []TestCase { return d.cases }

func (d *biasDetector) Run(ctx context.Context, opts RunOptions) (*evaltypes.HeuristicFinding, error) {
	if opts.Scheduler == nil {
		return nil, fmt.Errorf("detect: scheduler is required")
	}

	client := opts.Client
	if client == nil {
		var seed int64
		if opts.Params.Seed != nil {
			seed = *opts.Params.Seed
		}
		client = llmclient.NewSimulator("", seed)
	}

	scores := make([]float64, 0, opts.Iterations)

	for i := 0; i < opts.Iterations; i++ {
		tc := d.cases[i%len(d.cases)]
		iteration := i/len(d.cases) + 1

		var output string
		task := func(ctx context.Context) error {
			out, err := client.Generate(ctx, tc.Prompt, opts.Params)
			if err != nil {
				return err
			}
			output = out
			return nil
		}

		if err := opts.Scheduler.Execute(ctx, task, opts.Iterations-i-1, opts.OnThrottle); err != nil {
			return nil, fmt.Errorf("detect: %s call %d (case %s): %w", d.heuristicType, i, tc.ID, err)
		}

		score := ScoreOutput(d.heuristicType, tc, output)
		scores = append(scores, score)

		if opts.Capture != nil {
			refID := IterationReferenceID(tc.ID, iteration)
			now := time.Now().UTC()
			sum := sha256.Sum256([]byte(output))

			opts.Capture.Evidence = append(opts.Capture.Evidence, evaltypes.CapturedEvidence{
				Prompt:        tc.Prompt,
				Output:        output,
				TestCaseID:    tc.ID,
				Iteration:     iteration,
				Timestamp:     now,
				HeuristicType: d.heuristicType,
				ReferenceID:   refID,
			})
			opts.Capture.Iterations = append(opts.Capture.Iterations, evaltypes.IterationResult{
				HeuristicType: d.heuristicType,
				TestCaseID:    tc.ID,
				Iteration:     iteration,
				Score:         score,
				ReferenceID:   refID,
				OutputSHA256:  hex.EncodeToString(sum[:]),
				CapturedAt:    now,
			})
		}
	}

	return d.buildFinding(scores), nil
}

func (d *biasDetector) buildFinding(scores []float64) *evaltypes.HeuristicFinding {
	agg := AggregateScores(d.heuristicType, scores)
	severityScore, severity := heuristic.ScoreSeverity(d.heuristicType, agg.RawMetric)

	return &evaltypes.HeuristicFinding{
		HeuristicType:      d.heuristicType,
		Severity:           severity,
		SeverityScore:      severityScore,
		ConfidenceLevel:    agg.Confidence,
		DetectionCount:     agg.Detections,
		ExampleInstances:   d.exampleInstances(scores),
		PatternDescription: d.patternDescription(agg),
		TestCasesRun:       len(d.cases),
		MeanBiasScore:      agg.Mean,
		StdDeviation:       agg.StdDev,
		ConfidenceInterval: agg.CI,
		RawMetric:          agg.RawMetric,
	}
}

// exampleInstances builds short descriptive strings from the catalog's
// expected indicators for the cases that scored as detections. Raw prompts
// and outputs never appear here.
func (d *biasDetector) exampleInstances(scores []float64) []string {
	seen := map[string]bool{}
	var examples []string
	for i, score := range scores {
		if score < detectionThreshold {
			continue
		}
		tc := d.cases[i%len(d.cases)]
		if seen[tc.ID] || len(tc.ExpectedBiasIndicators) == 0 {
			continue
		}
		seen[tc.ID] = true
		examples = append(examples, fmt.Sprintf("%s: %s", tc.Name, tc.ExpectedBiasIndicators[0]))
		if len(examples) == 5 {
			break
		}
	}
	return examples
}

func (d *biasDetector) patternDescription(agg Aggregate) string {
	rate := 0.0
	if n := agg.Detections; n > 0 {
		rate = agg.Confidence
	}
	switch {
	case agg.Detections == 0:
		return fmt.Sprintf("%s: no test case crossed the detection threshold", d.heuristicType.DisplayName())
	case rate >= 0.6:
		return fmt.Sprintf("%s responses consistently followed the biased framing across the catalog (mean score %.2f)", d.heuristicType.DisplayName(), agg.Mean)
	default:
		return fmt.Sprintf("%s markers appeared intermittently across test cases (mean score %.2f, %d detections)", d.heuristicType.DisplayName(), agg.Mean, agg.Detections)
	}
}
