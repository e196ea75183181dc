package orchestrator

import (
	"context"
	"fmt"
	"math"

	"github.com/biaslens/evalcore/apperr"
	"github.com/biaslens/evalcore/evaltypes"
	"github.com/biaslens/evalcore/store"
)

// TrendPoint is one historical evaluation in the trends block.
type TrendPoint struct {
	EvaluationID string  `json:"evaluationId"`
	OverallScore float64 `json:"overallScore"`
	ZoneStatus   string  `json:"zoneStatus"`
	CompletedAt  string  `json:"completedAt,omitempty"`
}

// Trends summarizes an AI system's recent score history for the fetch
// response.
type Trends struct {
	DataPoints   []TrendPoint `json:"data_points"`
	CurrentZone  string       `json:"current_zone"`
	DriftAlert   bool         `json:"drift_alert"`
	DriftMessage string       `json:"drift_message,omitempty"`
}

// FetchResult is the full GET /evaluate/{id} payload.
type FetchResult struct {
	Evaluation      *evaltypes.Evaluation       `json:"evaluation"`
	Findings        []evaltypes.HeuristicFinding `json:"findings"`
	Recommendations []evaltypes.Recommendation   `json:"recommendations"`
	Trends          Trends                       `json:"trends"`
}

// Fetch loads an evaluation with its findings, recommendations, and trends.
// Callers only see evaluations owned by their team.
func (o *Orchestrator) Fetch(ctx context.Context, teamID, evaluationID string) (*FetchResult, error) {
	ev, err := o.opts.Store.GetEvaluation(ctx, evaluationID)
	if err != nil {
		return nil, err
	}
	if ev.TeamID != teamID {
		return nil, apperr.Newf(apperr.KindNotFound, apperr.CodeEvaluationNotFound,
			"evaluation %s not found", evaluationID)
	}

	findings, err := o.opts.Store.ListFindings(ctx, evaluationID)
	if err != nil {
		return nil, err
	}
	recs, err := o.opts.Store.ListRecommendations(ctx, evaluationID)
	if err != nil {
		return nil, err
	}

	history, err := o.opts.Store.ListRecentCompleted(ctx, teamID, ev.AISystemName, 10)
	if err != nil {
		return nil, err
	}

	return &FetchResult{
		Evaluation:      ev,
		Findings:        findings,
		Recommendations: recs,
		Trends:          buildTrends(ev, history),
	}, nil
}

// buildTrends derives the trends block: the recent history, the latest
// zone, and a drift alert when the current score departs from the prior
// three-run window by more than one standard deviation.
func buildTrends(current *evaltypes.Evaluation, history []store.EvaluationSummary) Trends {
	trends := Trends{DataPoints: make([]TrendPoint, 0, len(history))}

	for _, h := range history {
		point := TrendPoint{
			EvaluationID: h.ID,
			OverallScore: h.OverallScore,
			ZoneStatus:   h.ZoneStatus,
		}
		if h.CompletedAt != nil {
			point.CompletedAt = h.CompletedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
		}
		trends.DataPoints = append(trends.DataPoints, point)
	}

	if len(history) > 0 {
		trends.CurrentZone = history[0].ZoneStatus
	} else {
		trends.CurrentZone = string(current.ZoneStatus)
	}

	// Drift window: the three most recent completed runs before this one.
	var window []float64
	for _, h := range history {
		if h.ID == current.ID {
			continue
		}
		window = append(window, h.OverallScore)
		if len(window) == 3 {
			break
		}
	}
	if len(window) < 3 || current.Status != evaltypes.StatusCompleted {
		return trends
	}

	var sum float64
	for _, s := range window {
		sum += s
	}
	mean := sum / float64(len(window))

	var sq float64
	for _, s := range window {
		d := s - mean
		sq += d * d
	}
	stdDev := math.Sqrt(sq / float64(len(window)))
	if stdDev == 0 {
		stdDev = 1
	}

	delta := current.OverallScore - mean
	if math.Abs(delta) > stdDev {
		trends.DriftAlert = true
		direction := "upward"
		if delta < 0 {
			direction = "downward"
		}
		trends.DriftMessage = fmt.Sprintf(
			"Score drifted %s by %.1f points against the prior three-run mean of %.1f",
			direction, math.Abs(delta), mean)
	}
	return trends
}
