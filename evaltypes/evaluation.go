package evaltypes

import (
	"time"

	"github.com/biaslens/evalcore/heuristic"
)

// Status is the evaluation lifecycle state.
// Transitions: pending -> running -> completed | failed. A cancellation by an
// external actor also lands on failed.
type Status string

const (
	// StatusPending means the evaluation row exists but the task has not started.
	StatusPending Status = "pending"

	// StatusRunning means the background task owns the evaluation.
	StatusRunning Status = "running"

	// StatusCompleted is the normal terminal state.
	StatusCompleted Status = "completed"

	// StatusFailed is the error and cancellation terminal state.
	StatusFailed Status = "failed"
)

// IsValid returns true if the status is a known lifecycle state.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal returns true when the status admits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// DeterminismMode is the resolved execution mode recorded on the evaluation.
type DeterminismMode string

const (
	// ModeStandard means no determinism controls are applied.
	ModeStandard DeterminismMode = "standard"

	// ModeFull pins seed and all decoding parameters.
	ModeFull DeterminismMode = "full"

	// ModeNear pins the seed, tolerating provider drift.
	ModeNear DeterminismMode = "near"

	// ModeAdaptive applies the strictest controls the provider supports.
	ModeAdaptive DeterminismMode = "adaptive"
)

// IsValid returns true if the mode is a known determinism mode.
func (m DeterminismMode) IsValid() bool {
	switch m {
	case ModeStandard, ModeFull, ModeNear, ModeAdaptive:
		return true
	default:
		return false
	}
}

// Parameters captures the decoding parameters actually used for the run.
type Parameters struct {
	Temperature float64 `json:"temperature" db:"-"`
	TopP        float64 `json:"top_p" db:"-"`
	TopK        *int    `json:"top_k,omitempty" db:"-"`
	MaxTokens   int     `json:"max_tokens" db:"-"`
	Seed        *int64  `json:"seed,omitempty" db:"-"`
}

// ConfidenceInterval is a two-sided interval around a heuristic's mean score.
type ConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// IterationResult is one model call's scored outcome, kept for the repro pack
// and per-test-case evidence references. It never carries the raw prompt or
// output.
type IterationResult struct {
	HeuristicType heuristic.Type `json:"heuristicType"`
	TestCaseID    string         `json:"testCaseId"`
	Iteration     int            `json:"iteration"`
	Score         float64        `json:"score"`
	ReferenceID   string         `json:"referenceId,omitempty"`
	OutputSHA256  string         `json:"outputSha256"`
	CapturedAt    time.Time      `json:"capturedAt"`
}

// Evaluation is the control-plane row describing one evaluation run.
// Created on intake, mutated only by its own background task, never deleted
// by the core.
type Evaluation struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"userId" db:"user_id"`
	TeamID string `json:"teamId" db:"team_id"`

	AISystemName   string           `json:"aiSystemName" db:"ai_system_name"`
	HeuristicTypes []heuristic.Type `json:"heuristicTypes" db:"-"`
	IterationCount int              `json:"iterationCount" db:"iteration_count"`

	Status Status `json:"status" db:"status"`

	DeterminismMode DeterminismMode `json:"determinismMode" db:"determinism_mode"`
	SeedValue       int64           `json:"seedValue" db:"seed_value"`
	AchievedLevel   string          `json:"achievedLevel" db:"achieved_level"`
	ParametersUsed  Parameters      `json:"parametersUsed" db:"-"`

	IterationsRun int            `json:"iterationsRun" db:"iterations_run"`
	OverallScore  float64        `json:"overallScore" db:"overall_score"`
	ZoneStatus    heuristic.Zone `json:"zoneStatus" db:"zone_status"`

	EvidenceReferenceID string `json:"evidenceReferenceId,omitempty" db:"evidence_reference_id"`
	EvidenceStorageType string `json:"evidenceStorageType,omitempty" db:"evidence_storage_type"`

	ConfidenceIntervals map[heuristic.Type]ConfidenceInterval `json:"confidenceIntervals,omitempty" db:"-"`
	PerIterationResults []IterationResult                     `json:"perIterationResults,omitempty" db:"-"`

	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	CompletedAt *time.Time `json:"completedAt,omitempty" db:"completed_at"`
}
