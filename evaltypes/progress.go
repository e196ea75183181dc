package evaltypes

import (
	"time"

	"github.com/biaslens/evalcore/heuristic"
)

// Phase names the stage a running evaluation is in.
type Phase string

const (
	PhaseInitializing    Phase = "initializing"
	PhaseDetecting       Phase = "detecting"
	PhaseStoringEvidence Phase = "storing_evidence"
	PhaseProcessing      Phase = "processing"
	PhaseFinalizing      Phase = "finalizing"
	PhaseCompleted       Phase = "completed"
	PhaseFailed          Phase = "failed"
)

// IsValid returns true if the phase is one of the known stages.
func (p Phase) IsValid() bool {
	switch p {
	case PhaseInitializing, PhaseDetecting, PhaseStoringEvidence,
		PhaseProcessing, PhaseFinalizing, PhaseCompleted, PhaseFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation of the phase.
func (p Phase) String() string {
	return string(p)
}

// Progress is the per-evaluation progress row published while the background
// task runs. ProgressPercent is monotonically non-decreasing within a phase
// except on failure. The row is deleted shortly after completion.
type Progress struct {
	ID           string `json:"id" db:"id"`
	EvaluationID string `json:"evaluationId" db:"evaluation_id"`

	ProgressPercent  int             `json:"progressPercent" db:"progress_percent"`
	CurrentPhase     Phase           `json:"currentPhase" db:"current_phase"`
	CurrentHeuristic *heuristic.Type `json:"currentHeuristic,omitempty" db:"current_heuristic"`

	TestsCompleted int    `json:"testsCompleted" db:"tests_completed"`
	TestsTotal     int    `json:"testsTotal" db:"tests_total"`
	Message        string `json:"message,omitempty" db:"message"`

	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
