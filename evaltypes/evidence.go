package evaltypes

import (
	"time"

	"github.com/biaslens/evalcore/heuristic"
)

// CapturedEvidence is one raw prompt/output pair captured during detection.
// It exists only in the background task's memory while the run is active and
// is discarded once shipped or when the task terminates. It must never be
// persisted to the control-plane store.
type CapturedEvidence struct {
	Prompt        string
	Output        string
	TestCaseID    string
	Iteration     int
	Timestamp     time.Time
	HeuristicType heuristic.Type
	ReferenceID   string
}

// EvidenceReference is the control-plane row locating one shipped iteration
// inside a customer-owned evidence store. It carries identifiers and run
// parameters only, never raw traffic.
type EvidenceReference struct {
	EvaluationID string `json:"evaluationId" db:"evaluation_id"`
	TestCaseID   string `json:"testCaseId" db:"test_case_id"`
	ReferenceID  string `json:"referenceId" db:"reference_id"`

	StorageLocation string `json:"storageLocation" db:"storage_location"`
	StorageType     string `json:"storageType" db:"storage_type"`

	DeterminismMode DeterminismMode `json:"determinismMode" db:"determinism_mode"`
	SeedValue       int64           `json:"seedValue" db:"seed_value"`
	IterationsRun   int             `json:"iterationsRun" db:"iterations_run"`
	AchievedLevel   string          `json:"achievedLevel" db:"achieved_level"`
	ParametersUsed  Parameters      `json:"parametersUsed" db:"-"`

	ConfidenceIntervals map[heuristic.Type]ConfidenceInterval `json:"confidenceIntervals,omitempty" db:"-"`

	// PerIterationResults is filtered to this reference's test case.
	PerIterationResults []IterationResult `json:"perIterationResults,omitempty" db:"-"`
}

// EvidenceCollectionConfig is the per-team configuration for an external
// evidence store. Credentials are decrypted just-in-time and never cached.
type EvidenceCollectionConfig struct {
	TeamID               string         `json:"teamId" db:"team_id"`
	StorageType          string         `json:"storageType" db:"storage_type"`
	IsEnabled            bool           `json:"isEnabled" db:"is_enabled"`
	CredentialsEncrypted string         `json:"-" db:"credentials_encrypted"`
	Configuration        map[string]any `json:"configuration" db:"-"`
	LastTestedAt         *time.Time     `json:"lastTestedAt,omitempty" db:"last_tested_at"`
}
