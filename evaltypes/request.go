package evaltypes

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/biaslens/evalcore/heuristic"
)

// DeterminismLevel is the requested strictness of reproducibility.
type DeterminismLevel string

const (
	// DeterminismFull pins seed, temperature, and decoding parameters.
	DeterminismFull DeterminismLevel = "full"

	// DeterminismNear pins the seed but tolerates provider-side drift.
	DeterminismNear DeterminismLevel = "near"

	// DeterminismAdaptive lets the resolver pick the strictest level the
	// provider supports.
	DeterminismAdaptive DeterminismLevel = "adaptive"
)

// IsValid returns true if the level is one of the supported values.
func (l DeterminismLevel) IsValid() bool {
	switch l {
	case DeterminismFull, DeterminismNear, DeterminismAdaptive:
		return true
	default:
		return false
	}
}

// DeterministicOptions is the optional deterministic block of an
// EvaluationRequest.
type DeterministicOptions struct {
	// Enabled requests deterministic execution.
	Enabled bool `json:"enabled"`

	// Level is the requested determinism level. Defaults to adaptive.
	Level DeterminismLevel `json:"level,omitempty"`

	// Seed is the sampling seed to pin. Zero means pick one.
	Seed int64 `json:"seed,omitempty"`

	// AllowNondeterministicFallback permits the run to proceed in standard
	// mode when the provider cannot honor seeding.
	AllowNondeterministicFallback bool `json:"allowNondeterministicFallback,omitempty"`

	// Temperature overrides the environment-default sampling temperature.
	Temperature *float64 `json:"temperature,omitempty"`

	// KeepTemperatureConstant holds the temperature fixed across iterations.
	KeepTemperatureConstant bool `json:"keepTemperatureConstant,omitempty"`
}

// EvaluationRequest is the inbound job-submission body.
type EvaluationRequest struct {
	// AISystemName labels the system under test. 1-255 characters.
	AISystemName string `json:"aiSystemName" validate:"required,min=1,max=255"`

	// HeuristicTypes lists the bias categories to test, in execution order.
	// Non-empty, at most 10 entries, each from the supported set.
	HeuristicTypes []heuristic.Type `json:"heuristicTypes" validate:"required,min=1,max=10"`

	// IterationCount is the number of model calls per heuristic. 10-1000.
	IterationCount int `json:"iterationCount" validate:"required,min=10,max=1000"`

	// LLMConfigID optionally names a stored LLM configuration to drive real
	// model traffic. Must be a UUID when present.
	LLMConfigID string `json:"llmConfigId,omitempty"`

	// Deterministic optionally requests reproducible execution.
	Deterministic *DeterministicOptions `json:"deterministic,omitempty"`
}

// Validate checks the request against the schema constraints.
// Invalid requests must be rejected before any state is created.
func (r *EvaluationRequest) Validate() error {
	if len(r.AISystemName) < 1 || len(r.AISystemName) > 255 {
		return fmt.Errorf("aiSystemName must be 1-255 characters, got %d", len(r.AISystemName))
	}

	if len(r.HeuristicTypes) == 0 {
		return fmt.Errorf("heuristicTypes must not be empty")
	}
	if len(r.HeuristicTypes) > 10 {
		return fmt.Errorf("heuristicTypes must have at most 10 entries, got %d", len(r.HeuristicTypes))
	}
	for _, t := range r.HeuristicTypes {
		if !t.IsValid() {
			return fmt.Errorf("unsupported heuristic type: %q", t)
		}
	}

	if r.IterationCount < 10 || r.IterationCount > 1000 {
		return fmt.Errorf("iterationCount must be 10-1000, got %d", r.IterationCount)
	}

	if r.LLMConfigID != "" {
		if _, err := uuid.Parse(r.LLMConfigID); err != nil {
			return fmt.Errorf("llmConfigId must be a UUID: %w", err)
		}
	}

	if d := r.Deterministic; d != nil && d.Level != "" && !d.Level.IsValid() {
		return fmt.Errorf("deterministic.level must be one of full, near, adaptive; got %q", d.Level)
	}

	return nil
}
