package evaltypes

import "time"

// SigningMode distinguishes who signs a repro pack.
type SigningMode string

const (
	// SigningModeBiasLens uses the process-default key pair from the environment.
	SigningModeBiasLens SigningMode = "biaslens"

	// SigningModeCustomer uses a customer-scoped key pair from the signing_keys table.
	SigningModeCustomer SigningMode = "customer"
)

// ReproPackRecord is the persisted repro pack row. Exactly one exists per
// completed evaluation.
type ReproPackRecord struct {
	EvaluationRunID  string         `json:"evaluationRunId" db:"evaluation_run_id"`
	ContentHash      string         `json:"contentHash" db:"content_hash"`
	Signature        string         `json:"signature" db:"signature"`
	SigningAuthority string         `json:"signingAuthority" db:"signing_authority"`
	SigningKeyID     string         `json:"signingKeyId" db:"signing_key_id"`
	CreatedAt        time.Time      `json:"createdAt" db:"created_at"`
	ReproPackContent map[string]any `json:"reproPackContent" db:"-"`
}
