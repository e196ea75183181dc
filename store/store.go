// Package store holds the control-plane persistence adapters: the Postgres
// store for evaluation rows, findings, recommendations, evidence references,
// signing material, and repro packs, and the Redis-backed progress channel
// readers subscribe to.
//
// Raw prompts and outputs never pass through this package; the evidence
// shipper writes those to customer-owned stores only.
package store

import (
	"context"
	"time"

	"github.com/biaslens/evalcore/evaltypes"
)

// LLMConfigRow is a stored model-endpoint configuration. The API key is
// decrypted just-in-time by the orchestrator.
type LLMConfigRow struct {
	ID              string `db:"id"`
	TeamID          string `db:"team_id"`
	Provider        string `db:"provider"`
	ModelName       string `db:"model_name"`
	APIKeyEncrypted string `db:"api_key_encrypted"`
	Endpoint        string `db:"endpoint"`
	Region          string `db:"region"`
}

// SigningKeyRow is a customer-scoped signing key pair. PrivateKeyEncrypted
// is a vault envelope around a PKCS#8 PEM.
type SigningKeyRow struct {
	ID                  string `db:"id"`
	TeamID              string `db:"team_id"`
	Status              string `db:"status"`
	Authority           string `db:"authority"`
	PrivateKeyEncrypted string `db:"private_key_encrypted"`
	PublicKeyPEM        string `db:"public_key_pem"`
}

// TeamSigningConfigRow selects a team's signing mode.
type TeamSigningConfigRow struct {
	TeamID      string `db:"team_id"`
	SigningMode string `db:"signing_mode"`
}

// EvaluationSummary is the trimmed row the trends aggregation reads.
type EvaluationSummary struct {
	ID           string         `db:"id"`
	OverallScore float64        `db:"overall_score"`
	ZoneStatus   string         `db:"zone_status"`
	CompletedAt  *time.Time     `db:"completed_at"`
}

// Store is the control-plane persistence contract the orchestrator and API
// layer depend on. The Postgres implementation is authoritative; tests use
// in-memory fakes.
type Store interface {
	CreateEvaluation(ctx context.Context, ev *evaltypes.Evaluation) error
	GetEvaluation(ctx context.Context, id string) (*evaltypes.Evaluation, error)
	GetEvaluationStatus(ctx context.Context, id string) (evaltypes.Status, error)
	CompleteEvaluation(ctx context.Context, ev *evaltypes.Evaluation) error
	MarkEvaluationFailed(ctx context.Context, id, message string) error
	SetEvidenceReference(ctx context.Context, id, referenceID, storageType string) error

	InsertFindings(ctx context.Context, findings []evaltypes.HeuristicFinding) error
	ListFindings(ctx context.Context, evaluationID string) ([]evaltypes.HeuristicFinding, error)

	InsertRecommendations(ctx context.Context, recs []evaltypes.Recommendation) error
	ListRecommendations(ctx context.Context, evaluationID string) ([]evaltypes.Recommendation, error)

	InsertEvidenceReferences(ctx context.Context, refs []evaltypes.EvidenceReference) error

	GetEvidenceCollectionConfig(ctx context.Context, teamID string) (*evaltypes.EvidenceCollectionConfig, error)
	GetLLMConfig(ctx context.Context, id string) (*LLMConfigRow, error)

	GetTeamSigningConfig(ctx context.Context, teamID string) (*TeamSigningConfigRow, error)
	GetActiveSigningKey(ctx context.Context, teamID string) (*SigningKeyRow, error)
	GetSigningKeyByAuthority(ctx context.Context, authority string) (*SigningKeyRow, error)

	InsertReproPack(ctx context.Context, pack *evaltypes.ReproPackRecord) error
	GetReproPack(ctx context.Context, evaluationRunID string) (*evaltypes.ReproPackRecord, error)

	ListRecentCompleted(ctx context.Context, teamID, aiSystemName string, limit int) ([]EvaluationSummary, error)
}

// ProgressStore is the progress-row contract: upserted while a task runs,
// deleted shortly after completion, published to the change stream on every
// write.
type ProgressStore interface {
	Publish(ctx context.Context, p evaltypes.Progress) error
	Get(ctx context.Context, evaluationID string) (*evaltypes.Progress, error)
	Delete(ctx context.Context, evaluationID string) error
	Subscribe(ctx context.Context, evaluationID string) (<-chan evaltypes.Progress, error)
}
