package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	// Registers the pgx stdlib driver under name "pgx".
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/biaslens/evalcore/apperr"
	"github.com/biaslens/evalcore/evaltypes"
	"github.com/biaslens/evalcore/heuristic"
)

// PostgresStore implements Store on a Postgres control plane through the
// pgx stdlib driver.
type PostgresStore struct {
	db *sqlx.DB
}

// Open connects to Postgres and pings it.
func Open(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open postgres: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// NewWithDB wraps an existing connection; used by tests with sqlmock.
func NewWithDB(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error { return s.db.Close() }

// Ping checks connectivity for health reporting.
func (s *PostgresStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func mustJSON(v any) []byte {
	raw, err := json.Marshal(v)
	if err != nil {
		return []byte("null")
	}
	return raw
}

// CreateEvaluation inserts the intake row.
func (s *PostgresStore) CreateEvaluation(ctx context.Context, ev *evaltypes.Evaluation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO evaluations (
			id, user_id, team_id, ai_system_name, heuristic_types, iteration_count,
			status, determinism_mode, seed_value, achieved_level, parameters_used, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		ev.ID, ev.UserID, ev.TeamID, ev.AISystemName, mustJSON(ev.HeuristicTypes), ev.IterationCount,
		ev.Status, ev.DeterminismMode, ev.SeedValue, ev.AchievedLevel, mustJSON(ev.ParametersUsed), ev.CreatedAt)
	if err != nil {
		return apperr.New(apperr.KindInternal, apperr.CodePersistenceFailed, "insert evaluation").WithCause(err)
	}
	return nil
}

type evaluationRow struct {
	ID                  string         `db:"id"`
	UserID              string         `db:"user_id"`
	TeamID              string         `db:"team_id"`
	AISystemName        string         `db:"ai_system_name"`
	HeuristicTypes      []byte         `db:"heuristic_types"`
	IterationCount      int            `db:"iteration_count"`
	Status              string         `db:"status"`
	DeterminismMode     string         `db:"determinism_mode"`
	SeedValue           int64          `db:"seed_value"`
	AchievedLevel       string         `db:"achieved_level"`
	ParametersUsed      []byte         `db:"parameters_used"`
	IterationsRun       sql.NullInt64  `db:"iterations_run"`
	OverallScore        sql.NullFloat64 `db:"overall_score"`
	ZoneStatus          sql.NullString `db:"zone_status"`
	EvidenceReferenceID sql.NullString `db:"evidence_reference_id"`
	EvidenceStorageType sql.NullString `db:"evidence_storage_type"`
	ConfidenceIntervals []byte         `db:"confidence_intervals"`
	PerIterationResults []byte         `db:"per_iteration_results"`
	CreatedAt           time.Time      `db:"created_at"`
	CompletedAt         *time.Time     `db:"completed_at"`
}

func (r *evaluationRow) toEvaluation() (*evaltypes.Evaluation, error) {
	ev := &evaltypes.Evaluation{
		ID:              r.ID,
		UserID:          r.UserID,
		TeamID:          r.TeamID,
		AISystemName:    r.AISystemName,
		IterationCount:  r.IterationCount,
		Status:          evaltypes.Status(r.Status),
		DeterminismMode: evaltypes.DeterminismMode(r.DeterminismMode),
		SeedValue:       r.SeedValue,
		AchievedLevel:   r.AchievedLevel,
		IterationsRun:   int(r.IterationsRun.Int64),
		OverallScore:    r.OverallScore.Float64,
		ZoneStatus:      heuristic.Zone(r.ZoneStatus.String),
		CreatedAt:       r.CreatedAt,
		CompletedAt:     r.CompletedAt,
	}
	ev.EvidenceReferenceID = r.EvidenceReferenceID.String
	ev.EvidenceStorageType = r.EvidenceStorageType.String

	if len(r.HeuristicTypes) > 0 {
		if err := json.Unmarshal(r.HeuristicTypes, &ev.HeuristicTypes); err != nil {
			return nil, fmt.Errorf("store: decode heuristic_types: %w", err)
		}
	}
	if len(r.ParametersUsed) > 0 {
		if err := json.Unmarshal(r.ParametersUsed, &ev.ParametersUsed); err != nil {
			return nil, fmt.Errorf("store: decode parameters_used: %w", err)
		}
	}
	if len(r.ConfidenceIntervals) > 0 {
		if err := json.Unmarshal(r.ConfidenceIntervals, &ev.ConfidenceIntervals); err != nil {
			return nil, fmt.Errorf("store: decode confidence_intervals: %w", err)
		}
	}
	if len(r.PerIterationResults) > 0 {
		if err := json.Unmarshal(r.PerIterationResults, &ev.PerIterationResults); err != nil {
			return nil, fmt.Errorf("store: decode per_iteration_results: %w", err)
		}
	}
	return ev, nil
}

const evaluationColumns = `id, user_id, team_id, ai_system_name, heuristic_types, iteration_count,
	status, determinism_mode, seed_value, achieved_level, parameters_used,
	iterations_run, overall_score, zone_status, evidence_reference_id, evidence_storage_type,
	confidence_intervals, per_iteration_results, created_at, completed_at`

// GetEvaluation loads one evaluation row.
func (s *PostgresStore) GetEvaluation(ctx context.Context, id string) (*evaltypes.Evaluation, error) {
	var row evaluationRow
	err := s.db.GetContext(ctx, &row,
		`SELECT `+evaluationColumns+` FROM evaluations WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Newf(apperr.KindNotFound, apperr.CodeEvaluationNotFound, "evaluation %s not found", id)
	}
	if err != nil {
		return nil, apperr.New(apperr.KindInternal, apperr.CodePersistenceFailed, "load evaluation").WithCause(err)
	}
	return row.toEvaluation()
}

// GetEvaluationStatus reads just the status column; the cancellation poll
// uses this at heuristic boundaries.
func (s *PostgresStore) GetEvaluationStatus(ctx context.Context, id string) (evaltypes.Status, error) {
	var status string
	err := s.db.GetContext(ctx, &status, `SELECT status FROM evaluations WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.Newf(apperr.KindNotFound, apperr.CodeEvaluationNotFound, "evaluation %s not found", id)
	}
	if err != nil {
		return "", apperr.New(apperr.KindInternal, apperr.CodePersistenceFailed, "load evaluation status").WithCause(err)
	}
	return evaltypes.Status(status), nil
}

// CompleteEvaluation writes the terminal completed state and result fields.
func (s *PostgresStore) CompleteEvaluation(ctx context.Context, ev *evaltypes.Evaluation) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE evaluations SET
			status = $2, overall_score = $3, zone_status = $4, completed_at = $5,
			determinism_mode = $6, seed_value = $7, iterations_run = $8, achieved_level = $9,
			parameters_used = $10, confidence_intervals = $11, per_iteration_results = $12,
			evidence_reference_id = NULLIF($13, ''), evidence_storage_type = NULLIF($14, '')
		WHERE id = $1`,
		ev.ID, ev.Status, ev.OverallScore, ev.ZoneStatus, ev.CompletedAt,
		ev.DeterminismMode, ev.SeedValue, ev.IterationsRun, ev.AchievedLevel,
		mustJSON(ev.ParametersUsed), mustJSON(ev.ConfidenceIntervals), mustJSON(ev.PerIterationResults),
		ev.EvidenceReferenceID, ev.EvidenceStorageType)
	if err != nil {
		return apperr.New(apperr.KindInternal, apperr.CodePersistenceFailed, "complete evaluation").WithCause(err)
	}
	return nil
}

// MarkEvaluationFailed flips the row to the failed terminal state.
func (s *PostgresStore) MarkEvaluationFailed(ctx context.Context, id, message string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE evaluations SET status = $2, failure_message = $3, completed_at = $4 WHERE id = $1`,
		id, evaltypes.StatusFailed, message, time.Now().UTC())
	if err != nil {
		return apperr.New(apperr.KindInternal, apperr.CodePersistenceFailed, "mark evaluation failed").WithCause(err)
	}
	return nil
}

// SetEvidenceReference records the run-level evidence reference; used by the
// async shipping path after the evaluation row is already completed.
func (s *PostgresStore) SetEvidenceReference(ctx context.Context, id, referenceID, storageType string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE evaluations SET evidence_reference_id = $2, evidence_storage_type = $3 WHERE id = $1`,
		id, referenceID, storageType)
	if err != nil {
		return apperr.New(apperr.KindInternal, apperr.CodePersistenceFailed, "set evidence reference").WithCause(err)
	}
	return nil
}

// InsertFindings inserts one row per heuristic finding.
func (s *PostgresStore) InsertFindings(ctx context.Context, findings []evaltypes.HeuristicFinding) error {
	for _, f := range findings {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO heuristic_findings (
				evaluation_id, heuristic_type, severity, severity_score, confidence_level,
				detection_count, example_instances, pattern_description, test_cases_run,
				mean_bias_score, std_deviation, confidence_interval, raw_metric
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
			f.EvaluationID, f.HeuristicType, f.Severity, f.SeverityScore, f.ConfidenceLevel,
			f.DetectionCount, mustJSON(f.ExampleInstances), f.PatternDescription, f.TestCasesRun,
			f.MeanBiasScore, f.StdDeviation, mustJSON(f.ConfidenceInterval), f.RawMetric)
		if err != nil {
			return apperr.New(apperr.KindInternal, apperr.CodePersistenceFailed, "insert finding").WithCause(err)
		}
	}
	return nil
}

type findingRow struct {
	EvaluationID       string  `db:"evaluation_id"`
	HeuristicType      string  `db:"heuristic_type"`
	Severity           string  `db:"severity"`
	SeverityScore      float64 `db:"severity_score"`
	ConfidenceLevel    float64 `db:"confidence_level"`
	DetectionCount     int     `db:"detection_count"`
	ExampleInstances   []byte  `db:"example_instances"`
	PatternDescription string  `db:"pattern_description"`
	TestCasesRun       int     `db:"test_cases_run"`
	MeanBiasScore      float64 `db:"mean_bias_score"`
	StdDeviation       float64 `db:"std_deviation"`
	ConfidenceInterval []byte  `db:"confidence_interval"`
	RawMetric          float64 `db:"raw_metric"`
}

// ListFindings returns an evaluation's findings. The query has no ORDER BY,
// so the row order is not guaranteed.
func (s *PostgresStore) ListFindings(ctx context.Context, evaluationID string) ([]evaltypes.HeuristicFinding, error) {
	var rows []findingRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT evaluation_id, heuristic_type, severity, severity_score, confidence_level,
		       detection_count, example_instances, pattern_description, test_cases_run,
		       mean_bias_score, std_deviation, confidence_interval, raw_metric
		FROM heuristic_findings WHERE evaluation_id = $1`, evaluationID)
	if err != nil {
		return nil, apperr.New(apperr.KindInternal, apperr.CodePersistenceFailed, "list findings").WithCause(err)
	}

	out := make([]evaltypes.HeuristicFinding, 0, len(rows))
	for _, r := range rows {
		f := evaltypes.HeuristicFinding{
			EvaluationID:       r.EvaluationID,
			HeuristicType:      heuristic.Type(r.HeuristicType),
			Severity:           heuristic.Severity(r.Severity),
			SeverityScore:      r.SeverityScore,
			ConfidenceLevel:    r.ConfidenceLevel,
			DetectionCount:     r.DetectionCount,
			PatternDescription: r.PatternDescription,
			TestCasesRun:       r.TestCasesRun,
			MeanBiasScore:      r.MeanBiasScore,
			StdDeviation:       r.StdDeviation,
			RawMetric:          r.RawMetric,
		}
		if len(r.ExampleInstances) > 0 {
			json.Unmarshal(r.ExampleInstances, &f.ExampleInstances)
		}
		if len(r.ConfidenceInterval) > 0 {
			json.Unmarshal(r.ConfidenceInterval, &f.ConfidenceInterval)
		}
		out = append(out, f)
	}
	return out, nil
}

// InsertRecommendations inserts the retained recommendations.
func (s *PostgresStore) InsertRecommendations(ctx context.Context, recs []evaltypes.Recommendation) error {
	for _, r := range recs {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO recommendations (
				evaluation_id, heuristic_type, priority, action_title,
				technical_description, simplified_description, estimated_impact, implementation_difficulty
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			r.EvaluationID, r.HeuristicType, r.Priority, r.ActionTitle,
			r.TechnicalDescription, r.SimplifiedDescription, r.EstimatedImpact, r.ImplementationDifficulty)
		if err != nil {
			return apperr.New(apperr.KindInternal, apperr.CodePersistenceFailed, "insert recommendation").WithCause(err)
		}
	}
	return nil
}

// ListRecommendations returns an evaluation's recommendations, highest
// priority first.
func (s *PostgresStore) ListRecommendations(ctx context.Context, evaluationID string) ([]evaltypes.Recommendation, error) {
	var recs []evaltypes.Recommendation
	err := s.db.SelectContext(ctx, &recs, `
		SELECT evaluation_id, heuristic_type, priority, action_title,
		       technical_description, simplified_description, estimated_impact, implementation_difficulty
		FROM recommendations WHERE evaluation_id = $1 ORDER BY priority DESC`, evaluationID)
	if err != nil {
		return nil, apperr.New(apperr.KindInternal, apperr.CodePersistenceFailed, "list recommendations").WithCause(err)
	}
	return recs, nil
}

// InsertEvidenceReferences inserts one row per shipped item.
func (s *PostgresStore) InsertEvidenceReferences(ctx context.Context, refs []evaltypes.EvidenceReference) error {
	for _, r := range refs {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO evidence_references (
				evaluation_id, test_case_id, reference_id, storage_location, storage_type,
				determinism_mode, seed_value, iterations_run, achieved_level,
				parameters_used, confidence_intervals, per_iteration_results
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
			r.EvaluationID, r.TestCaseID, r.ReferenceID, r.StorageLocation, r.StorageType,
			r.DeterminismMode, r.SeedValue, r.IterationsRun, r.AchievedLevel,
			mustJSON(r.ParametersUsed), mustJSON(r.ConfidenceIntervals), mustJSON(r.PerIterationResults))
		if err != nil {
			return apperr.New(apperr.KindInternal, apperr.CodePersistenceFailed, "insert evidence reference").WithCause(err)
		}
	}
	return nil
}

// GetEvidenceCollectionConfig loads a team's enabled collection config.
// Returns (nil, nil) when the team has none.
func (s *PostgresStore) GetEvidenceCollectionConfig(ctx context.Context, teamID string) (*evaltypes.EvidenceCollectionConfig, error) {
	var row struct {
		TeamID               string     `db:"team_id"`
		StorageType          string     `db:"storage_type"`
		IsEnabled            bool       `db:"is_enabled"`
		CredentialsEncrypted string     `db:"credentials_encrypted"`
		Configuration        []byte     `db:"configuration"`
		LastTestedAt         *time.Time `db:"last_tested_at"`
	}
	err := s.db.GetContext(ctx, &row, `
		SELECT team_id, storage_type, is_enabled, credentials_encrypted, configuration, last_tested_at
		FROM evidence_collection_configs WHERE team_id = $1 AND is_enabled = TRUE`, teamID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.New(apperr.KindInternal, apperr.CodePersistenceFailed, "load collection config").WithCause(err)
	}

	cfg := &evaltypes.EvidenceCollectionConfig{
		TeamID:               row.TeamID,
		StorageType:          row.StorageType,
		IsEnabled:            row.IsEnabled,
		CredentialsEncrypted: row.CredentialsEncrypted,
		LastTestedAt:         row.LastTestedAt,
	}
	if len(row.Configuration) > 0 {
		json.Unmarshal(row.Configuration, &cfg.Configuration)
	}
	return cfg, nil
}

// GetLLMConfig loads a stored model-endpoint configuration.
func (s *PostgresStore) GetLLMConfig(ctx context.Context, id string) (*LLMConfigRow, error) {
	var row LLMConfigRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, team_id, provider, model_name, api_key_encrypted,
		       COALESCE(endpoint, '') AS endpoint, COALESCE(region, '') AS region
		FROM llm_configs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Newf(apperr.KindNotFound, apperr.CodeLLMConfigNotFound, "llm config %s not found", id)
	}
	if err != nil {
		return nil, apperr.New(apperr.KindInternal, apperr.CodePersistenceFailed, "load llm config").WithCause(err)
	}
	return &row, nil
}

// GetTeamSigningConfig returns the team's signing mode row, or (nil, nil)
// when the team has no override.
func (s *PostgresStore) GetTeamSigningConfig(ctx context.Context, teamID string) (*TeamSigningConfigRow, error) {
	var row TeamSigningConfigRow
	err := s.db.GetContext(ctx, &row,
		`SELECT team_id, signing_mode FROM team_signing_configs WHERE team_id = $1`, teamID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.New(apperr.KindInternal, apperr.CodePersistenceFailed, "load team signing config").WithCause(err)
	}
	return &row, nil
}

// GetActiveSigningKey loads the team's active customer signing key. A team
// configured for customer signing with no active key is a hard failure.
func (s *PostgresStore) GetActiveSigningKey(ctx context.Context, teamID string) (*SigningKeyRow, error) {
	var row SigningKeyRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, team_id, status, authority, private_key_encrypted, public_key_pem
		FROM signing_keys WHERE team_id = $1 AND status = 'active'`, teamID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Newf(apperr.KindConfig, apperr.CodeSigningKeyMissing,
			"team %s has customer signing enabled but no active signing key", teamID)
	}
	if err != nil {
		return nil, apperr.New(apperr.KindInternal, apperr.CodePersistenceFailed, "load signing key").WithCause(err)
	}
	return &row, nil
}

// GetSigningKeyByAuthority loads an active key by signing authority; the
// verification endpoint uses this for customer-signed packs.
func (s *PostgresStore) GetSigningKeyByAuthority(ctx context.Context, authority string) (*SigningKeyRow, error) {
	var row SigningKeyRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, team_id, status, authority, private_key_encrypted, public_key_pem
		FROM signing_keys WHERE authority = $1 AND status = 'active'`, authority)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Newf(apperr.KindNotFound, apperr.CodeSigningKeyMissing,
			"no active signing key for authority %q", authority)
	}
	if err != nil {
		return nil, apperr.New(apperr.KindInternal, apperr.CodePersistenceFailed, "load signing key by authority").WithCause(err)
	}
	return &row, nil
}

// InsertReproPack inserts exactly one pack row per completed evaluation.
func (s *PostgresStore) InsertReproPack(ctx context.Context, pack *evaltypes.ReproPackRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO repro_packs (
			evaluation_run_id, content_hash, signature, signing_authority, signing_key_id,
			created_at, repro_pack_content
		) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		pack.EvaluationRunID, pack.ContentHash, pack.Signature, pack.SigningAuthority,
		pack.SigningKeyID, pack.CreatedAt, mustJSON(pack.ReproPackContent))
	if err != nil {
		return apperr.New(apperr.KindInternal, apperr.CodePersistenceFailed, "insert repro pack").WithCause(err)
	}
	return nil
}

// GetReproPack loads the pack for an evaluation run.
func (s *PostgresStore) GetReproPack(ctx context.Context, evaluationRunID string) (*evaltypes.ReproPackRecord, error) {
	var row struct {
		EvaluationRunID  string    `db:"evaluation_run_id"`
		ContentHash      string    `db:"content_hash"`
		Signature        string    `db:"signature"`
		SigningAuthority string    `db:"signing_authority"`
		SigningKeyID     string    `db:"signing_key_id"`
		CreatedAt        time.Time `db:"created_at"`
		ReproPackContent []byte    `db:"repro_pack_content"`
	}
	err := s.db.GetContext(ctx, &row, `
		SELECT evaluation_run_id, content_hash, signature, signing_authority, signing_key_id,
		       created_at, repro_pack_content
		FROM repro_packs WHERE evaluation_run_id = $1`, evaluationRunID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Newf(apperr.KindNotFound, apperr.CodeEvaluationNotFound, "repro pack for %s not found", evaluationRunID)
	}
	if err != nil {
		return nil, apperr.New(apperr.KindInternal, apperr.CodePersistenceFailed, "load repro pack").WithCause(err)
	}

	pack := &evaltypes.ReproPackRecord{
		EvaluationRunID:  row.EvaluationRunID,
		ContentHash:      row.ContentHash,
		Signature:        row.Signature,
		SigningAuthority: row.SigningAuthority,
		SigningKeyID:     row.SigningKeyID,
		CreatedAt:        row.CreatedAt,
	}
	if len(row.ReproPackContent) > 0 {
		if err := json.Unmarshal(row.ReproPackContent, &pack.ReproPackContent); err != nil {
			return nil, fmt.Errorf("store: decode repro pack content: %w", err)
		}
	}
	return pack, nil
}

// ProfileByToken resolves an API token to the owning profile's user and
// team ids. Tokens are stored hashed; the comparison happens on the SHA-256
// hex digest.
func (s *PostgresStore) ProfileByToken(ctx context.Context, token string) (string, string, error) {
	digest := sha256.Sum256([]byte(token))

	var row struct {
		UserID string         `db:"user_id"`
		TeamID sql.NullString `db:"team_id"`
	}
	err := s.db.GetContext(ctx, &row,
		`SELECT user_id, team_id FROM profiles WHERE api_token_hash = $1`,
		hex.EncodeToString(digest[:]))
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", apperr.New(apperr.KindAuth, apperr.CodeUnauthorized, "unknown token")
	}
	if err != nil {
		return "", "", apperr.New(apperr.KindInternal, apperr.CodePersistenceFailed, "profile lookup").WithCause(err)
	}
	return row.UserID, row.TeamID.String, nil
}

// ListRecentCompleted returns the team's most recent completed evaluations
// for one AI system, newest first; the trends aggregation reads this.
func (s *PostgresStore) ListRecentCompleted(ctx context.Context, teamID, aiSystemName string, limit int) ([]EvaluationSummary, error) {
	var rows []EvaluationSummary
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, overall_score, zone_status, completed_at
		FROM evaluations
		WHERE team_id = $1 AND ai_system_name = $2 AND status = 'completed'
		ORDER BY completed_at DESC LIMIT $3`, teamID, aiSystemName, limit)
	if err != nil {
		return nil, apperr.New(apperr.KindInternal, apperr.CodePersistenceFailed, "list recent evaluations").WithCause(err)
	}
	return rows, nil
}

var _ Store = (*PostgresStore)(nil)
