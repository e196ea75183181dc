// Package orchestrator implements the evaluation lifecycle: synchronous job
// intake, the background detection task with progress publication and
// cancellation polling, evidence shipping, final aggregation, and repro-pack
// construction.
package orchestrator

import (
	"context"
	"crypto/rand"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/biaslens/evalcore/apperr"
	"github.com/biaslens/evalcore/evaltypes"
	"github.com/biaslens/evalcore/evidence"
	"github.com/biaslens/evalcore/internal/config"
	"github.com/biaslens/evalcore/internal/metrics"
	"github.com/biaslens/evalcore/llmclient"
	"github.com/biaslens/evalcore/provider"
	"github.com/biaslens/evalcore/repropack"
	"github.com/biaslens/evalcore/store"
	"github.com/biaslens/evalcore/vault"
)

// progressRowLinger is how long the completed progress row stays readable
// before deletion.
const progressRowLinger = 5 * time.Second

// Options wires the orchestrator's collaborators.
type Options struct {
	Store    store.Store
	Progress store.ProgressStore

	// CredentialVault decrypts evidence-store and LLM credentials.
	CredentialVault *vault.Vault

	// SigningVault decrypts customer signing keys.
	SigningVault *vault.Vault

	// DefaultSigning is the process-default BiasLens signing material.
	// A zero value (nil PrivateKey) makes every repro pack build fail.
	DefaultSigning repropack.SigningMaterial

	// Model carries the default provider/model/decoding parameters.
	Model config.ModelConfig

	Logger  *zap.Logger
	Audit   evidence.AuditSink
	Metrics *metrics.Metrics

	// NewCollector builds an evidence backend from a decrypted config.
	// Defaults to the real backends; tests inject fakes.
	NewCollector func(ctx context.Context, storageType string, creds *vault.StoredCredentials) (evidence.Collector, error)

	// NewClient builds a typed LLM client. Defaults to llmclient.New.
	NewClient func(cfg llmclient.Config) (llmclient.Client, error)

	// SchedulerFor returns the pacing scheduler for a provider. Defaults to
	// the process-wide scheduler map.
	SchedulerFor func(providerID string) *provider.Scheduler

	// linger overrides progressRowLinger in tests.
	linger time.Duration

	// shipRetry overrides the shipper's per-item retry policy in tests.
	shipRetry *evidence.RetryOptions
}

// Orchestrator owns evaluation intake and the background run tasks.
type Orchestrator struct {
	opts Options

	background sync.WaitGroup
}

// New creates an orchestrator, filling collaborator defaults.
func New(opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Audit == nil {
		opts.Audit = evidence.NopAudit{}
	}
	if opts.NewCollector == nil {
		opts.NewCollector = defaultNewCollector
	}
	if opts.NewClient == nil {
		opts.NewClient = llmclient.New
	}
	if opts.SchedulerFor == nil {
		opts.SchedulerFor = provider.SchedulerFor
	}
	if opts.linger == 0 {
		opts.linger = progressRowLinger
	}
	return &Orchestrator{opts: opts}
}

// Wait blocks until every background task has finished; used by tests and
// graceful shutdown.
func (o *Orchestrator) Wait() {
	o.background.Wait()
}

func defaultNewCollector(ctx context.Context, storageType string, creds *vault.StoredCredentials) (evidence.Collector, error) {
	switch storageType {
	case evidence.StorageObjectStore:
		return evidence.NewObjectStore(ctx, creds)
	case evidence.StorageLogSearch:
		return evidence.NewLogSearch(creds)
	case evidence.StorageDocumentSearch:
		return evidence.NewDocSearch(creds)
	default:
		return nil, apperr.Newf(apperr.KindConfig, apperr.CodeDecryptFailed, "unknown storage type %q", storageType)
	}
}

// runPlan carries everything the background task needs, resolved at intake.
type runPlan struct {
	evaluation *evaltypes.Evaluation
	request    evaltypes.EvaluationRequest

	client    llmclient.Client
	scheduler *provider.Scheduler
	params    evaltypes.Parameters

	providerID string
	modelName  string

	collector evidence.Collector
}

// Submit validates and admits an evaluation request, creates the evaluation
// and progress rows, launches the background task, and returns the
// evaluation envelope. userID and teamID come from the authenticated caller.
func (o *Orchestrator) Submit(ctx context.Context, userID, teamID string, req evaltypes.EvaluationRequest) (*evaltypes.Evaluation, error) {
	if teamID == "" {
		return nil, apperr.New(apperr.KindAuth, apperr.CodeUnauthorized, "caller has no team")
	}
	if err := req.Validate(); err != nil {
		return nil, apperr.New(apperr.KindInput, apperr.CodeInvalidRequest, err.Error()).WithCause(err)
	}

	plan, err := o.resolvePlan(ctx, teamID, req)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	plan.evaluation.ID = uuid.NewString()
	plan.evaluation.UserID = userID
	plan.evaluation.TeamID = teamID
	plan.evaluation.Status = evaltypes.StatusRunning
	plan.evaluation.CreatedAt = now

	if err := o.opts.Store.CreateEvaluation(ctx, plan.evaluation); err != nil {
		return nil, err
	}

	totalTests := req.IterationCount * len(req.HeuristicTypes)
	o.publishProgress(context.Background(), plan.evaluation.ID, evaltypes.Progress{
		ID:              uuid.NewString(),
		EvaluationID:    plan.evaluation.ID,
		ProgressPercent: 0,
		CurrentPhase:    evaltypes.PhaseInitializing,
		TestsTotal:      totalTests,
		Message:         "Evaluation accepted",
	})

	if o.opts.Metrics != nil {
		o.opts.Metrics.EvaluationsStarted.Inc()
	}

	o.background.Add(1)
	go func() {
		defer o.background.Done()
		o.run(context.Background(), plan)
	}()

	// The background task mutates its own evaluation; hand the caller a
	// snapshot of the intake state.
	envelope := *plan.evaluation
	return &envelope, nil
}

// resolvePlan performs intake steps 3-5: capability and determinism
// resolution, evidence-collection config loading (degrading on failure),
// and LLM client construction (fatal on failure).
func (o *Orchestrator) resolvePlan(ctx context.Context, teamID string, req evaltypes.EvaluationRequest) (*runPlan, error) {
	providerID := o.opts.Model.Provider
	modelName := o.opts.Model.Name

	var client llmclient.Client
	if req.LLMConfigID != "" {
		cfg, err := o.loadLLMClientConfig(ctx, teamID, req.LLMConfigID)
		if err != nil {
			return nil, err
		}
		client, err = o.opts.NewClient(*cfg)
		if err != nil {
			return nil, apperr.New(apperr.KindProvider, apperr.CodeModelCallFailed,
				"failed to initialize the configured model client").WithCause(err)
		}
		providerID = client.Provider()
		modelName = client.Model()
	}

	caps := provider.CapabilitiesFor(providerID)

	mode, ok := provider.ResolveMode(caps, req.Deterministic)
	if !ok {
		return nil, apperr.Newf(apperr.KindProvider, apperr.CodeDeterminismRefused,
			"provider %q cannot honor deterministic execution (%s); set allowNondeterministicFallback to proceed",
			providerID, caps.Guidance)
	}

	params, seed, reqTemp := o.resolveParameters(caps, req.Deterministic)
	deterministic := req.Deterministic != nil && req.Deterministic.Enabled
	achieved := provider.ResolveAchievedLevel(caps, deterministic, reqTemp, o.opts.Model.TopK)

	ev := &evaltypes.Evaluation{
		AISystemName:    req.AISystemName,
		HeuristicTypes:  req.HeuristicTypes,
		IterationCount:  req.IterationCount,
		DeterminismMode: mode,
		SeedValue:       seed,
		AchievedLevel:   achieved,
		ParametersUsed:  params,
	}

	plan := &runPlan{
		evaluation: ev,
		request:    req,
		client:     client,
		scheduler:  o.opts.SchedulerFor(providerID),
		params:     params,
		providerID: providerID,
		modelName:  modelName,
	}

	plan.collector = o.loadCollector(ctx, teamID)
	return plan, nil
}

// resolveParameters merges request determinism options over the configured
// defaults, honoring the provider's temperature floor. The third return is
// the requested temperature before flooring, which the achieved-level tag
// reports on.
func (o *Orchestrator) resolveParameters(caps provider.Capabilities, det *evaltypes.DeterministicOptions) (evaltypes.Parameters, int64, float64) {
	params := evaltypes.Parameters{
		Temperature: o.opts.Model.Temperature,
		TopP:        o.opts.Model.TopP,
		TopK:        o.opts.Model.TopK,
		MaxTokens:   o.opts.Model.MaxTokens,
	}

	seed := o.opts.Model.Seed
	if det != nil && det.Enabled {
		if det.Temperature != nil {
			params.Temperature = *det.Temperature
		} else if det.KeepTemperatureConstant || det.Level == evaltypes.DeterminismFull {
			params.Temperature = 0
		}
		if det.Seed != 0 {
			seed = det.Seed
		} else if seed == 0 {
			seed = randomSeed()
		}
		params.Seed = &seed
	}

	reqTemp := params.Temperature
	if params.Temperature < caps.MinTemperature {
		params.Temperature = caps.MinTemperature
	}
	if caps.DecodingSupport != provider.DecodingTopPTopK {
		params.TopK = nil
	}
	return params, seed, reqTemp
}

func randomSeed() int64 {
	n, err := rand.Int(rand.Reader, big.NewInt(1<<31))
	if err != nil {
		return 1
	}
	return n.Int64() + 1
}

// loadLLMClientConfig loads, authorizes, and decrypts a stored LLM config.
// Failures here are fatal to the request: the caller explicitly asked for
// real traffic.
func (o *Orchestrator) loadLLMClientConfig(ctx context.Context, teamID, configID string) (*llmclient.Config, error) {
	row, err := o.opts.Store.GetLLMConfig(ctx, configID)
	if err != nil {
		return nil, err
	}
	if row.TeamID != teamID {
		return nil, apperr.New(apperr.KindAuth, apperr.CodeTeamMismatch,
			"llm config belongs to a different team")
	}

	apiKey := ""
	if row.APIKeyEncrypted != "" {
		if o.opts.CredentialVault == nil {
			return nil, apperr.New(apperr.KindConfig, apperr.CodeDecryptFailed, "credential vault not configured")
		}
		plaintext, err := o.opts.CredentialVault.Decrypt(row.APIKeyEncrypted)
		if err != nil {
			return nil, apperr.New(apperr.KindConfig, apperr.CodeDecryptFailed,
				"failed to decrypt the model API key").WithCause(err)
		}
		apiKey = string(plaintext)
	}

	return &llmclient.Config{
		ID:       row.ID,
		TeamID:   row.TeamID,
		Provider: row.Provider,
		Model:    row.ModelName,
		APIKey:   apiKey,
		Endpoint: row.Endpoint,
		Region:   row.Region,
	}, nil
}

// loadCollector attempts to build the team's evidence collector. Any
// failure degrades to evidence-disabled: the run proceeds, the degradation
// is audited.
func (o *Orchestrator) loadCollector(ctx context.Context, teamID string) evidence.Collector {
	o.opts.Audit.Event("evidence_collection_started", map[string]any{"team_id": teamID})

	cfg, err := o.opts.Store.GetEvidenceCollectionConfig(ctx, teamID)
	if err != nil || cfg == nil || !cfg.IsEnabled {
		if err != nil {
			o.opts.Audit.Event("evidence_collection_config_error", map[string]any{
				"team_id": teamID, "error": err.Error(),
			})
			o.opts.Logger.Warn("evidence collection degraded: config load failed",
				zap.String("team_id", teamID), zap.Error(err))
		}
		return nil
	}
	o.opts.Audit.Event("evidence_collection_config_loaded", map[string]any{
		"team_id": teamID, "storage_type": cfg.StorageType,
	})

	if o.opts.CredentialVault == nil {
		o.opts.Audit.Event("evidence_collection_config_error", map[string]any{
			"team_id": teamID, "error": "credential vault not configured",
		})
		return nil
	}

	creds, err := o.opts.CredentialVault.DecryptCredentials(cfg.CredentialsEncrypted, cfg.StorageType)
	if err != nil {
		o.opts.Audit.Event("evidence_collection_config_error", map[string]any{
			"team_id": teamID, "error": err.Error(),
		})
		o.opts.Logger.Warn("evidence collection degraded: credential decrypt failed",
			zap.String("team_id", teamID), zap.Error(err))
		return nil
	}

	collector, err := o.opts.NewCollector(ctx, cfg.StorageType, creds)
	if err != nil {
		o.opts.Audit.Event("evidence_collector_creation_failed", map[string]any{
			"team_id": teamID, "storage_type": cfg.StorageType, "error": err.Error(),
		})
		o.opts.Logger.Warn("evidence collection degraded: collector creation failed",
			zap.String("team_id", teamID), zap.Error(err))
		return nil
	}

	o.opts.Audit.Event("evidence_collector_created", map[string]any{
		"team_id": teamID, "storage_type": cfg.StorageType,
	})
	return collector
}

// publishProgress writes a progress update, logging rather than failing on
// error: progress is advisory.
func (o *Orchestrator) publishProgress(ctx context.Context, evaluationID string, p evaltypes.Progress) {
	p.EvaluationID = evaluationID
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if err := o.opts.Progress.Publish(ctx, p); err != nil {
		o.opts.Logger.Warn("progress publish failed",
			zap.String("evaluation_id", evaluationID), zap.Error(err))
	}
}
