package orchestrator

import (
	"context"
	"time"

	"github.com/biaslens/evalcore/apperr"
	"github.com/biaslens/evalcore/canon"
	"github.com/biaslens/evalcore/detect"
	"github.com/biaslens/evalcore/evaltypes"
	"github.com/biaslens/evalcore/repropack"
)

// resolveSigningMaterial picks the signing key for one pack: the customer
// pair when the team's signing config says so, else the process default.
// A customer mode without an active key fails hard.
func (o *Orchestrator) resolveSigningMaterial(ctx context.Context, teamID string) (repropack.SigningMaterial, error) {
	teamCfg, err := o.opts.Store.GetTeamSigningConfig(ctx, teamID)
	if err != nil {
		return repropack.SigningMaterial{}, err
	}

	if teamCfg != nil && teamCfg.SigningMode == string(evaltypes.SigningModeCustomer) {
		keyRow, err := o.opts.Store.GetActiveSigningKey(ctx, teamID)
		if err != nil {
			return repropack.SigningMaterial{}, err
		}
		if o.opts.SigningVault == nil {
			return repropack.SigningMaterial{}, apperr.New(apperr.KindConfig, apperr.CodeSigningKeyMissing,
				"signing vault not configured for customer keys")
		}
		pemBytes, err := o.opts.SigningVault.Decrypt(keyRow.PrivateKeyEncrypted)
		if err != nil {
			return repropack.SigningMaterial{}, apperr.New(apperr.KindConfig, apperr.CodeSigningKeyMissing,
				"failed to decrypt the customer signing key").WithCause(err)
		}
		priv, err := canon.ParsePrivateKeyPEM(string(pemBytes))
		if err != nil {
			return repropack.SigningMaterial{}, apperr.New(apperr.KindConfig, apperr.CodeSigningKeyMissing,
				"customer signing key is not a valid PKCS#8 RSA key").WithCause(err)
		}
		return repropack.SigningMaterial{
			Mode:         evaltypes.SigningModeCustomer,
			Authority:    keyRow.Authority,
			KeyID:        keyRow.ID,
			PrivateKey:   priv,
			PublicKeyPEM: keyRow.PublicKeyPEM,
		}, nil
	}

	if o.opts.DefaultSigning.PrivateKey == nil {
		return repropack.SigningMaterial{}, apperr.New(apperr.KindConfig, apperr.CodeSigningKeyMissing,
			"no default signing key configured")
	}
	return o.opts.DefaultSigning, nil
}

// buildAndStorePack resolves signing material, builds and signs the repro
// pack, and inserts the record. A missing signing key is fatal: the caller
// marks the evaluation failed.
func (o *Orchestrator) buildAndStorePack(ctx context.Context, plan *runPlan, startedAt, aggregatedAt, completedAt time.Time, capture *detect.CaptureBuffer, shipped shipOutcome) error {
	ev := plan.evaluation

	signing, err := o.resolveSigningMaterial(ctx, ev.TeamID)
	if err != nil {
		return err
	}

	signStart := time.Now()
	pack, err := repropack.Build(repropack.BuildInput{
		Evaluation:          ev,
		StartedAt:           startedAt,
		AggregatedAt:        aggregatedAt,
		CompletedAt:         completedAt,
		Iterations:          capture.Iterations,
		Provider:            plan.providerID,
		ModelName:           plan.modelName,
		EvidenceReferenceID: ev.EvidenceReferenceID,
		EvidenceStorageType: ev.EvidenceStorageType,
		Signing:             signing,
	})
	if err != nil {
		return err
	}
	if o.opts.Metrics != nil {
		o.opts.Metrics.SignLatency.Observe(time.Since(signStart).Seconds())
	}

	return o.opts.Store.InsertReproPack(ctx, pack)
}
