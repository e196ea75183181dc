package orchestrator

import (
	"context"
	"crypto/rsa"

	"github.com/biaslens/evalcore/apperr"
	"github.com/biaslens/evalcore/canon"
	"github.com/biaslens/evalcore/evaltypes"
)

// VerifyRequest is the verification endpoint's input: either a stored pack
// id or inline pack content.
type VerifyRequest struct {
	ReproPackID string `json:"reproPackId,omitempty"`

	PackContent      map[string]any `json:"packContent,omitempty"`
	Signature        string         `json:"signature,omitempty"`
	ExpectedHash     string         `json:"expectedHash,omitempty"`
	SigningAuthority string         `json:"signingAuthority,omitempty"`
}

// VerifyResult is the verification verdict.
type VerifyResult struct {
	Valid              bool           `json:"valid"`
	HashMatches        bool           `json:"hashMatches"`
	SignatureValid     bool           `json:"signatureValid"`
	SigningAuthority   string         `json:"signingAuthority"`
	ExpectedHash       string         `json:"expectedHash"`
	ComputedHash       string         `json:"computedHash"`
	LegacyHash         string         `json:"legacyHash"`
	ReplayInstructions map[string]any `json:"replayInstructions,omitempty"`
	CustomerEvidenceID string         `json:"customerEvidenceId,omitempty"`
}

// VerifyReproPack recomputes a pack's canonical and legacy hashes and checks
// its signature. The public key is resolved from, in order: the pack's
// embedded signing block, the process default for the BiasLens authority,
// and finally the active key stored for the named authority.
func (o *Orchestrator) VerifyReproPack(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	content := req.PackContent
	signature := req.Signature
	expectedHash := req.ExpectedHash
	authority := req.SigningAuthority

	if req.ReproPackID != "" {
		pack, err := o.opts.Store.GetReproPack(ctx, req.ReproPackID)
		if err != nil {
			return nil, err
		}
		content = pack.ReproPackContent
		signature = pack.Signature
		expectedHash = pack.ContentHash
		authority = pack.SigningAuthority
	}

	if content == nil {
		return nil, apperr.New(apperr.KindInput, apperr.CodeInvalidRequest,
			"either reproPackId or packContent is required")
	}

	pub, err := o.resolveVerificationKey(ctx, content, authority)
	if err != nil {
		return nil, err
	}

	res, err := canon.Verify(pub, content, expectedHash, signature)
	if err != nil {
		return nil, apperr.New(apperr.KindInternal, apperr.CodeInternal,
			"failed to canonicalize pack content").WithCause(err)
	}

	out := &VerifyResult{
		Valid:            res.Valid,
		HashMatches:      res.HashMatches,
		SignatureValid:   res.SignatureValid,
		SigningAuthority: authority,
		ExpectedHash:     expectedHash,
		ComputedHash:     res.ComputedHash,
		LegacyHash:       res.LegacyHash,
	}

	if replay, ok := content["replay_instructions"].(map[string]any); ok {
		out.ReplayInstructions = replay
	}
	if evidenceRef, ok := content["evidence_reference_id"].(string); ok {
		out.CustomerEvidenceID = evidenceRef
	}
	return out, nil
}

func (o *Orchestrator) resolveVerificationKey(ctx context.Context, content map[string]any, authority string) (*rsa.PublicKey, error) {
	// Embedded signing block first.
	if signing, ok := content["signing"].(map[string]any); ok {
		if pemStr, ok := signing["public_key"].(string); ok && pemStr != "" {
			if pub, err := canon.ParsePublicKeyPEM(pemStr); err == nil {
				return pub, nil
			}
		}
	}

	// Process default for the BiasLens authority.
	if authority == "" || authority == o.opts.DefaultSigning.Authority ||
		string(evaltypes.SigningModeBiasLens) == authority {
		if o.opts.DefaultSigning.PublicKeyPEM != "" {
			if pub, err := canon.ParsePublicKeyPEM(o.opts.DefaultSigning.PublicKeyPEM); err == nil {
				return pub, nil
			}
		}
	}

	// Stored key for the named authority.
	if authority != "" {
		keyRow, err := o.opts.Store.GetSigningKeyByAuthority(ctx, authority)
		if err != nil {
			return nil, err
		}
		pub, err := canon.ParsePublicKeyPEM(keyRow.PublicKeyPEM)
		if err != nil {
			return nil, apperr.New(apperr.KindConfig, apperr.CodeSigningKeyMissing,
				"stored public key is not valid SPKI PEM").WithCause(err)
		}
		return pub, nil
	}

	return nil, apperr.New(apperr.KindConfig, apperr.CodeSigningKeyMissing,
		"no public key available to verify this pack")
}
