// Package llmclient provides the typed model-invocation clients the
// detectors call through the scheduler: Anthropic, AWS Bedrock, any
// OpenAI-compatible endpoint, and a deterministic in-process simulator used
// when no real client is configured.
package llmclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/biaslens/evalcore/apperr"
	"github.com/biaslens/evalcore/evaltypes"
)

// Client invokes one model endpoint. Implementations are safe for use by a
// single evaluation task; cross-task pacing is the scheduler's job.
type Client interface {
	// Provider returns the provider id used for capability and policy lookup.
	Provider() string

	// Model returns the model name recorded in the repro pack.
	Model() string

	// Generate produces one completion for the prompt under the given
	// decoding parameters. Rate-limit failures are returned as
	// *provider.CallError with status 429 so the scheduler can back off.
	Generate(ctx context.Context, prompt string, params evaltypes.Parameters) (string, error)
}

// Config describes a stored LLM configuration row after credential
// decryption.
type Config struct {
	ID       string
	TeamID   string
	Provider string
	Model    string
	APIKey   string
	Endpoint string
	Region   string
}

// New constructs a typed client for the configured provider.
func New(cfg Config) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "anthropic":
		return newAnthropicClient(cfg)
	case "bedrock":
		return newBedrockClient(cfg)
	case "openai", "azure-openai", "ollama", "openai-compatible":
		return newOpenAICompatClient(cfg)
	case "simulator", "":
		return NewSimulator(cfg.Model, 0), nil
	default:
		return nil, apperr.Newf(apperr.KindProvider, apperr.CodeModelCallFailed,
			"no client implementation for provider %q", cfg.Provider)
	}
}

func emptyOutputErr(provider string) error {
	return apperr.New(apperr.KindProvider, apperr.CodeModelCallFailed,
		fmt.Sprintf("%s returned an empty completion", provider))
}
