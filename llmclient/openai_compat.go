package llmclient

import (
	"context"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/biaslens/evalcore/evaltypes"
	"github.com/biaslens/evalcore/provider"
)

// openAICompatClient talks to any endpoint speaking the OpenAI chat API,
// including Azure OpenAI deployments and local Ollama gateways.
type openAICompatClient struct {
	llm      *openai.LLM
	provider string
	model    string
}

func newOpenAICompatClient(cfg Config) (*openAICompatClient, error) {
	opts := []openai.Option{
		openai.WithModel(cfg.Model),
	}
	if cfg.APIKey != "" {
		opts = append(opts, openai.WithToken(cfg.APIKey))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, openai.WithBaseURL(cfg.Endpoint))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}

	providerID := strings.ToLower(cfg.Provider)
	if providerID == "openai-compatible" {
		providerID = "openai"
	}
	return &openAICompatClient{llm: llm, provider: providerID, model: cfg.Model}, nil
}

func (c *openAICompatClient) Provider() string { return c.provider }

func (c *openAICompatClient) Model() string { return c.model }

func (c *openAICompatClient) Generate(ctx context.Context, prompt string, params evaltypes.Parameters) (string, error) {
	callOpts := []llms.CallOption{
		llms.WithTemperature(params.Temperature),
		llms.WithTopP(params.TopP),
		llms.WithMaxTokens(params.MaxTokens),
	}
	if params.TopK != nil {
		callOpts = append(callOpts, llms.WithTopK(*params.TopK))
	}
	if params.Seed != nil {
		callOpts = append(callOpts, llms.WithSeed(int(*params.Seed)))
	}

	out, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt, callOpts...)
	if err != nil {
		if isRateLimitMessage(err.Error()) {
			return "", &provider.CallError{Status: 429, Message: err.Error()}
		}
		return "", err
	}
	if out == "" {
		return "", emptyOutputErr(c.provider)
	}
	return out, nil
}

func isRateLimitMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "429") ||
		strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "too many requests")
}
