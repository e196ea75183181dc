package llmclient

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/biaslens/evalcore/evaltypes"
	"github.com/biaslens/evalcore/provider"
)

// anthropicClient calls the Anthropic Messages API.
type anthropicClient struct {
	client anthropic.Client
	model  string
}

func newAnthropicClient(cfg Config) (*anthropicClient, error) {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}
	return &anthropicClient{
		client: anthropic.NewClient(opts...),
		model:  cfg.Model,
	}, nil
}

func (c *anthropicClient) Provider() string { return "anthropic" }

func (c *anthropicClient) Model() string { return c.model }

func (c *anthropicClient) Generate(ctx context.Context, prompt string, params evaltypes.Parameters) (string, error) {
	req := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(params.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		Temperature: anthropic.Float(params.Temperature),
		TopP:        anthropic.Float(params.TopP),
	}
	if params.TopK != nil {
		req.TopK = anthropic.Int(int64(*params.TopK))
	}

	msg, err := c.client.Messages.New(ctx, req)
	if err != nil {
		return "", translateAnthropicErr(err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		b.WriteString(block.Text)
	}
	if b.Len() == 0 {
		return "", emptyOutputErr("anthropic")
	}
	return b.String(), nil
}

func translateAnthropicErr(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 429 {
			return &provider.CallError{Status: 429, Message: apiErr.Error()}
		}
		return &provider.CallError{Status: apiErr.StatusCode, Message: apiErr.Error()}
	}
	return err
}
