package llmclient

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/biaslens/evalcore/evaltypes"
	"github.com/biaslens/evalcore/provider"
)

// bedrockClient calls AWS Bedrock's Converse API.
type bedrockClient struct {
	client *bedrockruntime.Client
	model  string
}

func newBedrockClient(cfg Config) (*bedrockClient, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if cfg.APIKey != "" {
		// Stored credentials come through as "accessKeyID:secretAccessKey".
		id, secret, ok := splitAWSKey(cfg.APIKey)
		if ok {
			loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(id, secret, "")))
		}
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOpts...)
	if err != nil {
		return nil, err
	}

	return &bedrockClient{
		client: bedrockruntime.NewFromConfig(awsCfg),
		model:  cfg.Model,
	}, nil
}

func splitAWSKey(combined string) (string, string, bool) {
	for i := 0; i < len(combined); i++ {
		if combined[i] == ':' {
			return combined[:i], combined[i+1:], true
		}
	}
	return "", "", false
}

func (c *bedrockClient) Provider() string { return "bedrock" }

func (c *bedrockClient) Model() string { return c.model }

func (c *bedrockClient) Generate(ctx context.Context, prompt string, params evaltypes.Parameters) (string, error) {
	out, err := c.client.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(c.model),
		Messages: []brtypes.Message{
			{
				Role: brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: prompt},
				},
			},
		},
		InferenceConfig: &brtypes.InferenceConfiguration{
			MaxTokens:   aws.Int32(int32(params.MaxTokens)),
			Temperature: aws.Float32(float32(params.Temperature)),
			TopP:        aws.Float32(float32(params.TopP)),
		},
	})
	if err != nil {
		return "", translateBedrockErr(err)
	}

	msg, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return "", emptyOutputErr("bedrock")
	}
	for _, block := range msg.Value.Content {
		if text, ok := block.(*brtypes.ContentBlockMemberText); ok && text.Value != "" {
			return text.Value, nil
		}
	}
	return "", emptyOutputErr("bedrock")
}

func translateBedrockErr(err error) error {
	var throttled *brtypes.ThrottlingException
	if errors.As(err, &throttled) {
		return &provider.CallError{Status: 429, Message: throttled.ErrorMessage()}
	}
	return err
}
