// Package llm provides the model integration for ARC: an Anthropic
// API client (direct or through AWS Bedrock), an offline mock for
// keyless environments, and the model-backed handler and summarizer
// built on top of them.
package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/config"
)

// Completer is the minimal text-in/text-out surface the handler and
// summarizer need. The API client and the offline mock both satisfy it.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ClientConfig contains configuration for creating a new Client.
type ClientConfig struct {
	// Model is a model alias (sonnet, opus, haiku) or a full model ID.
	Model string
	// APIKey is the Anthropic API key. If empty, uses ANTHROPIC_API_KEY.
	APIKey string
	// UseAWSBedrock routes calls through AWS Bedrock instead of the
	// direct API.
	UseAWSBedrock bool
	// AWSRegion is the AWS region for Bedrock (e.g., "us-west-2").
	AWSRegion string
	// AWSProfile is the optional AWS profile name to use.
	AWSProfile string
}

// Client wraps the Anthropic SDK client.
type Client struct {
	inner anthropic.Client
	model anthropic.Model
}

// NewClient creates a new Anthropic API client.
func NewClient(cfg ClientConfig) (*Client, error) {
	var opts []option.RequestOption

	if cfg.UseAWSBedrock {
		ctx := context.Background()

		var loadOpts []func(*config.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, config.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.AWSProfile))
		}

		opts = append(opts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
	} else {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
		}
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	inner := anthropic.NewClient(opts...)

	model := resolveModel(cfg.Model)
	if cfg.UseAWSBedrock {
		model = translateModelForBedrock(model)
	}

	return &Client{inner: inner, model: model}, nil
}

// resolveModel maps friendly aliases to full model IDs.
func resolveModel(model string) anthropic.Model {
	switch strings.ToLower(model) {
	case "", "sonnet":
		return anthropic.ModelClaudeSonnet4_20250514
	case "opus":
		return anthropic.ModelClaudeOpus4_1_20250805
	case "haiku":
		return anthropic.ModelClaude3_5Haiku20241022
	default:
		return anthropic.Model(model)
	}
}

// translateModelForBedrock converts standard Anthropic model names to
// Bedrock cross-region inference profile format.
func translateModelForBedrock(model anthropic.Model) anthropic.Model {
	bedrockModels := map[anthropic.Model]string{
		anthropic.ModelClaudeSonnet4_20250514:  "us.anthropic.claude-sonnet-4-20250514-v1:0",
		anthropic.ModelClaudeOpus4_1_20250805:  "us.anthropic.claude-opus-4-1-20250805-v1:0",
		anthropic.ModelClaude3_5Haiku20241022:  "us.anthropic.claude-3-5-haiku-20241022-v1:0",
		anthropic.ModelClaude3_7Sonnet20250219: "us.anthropic.claude-3-7-sonnet-20250219-v1:0",
	}

	if bedrockModel, ok := bedrockModels[model]; ok {
		return anthropic.Model(bedrockModel)
	}
	return model
}

// Model returns the configured model name.
func (c *Client) Model() anthropic.Model {
	return c.model
}

// Complete executes a prompt and returns the text response.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 8192,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	resp, err := c.inner.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("API call failed: %w", err)
	}

	var result strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			result.WriteString(variant.Text)
		}
	}
	return result.String(), nil
}
