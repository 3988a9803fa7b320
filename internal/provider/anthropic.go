package provider

import (
	"context"
	"fmt"
	"os"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino/components/model"
)

const defaultAnthropicModel = "claude-sonnet-4-20250514"

// AnthropicProvider serves Anthropic Claude models, either through the
// public API or through AWS Bedrock.
type AnthropicProvider struct {
	llm     model.ToolCallingChatModel
	catalog []Model
	cfg     *AnthropicConfig
}

// AnthropicConfig configures the Anthropic provider.
type AnthropicConfig struct {
	// ID overrides the provider identifier so aliases like "claude"
	// can coexist with "anthropic" in one registry.
	ID        string
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int

	// Thinking enables extended thinking with the given token budget.
	Thinking *claude.Thinking

	// UseBedrock routes through AWS Bedrock; Region and Profile pick
	// the AWS credentials.
	UseBedrock bool
	Region     string
	Profile    string
}

// NewAnthropicProvider builds a provider from cfg, reading
// ANTHROPIC_API_KEY when the config leaves the key blank. Under Bedrock
// the AWS credential chain applies and no key is required.
func NewAnthropicProvider(ctx context.Context, cfg *AnthropicConfig) (*AnthropicProvider, error) {
	apiKey := firstOf(cfg.APIKey, os.Getenv("ANTHROPIC_API_KEY"))
	if apiKey == "" && !cfg.UseBedrock {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
	}

	modelID := firstOf(cfg.Model, defaultAnthropicModel)

	var llm model.ToolCallingChatModel
	var err error

	if cfg.UseBedrock {
		// Bedrock names the same models with a vendor prefix and
		// revision suffix.
		llm, err = claude.NewChatModel(ctx, &claude.Config{
			ByBedrock: true,
			Region:    cfg.Region,
			Profile:   cfg.Profile,
			Model:     "anthropic." + modelID + "-v1:0",
			MaxTokens: cfg.MaxTokens,
			Thinking:  cfg.Thinking,
		})
	} else {
		cc := &claude.Config{
			APIKey:    apiKey,
			Model:     modelID,
			MaxTokens: cfg.MaxTokens,
			Thinking:  cfg.Thinking,
		}
		if cfg.BaseURL != "" {
			cc.BaseURL = &cfg.BaseURL
		}
		llm, err = claude.NewChatModel(ctx, cc)
	}

	if err != nil {
		return nil, fmt.Errorf("create Claude model: %w", err)
	}

	return &AnthropicProvider{llm: llm, catalog: anthropicCatalog(), cfg: cfg}, nil
}

// ID returns the configured identifier, or "anthropic".
func (p *AnthropicProvider) ID() string { return firstOf(p.cfg.ID, "anthropic") }

// Name returns the human-readable provider name.
func (p *AnthropicProvider) Name() string { return "Anthropic" }

// Models returns the advertised model catalog.
func (p *AnthropicProvider) Models() []Model { return p.catalog }

// ChatModel returns the underlying Eino model.
func (p *AnthropicProvider) ChatModel() model.ToolCallingChatModel { return p.llm }

// CreateCompletion opens a streaming completion.
func (p *AnthropicProvider) CreateCompletion(ctx context.Context, req *CompletionRequest) (*CompletionStream, error) {
	return bindAndStream(ctx, p.llm, req, model.WithMaxTokens(req.MaxTokens))
}

// anthropicCatalog lists the models the provider advertises. Prices are
// dollars per million tokens. Kept as literals rather than a table
// because caching and output options vary per model.
func anthropicCatalog() []Model {
	return []Model{
		{
			ID:              "claude-sonnet-4-20250514",
			Name:            "Claude Sonnet 4",
			ProviderID:      "anthropic",
			ContextLength:   200000,
			MaxOutputTokens: 64000,
			SupportsTools:   true,
			SupportsVision:  true,
			InputPrice:      3.0,
			OutputPrice:     15.0,
			Options: ModelOptions{
				PromptCaching:  true,
				ExtendedOutput: true,
			},
		},
		{
			ID:                "claude-opus-4-20250514",
			Name:              "Claude Opus 4",
			ProviderID:        "anthropic",
			ContextLength:     200000,
			MaxOutputTokens:   32000,
			SupportsTools:     true,
			SupportsVision:    true,
			SupportsReasoning: true,
			InputPrice:        15.0,
			OutputPrice:       75.0,
			Options: ModelOptions{
				PromptCaching: true,
			},
		},
		{
			ID:              "claude-3-5-sonnet-20241022",
			Name:            "Claude 3.5 Sonnet",
			ProviderID:      "anthropic",
			ContextLength:   200000,
			MaxOutputTokens: 8192,
			SupportsTools:   true,
			SupportsVision:  true,
			InputPrice:      3.0,
			OutputPrice:     15.0,
			Options: ModelOptions{
				PromptCaching: true,
			},
		},
		{
			ID:              "claude-3-5-haiku-20241022",
			Name:            "Claude 3.5 Haiku",
			ProviderID:      "anthropic",
			ContextLength:   200000,
			MaxOutputTokens: 8192,
			SupportsTools:   true,
			SupportsVision:  true,
			InputPrice:      0.8,
			OutputPrice:     4.0,
		},
		{
			ID:              "claude-haiku-4-5-20251001",
			Name:            "Claude 4.5 Haiku",
			ProviderID:      "anthropic",
			ContextLength:   200000,
			MaxOutputTokens: 8192,
			SupportsTools:   true,
			SupportsVision:  true,
			InputPrice:      0.8,
			OutputPrice:     4.0,
		},
		// Dateless alias for the current 4.5 Haiku revision.
		{
			ID:              "claude-haiku-4-5",
			Name:            "Claude 4.5 Haiku",
			ProviderID:      "anthropic",
			ContextLength:   200000,
			MaxOutputTokens: 8192,
			SupportsTools:   true,
			SupportsVision:  true,
			InputPrice:      0.8,
			OutputPrice:     4.0,
		},
	}
}
