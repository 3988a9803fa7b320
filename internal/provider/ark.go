package provider

import (
	"context"
	"fmt"
	"os"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// ArkProvider serves models hosted on Volcengine's ARK platform. ARK
// addresses models by endpoint ID rather than by public model name, so
// the endpoint must come from config or the ARK_MODEL_ID variable.
type ArkProvider struct {
	llm      model.ToolCallingChatModel
	endpoint string
	cfg      *ArkConfig
}

// ArkConfig configures the ARK provider.
type ArkConfig struct {
	APIKey    string
	BaseURL   string
	Model     string // endpoint ID on the ARK console
	MaxTokens int
}

// NewArkProvider builds a provider from cfg, reading ARK_API_KEY,
// ARK_MODEL_ID and ARK_BASE_URL for anything left blank. There is no
// default endpoint; a missing model ID is an error.
func NewArkProvider(ctx context.Context, cfg *ArkConfig) (*ArkProvider, error) {
	apiKey := firstOf(cfg.APIKey, os.Getenv("ARK_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("ARK_API_KEY not set")
	}

	endpoint := firstOf(cfg.Model, os.Getenv("ARK_MODEL_ID"))
	if endpoint == "" {
		return nil, fmt.Errorf("ARK_MODEL_ID not set")
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	llm, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
		APIKey:    apiKey,
		BaseURL:   firstOf(cfg.BaseURL, os.Getenv("ARK_BASE_URL")),
		Model:     endpoint,
		MaxTokens: &maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("create ARK model: %w", err)
	}

	return &ArkProvider{llm: llm, endpoint: endpoint, cfg: cfg}, nil
}

// ID returns the provider identifier.
func (p *ArkProvider) ID() string { return "ark" }

// Name returns the human-readable provider name.
func (p *ArkProvider) Name() string { return "ARK" }

// Models returns a single entry for the configured endpoint. Window
// size and pricing vary per endpoint and are not reported by the API,
// so the entry carries conservative defaults.
func (p *ArkProvider) Models() []Model {
	return []Model{{
		ID:              p.endpoint,
		Name:            "ARK Model",
		ProviderID:      "ark",
		ContextLength:   128000,
		MaxOutputTokens: 4096,
		SupportsTools:   true,
		SupportsVision:  true,
	}}
}

// ChatModel returns the underlying Eino model.
func (p *ArkProvider) ChatModel() model.ToolCallingChatModel { return p.llm }

// CreateCompletion opens a streaming completion against the endpoint.
func (p *ArkProvider) CreateCompletion(ctx context.Context, req *CompletionRequest) (*CompletionStream, error) {
	return bindAndStream(ctx, p.llm, req, model.WithMaxTokens(req.MaxTokens))
}
