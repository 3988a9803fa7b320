package provider

import (
	"context"
	"fmt"
	"os"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

const (
	defaultOpenAIModel  = "gpt-4o"
	defaultAzureVersion = "2024-02-15-preview"
)

// OpenAIProvider serves the OpenAI chat API and compatible endpoints.
// With UseAzure set it targets Azure OpenAI Service instead; pointing
// BaseURL at Ollama or another compatible server works the same way.
type OpenAIProvider struct {
	llm     model.ToolCallingChatModel
	catalog []Model
	cfg     *OpenAIConfig
}

// OpenAIConfig configures an OpenAI-compatible provider.
type OpenAIConfig struct {
	// ID overrides the provider identifier so several compatible
	// entries ("openai", "qwen", "ollama") can coexist in one registry.
	ID        string
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int

	// UseAzure switches to Azure OpenAI Service. APIVersion applies
	// only there.
	UseAzure   bool
	APIVersion string
}

// NewOpenAIProvider builds a provider from cfg, reading OPENAI_API_KEY
// (AZURE_OPENAI_API_KEY under Azure) and OPENAI_MODEL_ID for anything
// left blank.
func NewOpenAIProvider(ctx context.Context, cfg *OpenAIConfig) (*OpenAIProvider, error) {
	keyEnv := "OPENAI_API_KEY"
	if cfg.UseAzure {
		keyEnv = "AZURE_OPENAI_API_KEY"
	}
	apiKey := firstOf(cfg.APIKey, os.Getenv(keyEnv))
	if apiKey == "" {
		return nil, fmt.Errorf("%s not set", keyEnv)
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	mc := &openai.ChatModelConfig{
		APIKey:  apiKey,
		BaseURL: cfg.BaseURL,
		Model:   firstOf(cfg.Model, os.Getenv("OPENAI_MODEL_ID"), defaultOpenAIModel),
		// The GPT-5 family rejects max_tokens; the completion-token
		// cap is accepted across the lineup.
		MaxCompletionTokens: &maxTokens,
	}
	if cfg.UseAzure {
		mc.ByAzure = true
		mc.APIVersion = firstOf(cfg.APIVersion, defaultAzureVersion)
	}

	llm, err := openai.NewChatModel(ctx, mc)
	if err != nil {
		return nil, fmt.Errorf("create OpenAI model: %w", err)
	}

	return &OpenAIProvider{llm: llm, catalog: openAICatalog(), cfg: cfg}, nil
}

// ID returns the configured identifier, or "openai".
func (p *OpenAIProvider) ID() string { return firstOf(p.cfg.ID, "openai") }

// Name returns the human-readable provider name.
func (p *OpenAIProvider) Name() string { return "OpenAI" }

// Models returns the advertised model catalog.
func (p *OpenAIProvider) Models() []Model { return p.catalog }

// ChatModel returns the underlying Eino model.
func (p *OpenAIProvider) ChatModel() model.ToolCallingChatModel { return p.llm }

// CreateCompletion opens a streaming completion. The token limit rides
// on the completion-token option so newer models accept it.
func (p *OpenAIProvider) CreateCompletion(ctx context.Context, req *CompletionRequest) (*CompletionStream, error) {
	return bindAndStream(ctx, p.llm, req, openai.WithMaxCompletionTokens(req.MaxTokens))
}

// openAICatalog lists the models the provider advertises. Prices are
// dollars per million tokens. The o1 family reasons but takes no images.
func openAICatalog() []Model {
	rows := []struct {
		id, name string
		ctxLen   int
		maxOut   int
		vision   bool
		reason   bool
		in, out  float64
	}{
		{"gpt-5", "GPT-5", 272000, 128000, true, true, 1.25, 10.0},
		{"gpt-5-mini", "GPT-5 Mini", 272000, 128000, true, true, 0.25, 2.0},
		{"gpt-5-nano", "GPT-5 Nano", 272000, 128000, true, false, 0.05, 0.4},
		{"gpt-4o", "GPT-4o", 128000, 16384, true, false, 2.5, 10.0},
		{"gpt-4o-mini", "GPT-4o Mini", 128000, 16384, true, false, 0.15, 0.6},
		{"o1", "O1", 200000, 100000, false, true, 15.0, 60.0},
		{"o1-mini", "O1 Mini", 128000, 65536, false, true, 1.1, 4.4},
	}

	catalog := make([]Model, len(rows))
	for i, r := range rows {
		catalog[i] = Model{
			ID:                r.id,
			Name:              r.name,
			ProviderID:        "openai",
			ContextLength:     r.ctxLen,
			MaxOutputTokens:   r.maxOut,
			SupportsTools:     true,
			SupportsVision:    r.vision,
			SupportsReasoning: r.reason,
			InputPrice:        r.in,
			OutputPrice:       r.out,
		}
	}
	return catalog
}
