package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/chatwire-ai/chatwire/internal/config"
	"github.com/chatwire-ai/chatwire/internal/logging"
)

// Registry manages all available providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	config    *config.Config
}

// NewRegistry creates a new provider registry.
func NewRegistry(cfg *config.Config) *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		config:    cfg,
	}
}

// Register adds a provider to the registry.
func (r *Registry) Register(provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider.ID()] = provider
}

// Get retrieves a provider by ID.
func (r *Registry) Get(providerID string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, ok := r.providers[providerID]
	if !ok {
		return nil, fmt.Errorf("provider not found: %s", providerID)
	}
	return provider, nil
}

// List returns all available providers.
func (r *Registry) List() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		providers = append(providers, p)
	}
	return providers
}

// GetModel retrieves a specific model from a provider.
func (r *Registry) GetModel(providerID, modelID string) (*Model, error) {
	provider, err := r.Get(providerID)
	if err != nil {
		return nil, err
	}

	for _, model := range provider.Models() {
		if model.ID == modelID {
			return &model, nil
		}
	}

	return nil, fmt.Errorf("model not found: %s/%s", providerID, modelID)
}

// AllModels returns all models from all providers.
func (r *Registry) AllModels() []Model {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var models []Model
	for _, p := range r.providers {
		models = append(models, p.Models()...)
	}

	// Sort by quality/priority
	sort.Slice(models, func(i, j int) bool {
		return modelPriority(models[i].ID) > modelPriority(models[j].ID)
	})

	return models
}

// DefaultModel returns the default model.
func (r *Registry) DefaultModel() (*Model, error) {
	if r.config != nil && r.config.Model != "" {
		providerID, modelID := ParseModelString(r.config.Model)
		return r.GetModel(providerID, modelID)
	}

	// Default to Claude Sonnet if available
	model, err := r.GetModel("anthropic", "claude-sonnet-4-20250514")
	if err == nil {
		return model, nil
	}

	// Fall back to first available model
	models := r.AllModels()
	if len(models) == 0 {
		return nil, fmt.Errorf("no models available")
	}
	return &models[0], nil
}

// ParseModelString parses "provider/model" format.
func ParseModelString(s string) (providerID, modelID string) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return "", s
}

// modelPriority returns sorting priority for models.
func modelPriority(modelID string) int {
	switch {
	case strings.Contains(modelID, "gpt-5"):
		return 100
	case strings.Contains(modelID, "claude-sonnet-4"):
		return 90
	case strings.Contains(modelID, "claude-opus"):
		return 85
	case strings.Contains(modelID, "gpt-4o"):
		return 80
	case strings.Contains(modelID, "claude-3-5"):
		return 75
	case strings.Contains(modelID, "gemini-2"):
		return 70
	default:
		return 50
	}
}

// providerKind maps a configured provider name to a constructor family.
// Names not recognized here are skipped during initialization.
func providerKind(name string) string {
	switch strings.ToLower(name) {
	case "anthropic", "claude":
		return "anthropic"
	case "openai", "azure", "qwen", "ollama":
		return "openai"
	case "ark", "volcengine":
		return "ark"
	default:
		return ""
	}
}

// InitializeProviders creates and registers all providers from config.
// A provider entry without an API key is skipped, as is one whose name
// maps to no known constructor. Initialization failures are logged and
// do not prevent the remaining providers from registering.
func InitializeProviders(ctx context.Context, cfg *config.Config) (*Registry, error) {
	registry := NewRegistry(cfg)

	for name, pc := range cfg.Provider {
		if pc.APIKey == "" {
			continue
		}

		var p Provider
		var err error

		switch providerKind(name) {
		case "anthropic":
			p, err = NewAnthropicProvider(ctx, &AnthropicConfig{
				ID:        name,
				APIKey:    pc.APIKey,
				BaseURL:   pc.BaseURL,
				Model:     pc.Model,
				MaxTokens: 8192,
			})
		case "openai":
			p, err = NewOpenAIProvider(ctx, &OpenAIConfig{
				ID:        name,
				APIKey:    pc.APIKey,
				BaseURL:   pc.BaseURL,
				Model:     pc.Model,
				MaxTokens: 4096,
				UseAzure:  strings.EqualFold(name, "azure"),
			})
		case "ark":
			p, err = NewArkProvider(ctx, &ArkConfig{
				APIKey:    pc.APIKey,
				BaseURL:   pc.BaseURL,
				Model:     pc.Model,
				MaxTokens: 4096,
			})
		default:
			logging.Warn().Str("provider", name).Msg("unknown provider in config, skipping")
			continue
		}

		if err != nil {
			logging.Warn().Str("provider", name).Err(err).Msg("provider initialization failed")
			continue
		}
		registry.Register(p)
	}

	return registry, nil
}
