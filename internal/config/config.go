package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/tidwall/jsonc"
)

// Config is the merged chatwire configuration.
type Config struct {
	Schema string `json:"$schema,omitempty"`

	// Endpoint is the chat endpoint URL the client talks to.
	Endpoint string `json:"endpoint,omitempty"`
	// Mode selects the response framing: "data" (the multiplexed line
	// protocol, default) or "text" (plain text deltas).
	Mode string `json:"mode,omitempty"`
	// Model is the server-side model in provider/model form.
	Model string `json:"model,omitempty"`

	// MaxSteps caps automatic tool-call continuations per user turn.
	MaxSteps int `json:"maxSteps,omitempty"`
	// Throttle is the client pacing interval in milliseconds. Zero means
	// the built-in default; negative disables pacing.
	Throttle int `json:"throttle,omitempty"`
	// KeepLastMessageOnError skips the optimistic-append rollback.
	KeepLastMessageOnError *bool `json:"keepLastMessageOnError,omitempty"`

	// Headers are added to every chat request.
	Headers map[string]string `json:"headers,omitempty"`

	Provider map[string]ProviderConfig `json:"provider,omitempty"`

	// Tools enables or disables server-side tools by glob pattern, e.g.
	// {"web*": true, "time": false}.
	Tools map[string]bool `json:"tools,omitempty"`

	MCP map[string]MCPConfig `json:"mcp,omitempty"`

	// Storage overrides the session storage directory.
	Storage string `json:"storage,omitempty"`

	Log LogConfig `json:"log,omitempty"`
}

// ProviderConfig holds per-provider credentials and endpoints.
type ProviderConfig struct {
	APIKey  string `json:"apiKey,omitempty"`
	BaseURL string `json:"baseURL,omitempty"`
	Model   string `json:"model,omitempty"`

	// Options mirrors the TypeScript config layout; normalized into the
	// direct fields after loading.
	Options *ProviderOptions `json:"options,omitempty"`
}

// ProviderOptions is the nested TypeScript-compatible form.
type ProviderOptions struct {
	APIKey  string `json:"apiKey,omitempty"`
	BaseURL string `json:"baseURL,omitempty"`
}

// MCPConfig describes one MCP server to source tools from.
type MCPConfig struct {
	Type        string            `json:"type,omitempty"` // local or remote
	Command     []string          `json:"command,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
	URL         string            `json:"url,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Enabled     *bool             `json:"enabled,omitempty"`
	Timeout     int               `json:"timeout,omitempty"`
}

// LogConfig controls the logger.
type LogConfig struct {
	Level  string `json:"level,omitempty"`
	Format string `json:"format,omitempty"` // pretty or json
}

// Load loads configuration from multiple sources (priority order):
// 1. Global config (~/.chatwire/)
// 2. Global config (~/.config/chatwire/ - XDG compatible)
// 3. Project config (chatwire.json[c] or .chatwire/ in the directory)
// 4. CHATWIRE_CONFIG file
// 5. CHATWIRE_CONFIG_CONTENT inline JSON
// 6. Environment variables
//
// A .env file in the directory is loaded first without clobbering the
// existing environment.
func Load(directory string) (*Config, error) {
	loadDotEnv(directory)

	config := &Config{
		Provider: make(map[string]ProviderConfig),
	}

	// Track loaded files to avoid duplicates
	loaded := make(map[string]bool)

	loadOnce := func(path string, baseDir string) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return
		}
		if loaded[absPath] {
			return
		}
		if loadConfigFile(path, config, baseDir) == nil {
			loaded[absPath] = true
		}
	}

	// 1. Home-dot global config (~/.chatwire/)
	home := os.Getenv("HOME")
	if home != "" {
		dotDir := filepath.Join(home, ".chatwire")
		loadOnce(filepath.Join(dotDir, "chatwire.json"), dotDir)
		loadOnce(filepath.Join(dotDir, "chatwire.jsonc"), dotDir)
	}

	// 2. XDG-compatible global config (~/.config/chatwire/)
	globalPath := GetPaths().Config
	loadOnce(filepath.Join(globalPath, "chatwire.json"), globalPath)
	loadOnce(filepath.Join(globalPath, "chatwire.jsonc"), globalPath)

	// 3. Project config
	if directory != "" {
		projectConfigDir := filepath.Join(directory, ".chatwire")
		loadOnce(filepath.Join(directory, "chatwire.json"), directory)
		loadOnce(filepath.Join(directory, "chatwire.jsonc"), directory)
		loadOnce(filepath.Join(projectConfigDir, "chatwire.json"), projectConfigDir)
		loadOnce(filepath.Join(projectConfigDir, "chatwire.jsonc"), projectConfigDir)
	}

	// 4. CHATWIRE_CONFIG file override
	if configPath := os.Getenv("CHATWIRE_CONFIG"); configPath != "" {
		configDir := filepath.Dir(configPath)
		loadOnce(configPath, configDir)
	}

	// 5. CHATWIRE_CONFIG_CONTENT inline JSON
	if configContent := os.Getenv("CHATWIRE_CONFIG_CONTENT"); configContent != "" {
		var inlineConfig Config
		if err := json.Unmarshal([]byte(configContent), &inlineConfig); err == nil {
			mergeConfig(config, &inlineConfig)
		}
	}

	// 6. Environment variables (highest priority)
	applyEnvOverrides(config)

	// Normalize provider config (merge Options into direct fields)
	normalizeProviderConfig(config)

	return config, nil
}

// loadDotEnv loads .env files without overriding the existing environment.
func loadDotEnv(directory string) {
	if directory != "" {
		_ = godotenv.Load(filepath.Join(directory, ".env"))
	}
	_ = godotenv.Load()
}

// loadConfigFile loads a single config file with interpolation support.
func loadConfigFile(path string, config *Config, baseDir string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err // File doesn't exist, skip
	}

	// Strip JSONC comments using tidwall/jsonc
	data = jsonc.ToJSON(data)

	// Apply interpolation
	data = interpolate(data, baseDir)

	var fileConfig Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return err
	}

	mergeConfig(config, &fileConfig)
	return nil
}

// interpolate processes {env:VAR} and {file:path} placeholders.
func interpolate(data []byte, baseDir string) []byte {
	str := string(data)

	// Handle {env:VAR_NAME} placeholders
	envPattern := regexp.MustCompile(`\{env:([^}]+)\}`)
	str = envPattern.ReplaceAllStringFunc(str, func(match string) string {
		varName := envPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})

	// Handle {file:path} placeholders
	filePattern := regexp.MustCompile(`\{file:([^}]+)\}`)
	str = filePattern.ReplaceAllStringFunc(str, func(match string) string {
		filePath := filePattern.FindStringSubmatch(match)[1]

		// Resolve path
		if strings.HasPrefix(filePath, "~/") {
			home := os.Getenv("HOME")
			filePath = filepath.Join(home, filePath[2:])
		} else if !filepath.IsAbs(filePath) {
			filePath = filepath.Join(baseDir, filePath)
		}

		content, err := os.ReadFile(filePath)
		if err != nil {
			return match // Keep original if file not found
		}

		// Escape for JSON string
		escaped := strings.ReplaceAll(string(content), "\\", "\\\\")
		escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
		escaped = strings.ReplaceAll(escaped, "\n", "\\n")
		escaped = strings.ReplaceAll(escaped, "\r", "\\r")
		escaped = strings.ReplaceAll(escaped, "\t", "\\t")

		return escaped
	})

	return []byte(str)
}

// normalizeProviderConfig merges Options fields into direct fields for
// TypeScript-config compatibility.
func normalizeProviderConfig(config *Config) {
	for name, provider := range config.Provider {
		if provider.Options != nil {
			// Options take precedence over direct fields
			if provider.Options.APIKey != "" {
				provider.APIKey = provider.Options.APIKey
			}
			if provider.Options.BaseURL != "" {
				provider.BaseURL = provider.Options.BaseURL
			}
		}
		config.Provider[name] = provider
	}
}

// mergeConfig merges source config into target.
func mergeConfig(target, source *Config) {
	if source.Schema != "" {
		target.Schema = source.Schema
	}
	if source.Endpoint != "" {
		target.Endpoint = source.Endpoint
	}
	if source.Mode != "" {
		target.Mode = source.Mode
	}
	if source.Model != "" {
		target.Model = source.Model
	}
	if source.MaxSteps != 0 {
		target.MaxSteps = source.MaxSteps
	}
	if source.Throttle != 0 {
		target.Throttle = source.Throttle
	}
	if source.KeepLastMessageOnError != nil {
		target.KeepLastMessageOnError = source.KeepLastMessageOnError
	}
	if source.Storage != "" {
		target.Storage = source.Storage
	}
	if source.Log.Level != "" {
		target.Log.Level = source.Log.Level
	}
	if source.Log.Format != "" {
		target.Log.Format = source.Log.Format
	}

	// Merge headers
	if source.Headers != nil {
		if target.Headers == nil {
			target.Headers = make(map[string]string)
		}
		for k, v := range source.Headers {
			target.Headers[k] = v
		}
	}

	// Merge tool globs
	if source.Tools != nil {
		if target.Tools == nil {
			target.Tools = make(map[string]bool)
		}
		for k, v := range source.Tools {
			target.Tools[k] = v
		}
	}

	// Merge providers
	if source.Provider != nil {
		if target.Provider == nil {
			target.Provider = make(map[string]ProviderConfig)
		}
		for k, v := range source.Provider {
			target.Provider[k] = v
		}
	}

	// Merge MCP
	if source.MCP != nil {
		if target.MCP == nil {
			target.MCP = make(map[string]MCPConfig)
		}
		for k, v := range source.MCP {
			target.MCP[k] = v
		}
	}
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(config *Config) {
	// Provider API keys
	providerEnvMap := map[string]string{
		"anthropic": "ANTHROPIC_API_KEY",
		"openai":    "OPENAI_API_KEY",
		"ark":       "ARK_API_KEY",
	}

	for provider, envVar := range providerEnvMap {
		if apiKey := os.Getenv(envVar); apiKey != "" {
			if config.Provider == nil {
				config.Provider = make(map[string]ProviderConfig)
			}
			p := config.Provider[provider]
			if p.APIKey == "" {
				p.APIKey = apiKey
				config.Provider[provider] = p
			}
		}
	}

	if endpoint := os.Getenv("CHATWIRE_ENDPOINT"); endpoint != "" {
		config.Endpoint = endpoint
	}
	if model := os.Getenv("CHATWIRE_MODEL"); model != "" {
		config.Model = model
	}
	if mode := os.Getenv("CHATWIRE_MODE"); mode != "" {
		config.Mode = mode
	}
}

// Save saves the configuration to a file.
func Save(config *Config, path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// GetConfigDir returns the config directory to use.
// Prefers CHATWIRE_CONFIG_DIR, then ~/.chatwire, then ~/.config/chatwire.
func GetConfigDir() string {
	// Check environment variable first
	if dir := os.Getenv("CHATWIRE_CONFIG_DIR"); dir != "" {
		return dir
	}

	// Check for home-dot location
	home := os.Getenv("HOME")
	if home != "" {
		dotDir := filepath.Join(home, ".chatwire")
		if _, err := os.Stat(dotDir); err == nil {
			return dotDir
		}
	}

	// Fall back to XDG location
	return GetPaths().Config
}
