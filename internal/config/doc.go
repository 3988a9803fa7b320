// Package config provides configuration loading, merging, and path management for chatwire.
//
// This package handles the configuration system that supports multiple sources
// and formats, with a hierarchical loading strategy that ensures proper
// precedence across global, project, and environment sources.
//
// # Configuration Loading
//
// The Load function searches for and merges configuration from multiple
// sources in priority order:
//
//  1. Global config (~/.chatwire/)
//  2. Global config (~/.config/chatwire/ - XDG compatible)
//  3. Project config (chatwire.json/chatwire.jsonc in the working directory
//     and .chatwire/chatwire.json/.chatwire/chatwire.jsonc)
//  4. CHATWIRE_CONFIG file
//  5. CHATWIRE_CONFIG_CONTENT inline JSON
//  6. Environment variables
//
// More specific configurations override more general ones; environment
// variables have the highest precedence. A .env file in the working directory
// is loaded first (via godotenv) without clobbering the existing environment.
//
// # Supported Formats
//
// The package supports both JSON and JSONC (JSON with Comments) formats:
//   - chatwire.json - Standard JSON configuration
//   - chatwire.jsonc - JSON with comments, processed using tidwall/jsonc
//
// # Variable Interpolation
//
// Configuration files support two types of variable interpolation:
//   - {env:VAR_NAME} - Expands to environment variable values
//   - {file:path} - Expands to file contents (properly escaped for JSON)
//
// File paths in {file:path} placeholders support:
//   - Absolute paths
//   - Relative paths (resolved relative to config file directory)
//   - Home directory expansion (~/)
//
// Example configuration with interpolation:
//
//	{
//	  "endpoint": "http://localhost:8089/v1/chat",
//	  "model": "anthropic/claude-sonnet-4-20250514",
//	  "provider": {
//	    "anthropic": {
//	      "options": {
//	        "apiKey": "{env:ANTHROPIC_API_KEY}"
//	      }
//	    }
//	  }
//	}
//
// # Configuration Merging
//
// When multiple configuration sources are found, they are merged using a
// strategy that:
//   - Overwrites scalar values (strings, booleans, numbers)
//   - Merges maps/objects by combining keys
//   - Preserves the last-loaded value for conflicts
//
// # Path Management
//
// The package provides XDG Base Directory Specification compliant path
// management through the Paths type:
//   - Data: ~/.local/share/chatwire (XDG_DATA_HOME)
//   - Config: ~/.config/chatwire (XDG_CONFIG_HOME)
//   - Cache: ~/.cache/chatwire (XDG_CACHE_HOME)
//   - State: ~/.local/state/chatwire (XDG_STATE_HOME)
//
// On Windows, these paths are adapted to use APPDATA as appropriate. Session
// state lives under Paths.StoragePath unless the storage field overrides it.
//
// # Environment Variable Overrides
//
// Several environment variables provide direct configuration overrides:
//   - CHATWIRE_ENDPOINT - Override the chat endpoint URL
//   - CHATWIRE_MODEL - Override the model
//   - CHATWIRE_MODE - Override the response framing (data or text)
//   - CHATWIRE_CONFIG - Path to a specific config file
//   - CHATWIRE_CONFIG_CONTENT - Inline JSON configuration
//   - CHATWIRE_CONFIG_DIR - Override the config directory location
//   - ANTHROPIC_API_KEY / OPENAI_API_KEY / ARK_API_KEY - Provider credentials
//
// # TypeScript Compatibility
//
// Provider entries accept the TypeScript-style nested Options object
// ({"options": {"apiKey": ...}}) and normalize it into the direct fields
// after loading.
//
// # Usage Example
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	paths := config.GetPaths()
//	if err := paths.EnsurePaths(); err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := config.Save(cfg, config.GlobalConfigPath()); err != nil {
//	    log.Fatal(err)
//	}
package config
