// Package provider gives chatwire a uniform way to talk to hosted LLM
// APIs. Every backend satisfies the Provider interface and is built on
// an Eino chat model (https://github.com/cloudwego/eino), so the server
// can stream completions and bind tools without caring which vendor
// sits behind the request.
//
// # Backends
//
// Three constructor families exist:
//
//   - NewAnthropicProvider: Claude over the public API or AWS Bedrock,
//     with optional extended thinking.
//   - NewOpenAIProvider: the OpenAI API, Azure OpenAI Service, and any
//     compatible endpoint such as Ollama or Qwen.
//   - NewArkProvider: Volcengine ARK, which addresses models by
//     endpoint ID.
//
// Each constructor falls back to environment variables for credentials
// the config leaves blank (ANTHROPIC_API_KEY, OPENAI_API_KEY or
// AZURE_OPENAI_API_KEY, ARK_API_KEY plus ARK_MODEL_ID).
//
// # Registry
//
// InitializeProviders reads the provider section of the chatwire config
// and registers one provider per entry. Keys name the provider; aliases
// such as "claude" (Anthropic) or "ollama" (OpenAI-compatible) select
// the matching constructor:
//
//	{
//	  "model": "anthropic/claude-sonnet-4-20250514",
//	  "provider": {
//	    "anthropic": {"apiKey": "{env:ANTHROPIC_API_KEY}"},
//	    "ollama": {"apiKey": "ollama", "baseURL": "http://localhost:11434/v1", "model": "llama3.3"}
//	  }
//	}
//
// Entries without an API key are skipped, so a config can list every
// provider a team uses and each developer activates the ones they hold
// credentials for. The registry resolves "provider/model" strings,
// aggregates the model catalogs, and picks a default model when the
// config names none.
//
// # Streaming completions
//
// CreateCompletion opens a streaming chat call and returns a
// CompletionStream whose Recv yields message chunks until the model
// finishes:
//
//	stream, err := p.CreateCompletion(ctx, &CompletionRequest{
//	    Model:     "claude-sonnet-4-20250514",
//	    Messages:  msgs,
//	    Tools:     tools,
//	    MaxTokens: 4096,
//	})
//	if err != nil { ... }
//	defer stream.Close()
//	for {
//	    msg, err := stream.Recv()
//	    if err != nil {
//	        break
//	    }
//	    // consume msg.Content and msg.ToolCalls
//	}
//
// # Conversions
//
// ConvertToEinoMessages turns a chatwire conversation into the schema
// the chat APIs expect: assistant tool invocations become tool calls,
// and each invocation that already carries a result expands into a
// follow-up tool message. ConvertToEinoTools maps tool definitions with
// JSON Schema parameters onto Eino's ToolInfo.
package provider
