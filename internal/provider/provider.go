package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/chatwire-ai/chatwire/pkg/chat"
)

// defaultMaxTokens caps completions when neither the config nor the
// request names a limit.
const defaultMaxTokens = 4096

// Provider represents an LLM provider with Eino ChatModel.
type Provider interface {
	// ID returns the provider identifier.
	ID() string

	// Name returns the human-readable provider name.
	Name() string

	// Models returns the list of available models.
	Models() []Model

	// ChatModel returns the Eino ChatModel for this provider.
	ChatModel() model.ToolCallingChatModel

	// CreateCompletion creates a streaming completion.
	CreateCompletion(ctx context.Context, req *CompletionRequest) (*CompletionStream, error)
}

// CompletionRequest represents a request to generate a completion.
type CompletionRequest struct {
	Model       string             `json:"model"`
	Messages    []*schema.Message  `json:"messages"`
	Tools       []*schema.ToolInfo `json:"tools,omitempty"`
	MaxTokens   int                `json:"maxTokens,omitempty"`
	Temperature float64            `json:"temperature,omitempty"`
	TopP        float64            `json:"topP,omitempty"`
	StopWords   []string           `json:"stopWords,omitempty"`
}

// CompletionStream wraps an Eino stream reader.
type CompletionStream struct {
	reader *schema.StreamReader[*schema.Message]
}

// NewCompletionStream creates a new completion stream.
func NewCompletionStream(reader *schema.StreamReader[*schema.Message]) *CompletionStream {
	return &CompletionStream{reader: reader}
}

// Recv receives the next message chunk from the stream.
func (s *CompletionStream) Recv() (*schema.Message, error) {
	return s.reader.Recv()
}

// Close closes the stream.
func (s *CompletionStream) Close() {
	s.reader.Close()
}

// bindAndStream attaches the request's tools to the base model and opens
// the streaming call. Each provider passes its own token-limit option
// because the OpenAI family rejects max_tokens on newer models. A zero
// temperature is treated as unset so the API default applies.
func bindAndStream(ctx context.Context, base model.ToolCallingChatModel, req *CompletionRequest, opts ...model.Option) (*CompletionStream, error) {
	llm := base
	if len(req.Tools) > 0 {
		bound, err := llm.WithTools(req.Tools)
		if err != nil {
			return nil, fmt.Errorf("bind tools: %w", err)
		}
		llm = bound
	}

	if req.Temperature > 0 {
		opts = append(opts, model.WithTemperature(float32(req.Temperature)))
	}

	reader, err := llm.Stream(ctx, req.Messages, opts...)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	return NewCompletionStream(reader), nil
}

// firstOf returns the first non-empty value.
func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// ToolInfo represents a tool definition for the LLM.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"` // JSON Schema
}

// ConvertToEinoTools converts internal tool definitions to Eino format.
func ConvertToEinoTools(tools []ToolInfo) []*schema.ToolInfo {
	result := make([]*schema.ToolInfo, len(tools))
	for i, t := range tools {
		// Parse parameters from JSON schema
		var params map[string]*schema.ParameterInfo
		if len(t.Parameters) > 0 {
			params = parseJSONSchemaToParams(t.Parameters)
		}

		result[i] = &schema.ToolInfo{
			Name:        t.Name,
			Desc:        t.Description,
			ParamsOneOf: schema.NewParamsOneOfByParams(params),
		}
	}
	return result
}

// parseJSONSchemaToParams converts JSON Schema to Eino ParameterInfo.
func parseJSONSchemaToParams(schemaJSON json.RawMessage) map[string]*schema.ParameterInfo {
	var jsonSchema struct {
		Properties map[string]struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"properties"`
		Required []string `json:"required"`
	}

	if err := json.Unmarshal(schemaJSON, &jsonSchema); err != nil {
		return nil
	}

	requiredSet := make(map[string]bool)
	for _, r := range jsonSchema.Required {
		requiredSet[r] = true
	}

	params := make(map[string]*schema.ParameterInfo)
	for name, prop := range jsonSchema.Properties {
		paramType := schema.String
		switch prop.Type {
		case "integer":
			paramType = schema.Integer
		case "number":
			paramType = schema.Number
		case "boolean":
			paramType = schema.Boolean
		case "array":
			paramType = schema.Array
		case "object":
			paramType = schema.Object
		}

		params[name] = &schema.ParameterInfo{
			Type:     paramType,
			Desc:     prop.Description,
			Required: requiredSet[name],
		}
	}

	return params
}

// ConvertToEinoMessages converts conversation messages to Eino format.
//
// Assistant tool invocations become tool calls on the assistant message.
// Each invocation that already carries a result is expanded into a
// follow-up tool message so the model sees call and outcome paired the
// way the chat APIs expect.
func ConvertToEinoMessages(messages []*chat.Message) []*schema.Message {
	result := make([]*schema.Message, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case chat.RoleSystem:
			result = append(result, &schema.Message{Role: schema.System, Content: msg.Content})
		case chat.RoleUser:
			result = append(result, &schema.Message{Role: schema.User, Content: msg.Content})
		case chat.RoleTool:
			result = append(result, &schema.Message{Role: schema.Tool, Content: msg.Content})
		case chat.RoleAssistant:
			einoMsg := &schema.Message{Role: schema.Assistant, Content: msg.Content}
			var results []*schema.Message

			for _, inv := range msg.ToolInvocations {
				args, _ := json.Marshal(inv.Args)
				einoMsg.ToolCalls = append(einoMsg.ToolCalls, schema.ToolCall{
					ID: inv.ToolCallID,
					Function: schema.FunctionCall{
						Name:      inv.ToolName,
						Arguments: string(args),
					},
				})
				if inv.Complete() {
					results = append(results, &schema.Message{
						Role:       schema.Tool,
						Content:    string(inv.Result),
						ToolCallID: inv.ToolCallID,
					})
				}
			}

			result = append(result, einoMsg)
			result = append(result, results...)
		}
	}

	return result
}
