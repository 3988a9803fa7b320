// Package tool provides the tool framework for server-side tool execution.
package tool

import (
	"context"
	"encoding/json"
)

// Tool defines the interface for all tools.
type Tool interface {
	// Name returns the identifier the model calls the tool by.
	Name() string

	// Description returns the tool description shown to the model.
	Description() string

	// Parameters returns the JSON Schema for the tool arguments.
	Parameters() json.RawMessage

	// Execute runs the tool. The returned value is marshaled to JSON
	// before it is sent back to the model.
	Execute(ctx context.Context, args json.RawMessage) (any, error)
}

// BaseTool implements Tool around a function value, for tools that do
// not need a type of their own.
type BaseTool struct {
	name        string
	description string
	parameters  json.RawMessage
	execute     func(ctx context.Context, args json.RawMessage) (any, error)
}

// NewBaseTool creates a tool from its parts.
func NewBaseTool(name, description string, params json.RawMessage, execute func(context.Context, json.RawMessage) (any, error)) *BaseTool {
	return &BaseTool{
		name:        name,
		description: description,
		parameters:  params,
		execute:     execute,
	}
}

func (t *BaseTool) Name() string                { return t.name }
func (t *BaseTool) Description() string         { return t.description }
func (t *BaseTool) Parameters() json.RawMessage { return t.parameters }

func (t *BaseTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	return t.execute(ctx, args)
}
