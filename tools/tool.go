// Package tools exposes the gateway's operations as Claude tools.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
)

// ErrUnknownTool is returned when executing a tool that is not registered.
var ErrUnknownTool = errors.New("unknown tool")

// Definition describes a tool to a model.
type Definition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// Anthropic converts the definition to an Anthropic Messages API tool.
func (d Definition) Anthropic() anthropic.ToolUnionParam {
	schema := anthropic.ToolInputSchemaParam{
		Properties: d.InputSchema["properties"],
	}
	if required, ok := d.InputSchema["required"].([]string); ok {
		schema.Required = required
	}
	param := anthropic.ToolUnionParamOfTool(schema, d.Name)
	param.OfTool.Description = anthropic.String(d.Description)
	return param
}

// Params carries a single tool invocation.
type Params struct {
	Input     json.RawMessage
	RequestID string
}

// Result is what a tool hands back to the model. Failures the model can act
// on are reported with Success false rather than as a Go error.
type Result struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HandlerFunc executes a tool.
type HandlerFunc func(ctx context.Context, params *Params) (*Result, error)

// Tool is a definition plus its handler.
type Tool struct {
	def     Definition
	handler HandlerFunc
}

// Definition returns the tool's definition.
func (t *Tool) Definition() Definition {
	return t.def
}

// Execute runs the tool.
func (t *Tool) Execute(ctx context.Context, params *Params) (*Result, error) {
	return t.handler(ctx, params)
}

// Builder assembles a Tool.
type Builder struct {
	tool Tool
}

// New starts a tool named name.
func New(name string) *Builder {
	return &Builder{tool: Tool{def: Definition{
		Name:        name,
		InputSchema: ObjectSchema(map[string]interface{}{}),
	}}}
}

// Description sets the description shown to the model.
func (b *Builder) Description(description string) *Builder {
	b.tool.def.Description = description
	return b
}

// Schema sets the input schema.
func (b *Builder) Schema(schema map[string]interface{}) *Builder {
	b.tool.def.InputSchema = schema
	return b
}

// Handler sets the handler and returns the finished tool.
func (b *Builder) Handler(fn HandlerFunc) *Tool {
	t := b.tool
	t.handler = fn
	return &t
}

// Registry holds tools by name, in registration order.
type Registry struct {
	tools map[string]*Tool
	order []string
}

// NewRegistry creates a registry. Later tools replace earlier ones of the same name.
func NewRegistry(tools ...*Tool) *Registry {
	r := &Registry{tools: make(map[string]*Tool)}
	for _, t := range tools {
		r.Add(t)
	}
	return r
}

// Add registers t.
func (r *Registry) Add(t *Tool) {
	name := t.def.Name
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
}

// Definitions lists the registered tools.
func (r *Registry) Definitions() []Definition {
	defs := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].def)
	}
	return defs
}

// AnthropicTools lists the registered tools in Messages API form.
func (r *Registry) AnthropicTools() []anthropic.ToolUnionParam {
	params := make([]anthropic.ToolUnionParam, 0, len(r.order))
	for _, def := range r.Definitions() {
		params = append(params, def.Anthropic())
	}
	return params
}

// Execute runs the tool called name.
func (r *Registry) Execute(ctx context.Context, name string, params *Params) (*Result, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return t.Execute(ctx, params)
}
