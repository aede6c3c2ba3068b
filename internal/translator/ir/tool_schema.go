package ir

import "github.com/tidwall/gjson"

// ToolSchemaContext carries the original request's tool parameter schemas
// through a streaming parse, keyed by tool name. Some upstreams (Gemini in
// particular) omit a tool's declared parameter types from partial-argument
// deltas, so the parser consults the original schema to decide whether an
// accumulated argument value needs coercion (e.g. a numeric string back to
// a number) before it reaches the unified IR.
type ToolSchemaContext struct {
	schemas map[string]map[string]any
}

// NewToolSchemaContextFromGJSON builds a ToolSchemaContext from the "tools"
// array of an original request already parsed with gjson, keyed by each
// tool's declared name.
func NewToolSchemaContextFromGJSON(tools []gjson.Result) *ToolSchemaContext {
	ctx := &ToolSchemaContext{schemas: make(map[string]map[string]any, len(tools))}
	for _, tool := range tools {
		fn := tool
		if tool.Get("function").Exists() {
			fn = tool.Get("function")
		}
		name := fn.Get("name").String()
		if name == "" {
			continue
		}
		params := fn.Get("parameters")
		if !params.Exists() {
			params = fn.Get("parametersJsonSchema")
		}
		if !params.Exists() {
			params = fn.Get("inputSchema")
		}
		if schema, ok := params.Value().(map[string]any); ok {
			ctx.schemas[name] = schema
		}
	}
	return ctx
}

// SchemaFor returns the declared parameter schema for a tool name, or nil
// if the tool is unknown or was declared with no schema.
func (c *ToolSchemaContext) SchemaFor(name string) map[string]any {
	if c == nil {
		return nil
	}
	return c.schemas[name]
}

// ParamType returns the declared JSON Schema "type" of a single parameter
// within a tool's schema, or "" if unknown.
func (c *ToolSchemaContext) ParamType(toolName, paramName string) string {
	schema := c.SchemaFor(toolName)
	if schema == nil {
		return ""
	}
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		return ""
	}
	prop, ok := props[paramName].(map[string]any)
	if !ok {
		return ""
	}
	t, _ := prop["type"].(string)
	return t
}
