package to_ir

import (
	"github.com/meitianwang/llm-gateway/internal/translator/ir"
	"github.com/tidwall/gjson"
)

// OllamaProvider parses Ollama's /api/chat wire format into IR. The wire
// shape mirrors OpenAI's chat message array closely enough that request
// parsing reuses the same message/tool-call helpers.
type OllamaProvider struct{}

func (p *OllamaProvider) Format() string { return "ollama" }

func (p *OllamaProvider) Parse(payload []byte) (*ir.UnifiedChatRequest, error) {
	return ParseOllamaRequest(payload)
}

func (p *OllamaProvider) ParseResponse(payload []byte) ([]ir.Message, *ir.Usage, error) {
	return ParseOpenAIResponse(payload)
}

func (p *OllamaProvider) ParseChunk(payload []byte) ([]ir.UnifiedEvent, error) {
	return ParseOpenAIChunk(payload)
}

// ParseOllamaRequest parses an Ollama /api/chat request body into IR.
func ParseOllamaRequest(payload []byte) (*ir.UnifiedChatRequest, error) {
	if err := ir.ValidateJSON(payload); err != nil {
		return nil, err
	}
	root := gjson.ParseBytes(payload)
	req := &ir.UnifiedChatRequest{Model: root.Get("model").String()}

	opts := root.Get("options")
	if t := opts.Get("temperature"); t.Exists() {
		v := t.Float()
		req.Temperature = &v
	}
	if t := opts.Get("top_p"); t.Exists() {
		v := t.Float()
		req.TopP = &v
	}
	if t := opts.Get("top_k"); t.Exists() {
		v := int(t.Int())
		req.TopK = &v
	}
	if t := opts.Get("num_predict"); t.Exists() {
		v := int(t.Int())
		req.MaxTokens = &v
	}
	for _, s := range opts.Get("stop").Array() {
		req.StopSequences = append(req.StopSequences, s.String())
	}

	req.Messages = parseOpenAIMessages(root.Get("messages").Array())

	for _, tool := range root.Get("tools").Array() {
		fn := tool.Get("function")
		td := ir.ToolDefinition{Name: fn.Get("name").String(), Description: fn.Get("description").String()}
		if params := fn.Get("parameters"); params.Exists() {
			if m, ok := params.Value().(map[string]any); ok {
				td.Parameters = m
			}
		}
		req.Tools = append(req.Tools, td)
	}

	return req, nil
}
