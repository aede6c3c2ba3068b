package to_ir

import (
	"github.com/meitianwang/llm-gateway/internal/translator/ir"
	"github.com/tidwall/gjson"
)

// ClaudeProvider parses Claude Messages API wire format into IR.
type ClaudeProvider struct{}

func (p *ClaudeProvider) Format() string { return "claude" }

func (p *ClaudeProvider) Parse(payload []byte) (*ir.UnifiedChatRequest, error) {
	return ParseClaudeRequest(payload)
}

func (p *ClaudeProvider) ParseResponse(payload []byte) ([]ir.Message, *ir.Usage, error) {
	return ParseClaudeResponse(payload)
}

func (p *ClaudeProvider) ParseChunk(payload []byte) ([]ir.UnifiedEvent, error) {
	state := ir.NewClaudeStreamParserState()
	data := ir.ExtractSSEData(payload)
	if len(data) == 0 || ir.ValidateJSON(data) != nil {
		return nil, nil
	}
	parsed := gjson.ParseBytes(data)
	switch parsed.Get("type").String() {
	case ir.ClaudeSSEContentBlockStart:
		return ir.ParseClaudeContentBlockStart(parsed, state), nil
	case ir.ClaudeSSEContentBlockDelta:
		return ir.ParseClaudeStreamDeltaWithState(parsed, state), nil
	case ir.ClaudeSSEContentBlockStop:
		return ir.ParseClaudeContentBlockStop(parsed, state), nil
	case ir.ClaudeSSEMessageDelta:
		return ir.ParseClaudeMessageDelta(parsed), nil
	case ir.ClaudeSSEMessageStop:
		return []ir.UnifiedEvent{{Type: ir.EventTypeFinish, FinishReason: ir.FinishReasonStop}}, nil
	}
	return nil, nil
}

// ParseClaudeRequest parses a Claude Messages API request body into IR.
func ParseClaudeRequest(payload []byte) (*ir.UnifiedChatRequest, error) {
	if err := ir.ValidateJSON(payload); err != nil {
		return nil, err
	}
	root := gjson.ParseBytes(payload)
	req := &ir.UnifiedChatRequest{Model: root.Get("model").String()}

	if t := root.Get("max_tokens"); t.Exists() {
		v := int(t.Int())
		req.MaxTokens = &v
	}
	if t := root.Get("temperature"); t.Exists() {
		v := t.Float()
		req.Temperature = &v
	}
	if t := root.Get("top_p"); t.Exists() {
		v := t.Float()
		req.TopP = &v
	}
	if t := root.Get("top_k"); t.Exists() {
		v := int(t.Int())
		req.TopK = &v
	}
	for _, s := range root.Get("stop_sequences").Array() {
		req.StopSequences = append(req.StopSequences, s.String())
	}
	if sys := root.Get("system"); sys.Exists() {
		req.Instructions = sys.String()
	}

	if tc := root.Get("thinking"); tc.Exists() {
		req.Thinking = &ir.ThinkingConfig{IncludeThoughts: tc.Get("type").String() == "enabled"}
		if b := tc.Get("budget_tokens"); b.Exists() {
			budget := int32(b.Int())
			req.Thinking.ThinkingBudget = &budget
		}
	}

	if sys := root.Get("system"); sys.IsArray() {
		var sb []byte
		for _, block := range sys.Array() {
			sb = append(sb, block.Get("text").String()...)
		}
		req.Instructions = string(sb)
	}

	for _, m := range root.Get("messages").Array() {
		req.Messages = append(req.Messages, parseClaudeMessage(m))
	}

	for _, tool := range root.Get("tools").Array() {
		td := ir.ToolDefinition{Name: tool.Get("name").String(), Description: tool.Get("description").String()}
		if schema := tool.Get("input_schema"); schema.Exists() {
			if m, ok := schema.Value().(map[string]any); ok {
				td.Parameters = m
			}
		}
		req.Tools = append(req.Tools, td)
	}

	return req, nil
}

func parseClaudeMessage(m gjson.Result) ir.Message {
	role := ir.RoleUser
	if m.Get("role").String() == ir.ClaudeRoleAssistant {
		role = ir.RoleAssistant
	}
	msg := ir.Message{Role: role}

	content := m.Get("content")
	if content.Type == gjson.String {
		msg.Content = append(msg.Content, ir.ContentPart{Type: ir.ContentTypeText, Text: content.String()})
		return msg
	}

	for _, block := range content.Array() {
		ir.ParseClaudeContentBlock(block, &msg)
	}
	return msg
}

// ParseClaudeResponse parses a non-streaming Claude Messages API response.
func ParseClaudeResponse(payload []byte) ([]ir.Message, *ir.Usage, error) {
	if err := ir.ValidateJSON(payload); err != nil {
		return nil, nil, err
	}
	root := gjson.ParseBytes(payload)
	usage := ir.ParseClaudeUsage(root.Get("usage"))

	content := root.Get("content")
	if !content.Exists() || !content.IsArray() {
		return nil, usage, nil
	}

	msg := ir.Message{Role: ir.RoleAssistant}
	for _, block := range content.Array() {
		ir.ParseClaudeContentBlock(block, &msg)
	}
	if len(msg.Content) == 0 && len(msg.ToolCalls) == 0 {
		return nil, usage, nil
	}
	return []ir.Message{msg}, usage, nil
}
