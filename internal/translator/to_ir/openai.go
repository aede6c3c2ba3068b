// Package to_ir parses provider wire formats (OpenAI, Claude, Gemini,
// Ollama) into the unified IR used throughout the gateway.
package to_ir

import (
	"github.com/meitianwang/llm-gateway/internal/translator/ir"
	"github.com/tidwall/gjson"
)

// OpenAIProvider parses OpenAI Chat Completions wire format into IR.
type OpenAIProvider struct{}

func (p *OpenAIProvider) Format() string { return "openai" }

func (p *OpenAIProvider) Parse(payload []byte) (*ir.UnifiedChatRequest, error) {
	return ParseOpenAIRequest(payload)
}

func (p *OpenAIProvider) ParseResponse(payload []byte) ([]ir.Message, *ir.Usage, error) {
	return ParseOpenAIResponse(payload)
}

func (p *OpenAIProvider) ParseChunk(payload []byte) ([]ir.UnifiedEvent, error) {
	return ParseOpenAIChunk(payload)
}

// ParseOpenAIRequest parses an OpenAI Chat Completions request body into IR.
func ParseOpenAIRequest(payload []byte) (*ir.UnifiedChatRequest, error) {
	if err := ir.ValidateJSON(payload); err != nil {
		return nil, err
	}
	root := gjson.ParseBytes(payload)

	req := &ir.UnifiedChatRequest{Model: root.Get("model").String()}

	if t := root.Get("temperature"); t.Exists() {
		v := t.Float()
		req.Temperature = &v
	}
	if t := root.Get("top_p"); t.Exists() {
		v := t.Float()
		req.TopP = &v
	}
	if t := root.Get("max_tokens"); t.Exists() {
		v := int(t.Int())
		req.MaxTokens = &v
	} else if t := root.Get("max_completion_tokens"); t.Exists() {
		v := int(t.Int())
		req.MaxTokens = &v
	}
	if t := root.Get("frequency_penalty"); t.Exists() {
		v := t.Float()
		req.FrequencyPenalty = &v
	}
	if t := root.Get("presence_penalty"); t.Exists() {
		v := t.Float()
		req.PresencePenalty = &v
	}
	if t := root.Get("logprobs"); t.Exists() {
		v := t.Bool()
		req.Logprobs = &v
	}
	if t := root.Get("top_logprobs"); t.Exists() {
		v := int(t.Int())
		req.TopLogprobs = &v
	}
	if t := root.Get("n"); t.Exists() {
		v := int(t.Int())
		req.CandidateCount = &v
	}
	for _, s := range root.Get("stop").Array() {
		req.StopSequences = append(req.StopSequences, s.String())
	}
	if s := root.Get("stop"); s.Type == gjson.String {
		req.StopSequences = append(req.StopSequences, s.String())
	}

	if effort := root.Get("reasoning_effort"); effort.Exists() {
		budget, include := ir.EffortToBudget(effort.String())
		req.Thinking = &ir.ThinkingConfig{Effort: effort.String(), IncludeThoughts: include}
		if budget >= 0 {
			b := int32(budget)
			req.Thinking.ThinkingBudget = &b
		}
	}

	req.Messages = parseOpenAIMessages(root.Get("messages").Array())

	for _, tool := range root.Get("tools").Array() {
		if node := tool.Get(ir.MetaGoogleSearch); node.Exists() {
			setPassthroughTool(req, ir.MetaGoogleSearch, node)
			continue
		}
		if node := tool.Get(ir.MetaGoogleSearchRetrieval); node.Exists() {
			setPassthroughTool(req, ir.MetaGoogleSearchRetrieval, node)
			continue
		}
		if node := tool.Get(ir.MetaCodeExecution); node.Exists() {
			setPassthroughTool(req, ir.MetaCodeExecution, node)
			continue
		}
		if node := tool.Get(ir.MetaURLContext); node.Exists() {
			setPassthroughTool(req, ir.MetaURLContext, node)
			continue
		}
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

// setPassthroughTool records a Gemini-native tool node (google_search,
// code_execution, url_context) on the request's metadata so the Gemini-CLI
// and Antigravity request translators can re-emit it verbatim at the top
// level of the tools array, alongside any functionDeclarations.
func setPassthroughTool(req *ir.UnifiedChatRequest, key string, node gjson.Result) {
	if req.Metadata == nil {
		req.Metadata = make(map[string]any)
	}
	v := node.Value()
	if v == nil {
		v = map[string]any{}
	}
	list, _ := req.Metadata[key].([]any)
	req.Metadata[key] = append(list, v)
}

func parseOpenAIMessages(raw []gjson.Result) []ir.Message {
	messages := make([]ir.Message, 0, len(raw))
	for _, m := range raw {
		msg := ir.Message{Role: ir.Role(m.Get("role").String())}

		if content := m.Get("content"); content.Exists() {
			if content.IsArray() {
				for _, part := range content.Array() {
					msg.Content = append(msg.Content, parseOpenAIContentPart(part))
				}
			} else if content.Type == gjson.String && content.String() != "" {
				msg.Content = append(msg.Content, ir.ContentPart{Type: ir.ContentTypeText, Text: content.String()})
			}
		}

		if rf := ir.ParseReasoningFromJSON(m); rf.Text != "" {
			msg.Content = append(msg.Content, ir.ContentPart{
				Type: ir.ContentTypeReasoning, Reasoning: rf.Text, ThoughtSignature: []byte(rf.Signature),
			})
		}

		if toolCallID := m.Get("tool_call_id"); toolCallID.Exists() {
			msg.Content = append(msg.Content, ir.ContentPart{
				Type:       ir.ContentTypeToolResult,
				ToolResult: &ir.ToolResultPart{ToolCallID: toolCallID.String(), Result: m.Get("content").String()},
			})
		}

		if toolCalls := m.Get("tool_calls"); toolCalls.Exists() {
			msg.ToolCalls = ir.ParseOpenAIStyleToolCalls(toolCalls.Array())
		}

		messages = append(messages, msg)
	}
	return messages
}

func parseOpenAIContentPart(part gjson.Result) ir.ContentPart {
	switch part.Get("type").String() {
	case "image_url":
		url := part.Get("image_url.url").String()
		img := &ir.ImagePart{URL: url}
		ir.ResolveImagePart(img)
		return ir.ContentPart{Type: ir.ContentTypeImage, Image: img}
	case "input_audio":
		return ir.ContentPart{Type: ir.ContentTypeAudio, Audio: &ir.AudioPart{
			Data: part.Get("input_audio.data").String(), Format: part.Get("input_audio.format").String(),
		}}
	default:
		return ir.ContentPart{Type: ir.ContentTypeText, Text: part.Get("text").String()}
	}
}

// ParseOpenAIResponse parses a non-streaming OpenAI chat completion response.
func ParseOpenAIResponse(payload []byte) ([]ir.Message, *ir.Usage, error) {
	if err := ir.ValidateJSON(payload); err != nil {
		return nil, nil, err
	}
	root := gjson.ParseBytes(payload)

	var usage *ir.Usage
	if u := root.Get("usage"); u.Exists() {
		usage = &ir.Usage{
			PromptTokens:       int(u.Get("prompt_tokens").Int()),
			CompletionTokens:   int(u.Get("completion_tokens").Int()),
			TotalTokens:        int(u.Get("total_tokens").Int()),
			ThoughtsTokenCount: int(u.Get("completion_tokens_details.reasoning_tokens").Int()),
			CachedTokens:       int(u.Get("prompt_tokens_details.cached_tokens").Int()),
		}
	}

	var messages []ir.Message
	for _, choice := range root.Get("choices").Array() {
		m := choice.Get("message")
		msg := ir.Message{Role: ir.RoleAssistant}
		if text := m.Get("content").String(); text != "" {
			msg.Content = append(msg.Content, ir.ContentPart{Type: ir.ContentTypeText, Text: text})
		}
		if rf := ir.ParseReasoningFromJSON(m); rf.Text != "" {
			msg.Content = append(msg.Content, ir.ContentPart{
				Type: ir.ContentTypeReasoning, Reasoning: rf.Text, ThoughtSignature: []byte(rf.Signature),
			})
		}
		if tc := m.Get("tool_calls"); tc.Exists() {
			msg.ToolCalls = ir.ParseOpenAIStyleToolCalls(tc.Array())
		}
		messages = append(messages, msg)
	}

	return messages, usage, nil
}

// ParseOpenAIChunk parses a single OpenAI-format streaming SSE data chunk
// (the bytes between "data: " and the trailing newline, or the literal
// "[DONE]" sentinel) into unified events.
func ParseOpenAIChunk(payload []byte) ([]ir.UnifiedEvent, error) {
	data := ir.ExtractSSEData(payload)
	if len(data) == 0 {
		return nil, nil
	}
	if string(data) == "[DONE]" {
		return []ir.UnifiedEvent{{Type: ir.EventTypeFinish, FinishReason: ir.FinishReasonStop}}, nil
	}
	if ir.ValidateJSON(data) != nil {
		return nil, nil
	}

	root := gjson.ParseBytes(data)
	var events []ir.UnifiedEvent

	choice := root.Get("choices.0")
	delta := choice.Get("delta")

	if rf := ir.ParseReasoningFromJSON(delta); rf.Text != "" {
		events = append(events, ir.UnifiedEvent{Type: ir.EventTypeReasoning, Reasoning: rf.Text, ThoughtSignature: []byte(rf.Signature)})
	}
	if text := delta.Get("content").String(); text != "" {
		events = append(events, ir.UnifiedEvent{Type: ir.EventTypeToken, Content: text})
	}
	for i, tc := range delta.Get("tool_calls").Array() {
		idx := i
		if explicit := tc.Get("index"); explicit.Exists() {
			idx = int(explicit.Int())
		}
		name := tc.Get("function.name").String()
		args := tc.Get("function.arguments").String()
		if name != "" || args != "" {
			events = append(events, ir.UnifiedEvent{
				Type: ir.EventTypeToolCallDelta, ToolCallIndex: idx,
				ToolCall: &ir.ToolCall{ID: tc.Get("id").String(), Name: name, PartialArgs: args},
			})
		}
	}

	if reason := choice.Get("finish_reason"); reason.Exists() && reason.String() != "" {
		var usage *ir.Usage
		if u := root.Get("usage"); u.Exists() {
			usage = &ir.Usage{
				PromptTokens:       int(u.Get("prompt_tokens").Int()),
				CompletionTokens:   int(u.Get("completion_tokens").Int()),
				TotalTokens:        int(u.Get("total_tokens").Int()),
				ThoughtsTokenCount: int(u.Get("completion_tokens_details.reasoning_tokens").Int()),
			}
		}
		events = append(events, ir.UnifiedEvent{
			Type: ir.EventTypeFinish, FinishReason: mapOpenAIFinishReason(reason.String()), Usage: usage,
		})
	}

	return events, nil
}

func mapOpenAIFinishReason(reason string) ir.FinishReason {
	switch reason {
	case "stop":
		return ir.FinishReasonStop
	case "length":
		return ir.FinishReasonLength
	case "tool_calls", "function_call":
		return ir.FinishReasonToolCalls
	case "content_filter":
		return ir.FinishReasonContentFilter
	default:
		return ir.FinishReasonUnknown
	}
}

// MergeConsecutiveModelThinking merges a reasoning content part that's split
// across two consecutive assistant messages (some upstreams reset the
// accumulation mid-turn) back into a single reasoning part on the first.
func MergeConsecutiveModelThinking(messages []ir.Message) []ir.Message {
	if len(messages) < 2 {
		return messages
	}
	merged := make([]ir.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == ir.RoleAssistant && len(merged) > 0 {
			prev := &merged[len(merged)-1]
			if prev.Role == ir.RoleAssistant && onlyReasoning(msg) && onlyReasoning(*prev) {
				prev.Content[0].Reasoning += msg.Content[0].Reasoning
				continue
			}
		}
		merged = append(merged, msg)
	}
	return merged
}

func onlyReasoning(msg ir.Message) bool {
	return len(msg.Content) == 1 && msg.Content[0].Type == ir.ContentTypeReasoning && len(msg.ToolCalls) == 0
}
