package from_ir

import (
	"encoding/json"

	"github.com/meitianwang/llm-gateway/internal/translator/ir"
)

// OpenAIProvider converts IR into OpenAI Chat Completions wire format.
type OpenAIProvider struct{}

func (p *OpenAIProvider) Provider() string { return "openai" }

func (p *OpenAIProvider) ConvertRequest(req *ir.UnifiedChatRequest) ([]byte, error) {
	return ToOpenAIRequest(req)
}

func (p *OpenAIProvider) ToResponse(messages []ir.Message, usage *ir.Usage, model string) ([]byte, error) {
	return ToOpenAIChatCompletion(messages, usage, model, "chatcmpl-"+model)
}

func (p *OpenAIProvider) ToChunk(event ir.UnifiedEvent, model string) ([]byte, error) {
	return ToOpenAIChunk(event, model, "chatcmpl-"+model, 0)
}

// RequestFormat selects which OpenAI-family wire shape ToOpenAIRequestFmt
// renders: the classic Chat Completions body, or the newer Responses API
// body used by Codex-style backends.
type RequestFormat int

const (
	FormatChatCompletions RequestFormat = iota
	FormatResponsesAPI
)

// ToOpenAIRequest converts a unified request into an OpenAI Chat
// Completions request body.
func ToOpenAIRequest(req *ir.UnifiedChatRequest) ([]byte, error) {
	return ToOpenAIRequestFmt(req, FormatChatCompletions)
}

// ToOpenAIRequestFmt converts a unified request into either Chat
// Completions or Responses API request JSON.
func ToOpenAIRequestFmt(req *ir.UnifiedChatRequest, format RequestFormat) ([]byte, error) {
	if format == FormatResponsesAPI {
		return toResponsesAPIRequest(req)
	}

	root := map[string]any{"model": req.Model}

	var messages []any
	for _, msg := range req.Messages {
		messages = append(messages, buildOpenAIMessage(msg)...)
	}
	root["messages"] = messages

	if req.Temperature != nil {
		root["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		root["top_p"] = *req.TopP
	}
	if req.MaxTokens != nil {
		root["max_tokens"] = *req.MaxTokens
	}
	if req.FrequencyPenalty != nil {
		root["frequency_penalty"] = *req.FrequencyPenalty
	}
	if req.PresencePenalty != nil {
		root["presence_penalty"] = *req.PresencePenalty
	}
	if req.Logprobs != nil {
		root["logprobs"] = *req.Logprobs
	}
	if req.TopLogprobs != nil {
		root["top_logprobs"] = *req.TopLogprobs
	}
	if req.CandidateCount != nil {
		root["n"] = *req.CandidateCount
	}
	if len(req.StopSequences) > 0 {
		root["stop"] = req.StopSequences
	}
	if req.Thinking != nil && req.Thinking.Effort != "" {
		root["reasoning_effort"] = req.Thinking.Effort
	}

	if len(req.Tools) > 0 {
		var tools []any
		for _, t := range req.Tools {
			params := t.Parameters
			if params == nil {
				params = map[string]any{"type": "object", "properties": map[string]any{}}
			}
			tools = append(tools, map[string]any{
				"type": "function",
				"function": map[string]any{
					"name": t.Name, "description": t.Description, "parameters": params,
				},
			})
		}
		root["tools"] = tools
	}

	return json.Marshal(root)
}

func buildOpenAIMessage(msg ir.Message) []any {
	var out []any

	role := string(msg.Role)
	m := map[string]any{"role": role}
	var content []any
	var toolResults []any

	for i := range msg.Content {
		p := &msg.Content[i]
		switch p.Type {
		case ir.ContentTypeText:
			if p.Text != "" {
				content = append(content, map[string]any{"type": "text", "text": p.Text})
			}
		case ir.ContentTypeReasoning:
			if p.Reasoning != "" {
				m["reasoning_content"] = p.Reasoning
				if len(p.ThoughtSignature) > 0 {
					m["reasoning_signature"] = string(p.ThoughtSignature)
				}
			}
		case ir.ContentTypeImage:
			if p.Image != nil {
				url := p.Image.URL
				if url == "" && p.Image.Data != "" {
					url = "data:" + p.Image.MimeType + ";base64," + p.Image.Data
				}
				content = append(content, map[string]any{"type": "image_url", "image_url": map[string]any{"url": url}})
			}
		case ir.ContentTypeAudio:
			if p.Audio != nil {
				content = append(content, map[string]any{
					"type": "input_audio",
					"input_audio": map[string]any{"data": p.Audio.Data, "format": p.Audio.Format},
				})
			}
		case ir.ContentTypeToolResult:
			if p.ToolResult != nil {
				toolResults = append(toolResults, map[string]any{
					"role": "tool", "tool_call_id": p.ToolResult.ToolCallID, "content": p.ToolResult.Result,
				})
			}
		}
	}

	if len(content) == 1 {
		if text, ok := content[0].(map[string]any)["text"]; ok {
			m["content"] = text
		} else {
			m["content"] = content
		}
	} else if len(content) > 1 {
		m["content"] = content
	} else if _, hasReasoning := m["reasoning_content"]; !hasReasoning && len(msg.ToolCalls) == 0 {
		m["content"] = ""
	}

	if len(msg.ToolCalls) > 0 {
		var tcs []any
		for i := range msg.ToolCalls {
			tc := &msg.ToolCalls[i]
			args := tc.Args
			if args == "" {
				args = "{}"
			}
			tcs = append(tcs, map[string]any{
				"id": tc.ID, "type": "function",
				"function": map[string]any{"name": tc.Name, "arguments": args},
			})
		}
		m["tool_calls"] = tcs
	}

	if _, hasContent := m["content"]; hasContent || len(msg.ToolCalls) > 0 || m["reasoning_content"] != nil {
		out = append(out, m)
	}
	out = append(out, toolResults...)
	return out
}

func toResponsesAPIRequest(req *ir.UnifiedChatRequest) ([]byte, error) {
	root := map[string]any{"model": req.Model}
	if req.Instructions != "" {
		root["instructions"] = req.Instructions
	}
	if req.MaxTokens != nil {
		root["max_output_tokens"] = *req.MaxTokens
	}
	if req.Temperature != nil {
		root["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		root["top_p"] = *req.TopP
	}
	if req.PreviousResponseID != "" {
		root["previous_response_id"] = req.PreviousResponseID
	}
	if req.Store != nil {
		root["store"] = *req.Store
	}
	if req.ParallelToolCalls != nil {
		root["parallel_tool_calls"] = *req.ParallelToolCalls
	}
	if req.Thinking != nil {
		reasoning := map[string]any{}
		if req.Thinking.Effort != "" {
			reasoning["effort"] = req.Thinking.Effort
		}
		if req.Thinking.Summary != "" {
			reasoning["summary"] = req.Thinking.Summary
		}
		if len(reasoning) > 0 {
			root["reasoning"] = reasoning
		}
	}

	var input []any
	for _, msg := range req.Messages {
		if msg.Role == ir.RoleSystem {
			continue
		}
		input = append(input, buildOpenAIMessage(msg)...)
	}
	root["input"] = input

	if len(req.Tools) > 0 {
		var tools []any
		for _, t := range req.Tools {
			params := t.Parameters
			if params == nil {
				params = map[string]any{"type": "object", "properties": map[string]any{}}
			}
			tools = append(tools, map[string]any{
				"type": "function", "name": t.Name, "description": t.Description, "parameters": params,
			})
		}
		root["tools"] = tools
	}

	return json.Marshal(root)
}

// ToOpenAIChatCompletion converts unified messages into a non-streaming
// Chat Completions response.
func ToOpenAIChatCompletion(messages []ir.Message, usage *ir.Usage, model, messageID string) ([]byte, error) {
	return ToOpenAIChatCompletionMeta(messages, usage, model, messageID, nil)
}

// ToOpenAIChatCompletionMeta is ToOpenAIChatCompletion with upstream
// passthrough metadata (native finish reason, grounding, logprobs) folded
// into the rendered response.
func ToOpenAIChatCompletionMeta(messages []ir.Message, usage *ir.Usage, model, messageID string, meta *ir.OpenAIMeta) ([]byte, error) {
	builder := ir.NewResponseBuilder(messages, usage, model)

	choice := map[string]any{"index": 0, "message": buildOpenAIResponseMessage(builder), "finish_reason": openAIFinishReason(builder, meta)}
	if meta != nil && meta.Logprobs != nil {
		choice["logprobs"] = meta.Logprobs
	}

	root := map[string]any{
		"id": messageID, "object": "chat.completion", "model": model,
		"choices": []any{choice},
	}
	if meta != nil && meta.CreateTime > 0 {
		root["created"] = meta.CreateTime
	}
	if usage != nil {
		root["usage"] = openAIUsage(usage)
	}
	return json.Marshal(root)
}

// ToOpenAIChatCompletionCandidates renders a multi-candidate (n>1) response
// as a Chat Completions object with one choice per candidate.
func ToOpenAIChatCompletionCandidates(candidates []ir.CandidateResult, usage *ir.Usage, model, messageID string, meta *ir.OpenAIMeta) ([]byte, error) {
	var choices []any
	for _, c := range candidates {
		builder := ir.NewResponseBuilder(c.Messages, usage, model)
		choice := map[string]any{
			"index": c.Index, "message": buildOpenAIResponseMessage(builder),
			"finish_reason": mapFinishReasonToOpenAI(c.FinishReason),
		}
		if c.Logprobs != nil {
			choice["logprobs"] = c.Logprobs
		}
		choices = append(choices, choice)
	}

	root := map[string]any{"id": messageID, "object": "chat.completion", "model": model, "choices": choices}
	if meta != nil && meta.CreateTime > 0 {
		root["created"] = meta.CreateTime
	}
	if usage != nil {
		root["usage"] = openAIUsage(usage)
	}
	return json.Marshal(root)
}

func buildOpenAIResponseMessage(b *ir.ResponseBuilder) map[string]any {
	m := map[string]any{"role": "assistant", "content": nil}
	if t := b.GetTextContent(); t != "" {
		m["content"] = t
	}
	if r := b.GetReasoningContent(); r != "" {
		m["reasoning_content"] = r
	}
	if tcs := b.BuildOpenAIToolCalls(); tcs != nil {
		m["tool_calls"] = tcs
	}
	return m
}

func openAIFinishReason(b *ir.ResponseBuilder, meta *ir.OpenAIMeta) string {
	if meta != nil && meta.NativeFinishReason != "" {
		return meta.NativeFinishReason
	}
	if b.HasToolCalls() {
		return "tool_calls"
	}
	return "stop"
}

func mapFinishReasonToOpenAI(r ir.FinishReason) string {
	switch r {
	case ir.FinishReasonLength:
		return "length"
	case ir.FinishReasonToolCalls:
		return "tool_calls"
	case ir.FinishReasonContentFilter:
		return "content_filter"
	default:
		return "stop"
	}
}

func openAIUsage(u *ir.Usage) map[string]any {
	out := map[string]any{
		"prompt_tokens": u.PromptTokens, "completion_tokens": u.CompletionTokens, "total_tokens": u.TotalTokens,
	}
	if u.ThoughtsTokenCount > 0 {
		out["completion_tokens_details"] = map[string]any{"reasoning_tokens": u.ThoughtsTokenCount}
	}
	if u.CachedTokens > 0 {
		out["prompt_tokens_details"] = map[string]any{"cached_tokens": u.CachedTokens}
	}
	return out
}

// ToOpenAIChunk converts a single unified event into an OpenAI Chat
// Completions streaming SSE chunk.
func ToOpenAIChunk(event ir.UnifiedEvent, model, messageID string, toolIndex int) ([]byte, error) {
	delta := map[string]any{}
	finishReason := ""

	switch event.Type {
	case ir.EventTypeToken:
		delta["content"] = event.Content
	case ir.EventTypeReasoning:
		delta["reasoning_content"] = event.Reasoning
		if len(event.ThoughtSignature) > 0 {
			delta["reasoning_signature"] = string(event.ThoughtSignature)
		}
	case ir.EventTypeToolCall, ir.EventTypeToolCallDelta:
		if event.ToolCall == nil {
			return nil, nil
		}
		tc := map[string]any{"index": toolIndex}
		if event.ToolCall.ID != "" {
			tc["id"] = event.ToolCall.ID
			tc["type"] = "function"
		}
		fn := map[string]any{}
		if event.ToolCall.Name != "" {
			fn["name"] = event.ToolCall.Name
		}
		args := event.ToolCall.Args
		if args == "" {
			args = event.ToolCall.PartialArgs
		}
		if args != "" {
			fn["arguments"] = args
		}
		if len(fn) > 0 {
			tc["function"] = fn
		}
		delta["tool_calls"] = []any{tc}
	case ir.EventTypeFinish:
		finishReason = mapFinishReasonToOpenAI(event.FinishReason)
	case ir.EventTypeStreamMeta, ir.EventTypeError:
		return nil, nil
	default:
		return nil, nil
	}

	choice := map[string]any{"index": 0, "delta": delta}
	if finishReason != "" {
		choice["finish_reason"] = finishReason
	} else {
		choice["finish_reason"] = nil
	}

	root := map[string]any{
		"id": messageID, "object": "chat.completion.chunk", "model": model,
		"choices": []any{choice},
	}
	if event.Type == ir.EventTypeFinish && event.Usage != nil {
		root["usage"] = openAIUsage(event.Usage)
	}

	body, err := json.Marshal(root)
	if err != nil {
		return nil, err
	}
	return append(append([]byte("data: "), body...), []byte("\n\n")...), nil
}

// ToResponsesAPIResponse converts unified messages into a non-streaming
// Responses API response body.
func ToResponsesAPIResponse(messages []ir.Message, usage *ir.Usage, model string, meta *ir.OpenAIMeta) ([]byte, error) {
	builder := ir.NewResponseBuilder(messages, usage, model)

	responseID := "resp_" + model
	if meta != nil && meta.ResponseID != "" {
		responseID = meta.ResponseID
	}

	var output []any
	if t := builder.GetTextContent(); t != "" {
		output = append(output, map[string]any{
			"type": "message", "role": "assistant", "status": "completed",
			"content": []any{map[string]any{"type": "output_text", "text": t}},
		})
	}
	if r := builder.GetReasoningContent(); r != "" {
		output = append(output, map[string]any{"type": "reasoning", "summary": []any{map[string]any{"type": "summary_text", "text": r}}})
	}
	for _, msg := range messages {
		for i := range msg.ToolCalls {
			tc := &msg.ToolCalls[i]
			args := tc.Args
			if args == "" {
				args = "{}"
			}
			output = append(output, map[string]any{
				"type": "function_call", "id": tc.ID, "call_id": tc.ID, "name": tc.Name, "arguments": args, "status": "completed",
			})
		}
	}

	root := map[string]any{
		"id": responseID, "object": "response", "model": model, "status": "completed", "output": output,
	}
	if usage != nil {
		root["usage"] = map[string]any{
			"input_tokens": usage.PromptTokens, "output_tokens": usage.CompletionTokens, "total_tokens": usage.TotalTokens,
			"output_tokens_details": map[string]any{"reasoning_tokens": usage.ThoughtsTokenCount},
		}
	}
	return json.Marshal(root)
}
