package ir

import (
	"bytes"
	stdjson "encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
)

// Claude Messages API wire vocabulary: SSE event names, content block types,
// message roles and stop reasons. Kept as string constants (rather than an
// enum type) because they're marshaled straight into JSON payloads.
const (
	ClaudeSSEMessageStart      = "message_start"
	ClaudeSSEContentBlockStart = "content_block_start"
	ClaudeSSEContentBlockDelta = "content_block_delta"
	ClaudeSSEContentBlockStop  = "content_block_stop"
	ClaudeSSEMessageDelta      = "message_delta"
	ClaudeSSEMessageStop       = "message_stop"
	ClaudeSSEError             = "error"

	ClaudeRoleUser      = "user"
	ClaudeRoleAssistant = "assistant"

	ClaudeBlockText       = "text"
	ClaudeBlockThinking   = "thinking"
	ClaudeBlockImage      = "image"
	ClaudeBlockToolUse    = "tool_use"
	ClaudeBlockToolResult = "tool_result"

	ClaudeStopEndTurn   = "end_turn"
	ClaudeStopToolUse   = "tool_use"
	ClaudeStopMaxTokens = "max_tokens"

	// ClaudeDefaultMaxTokens is sent when a request carries no explicit
	// max_tokens; the Messages API rejects requests that omit it entirely.
	ClaudeDefaultMaxTokens = 8192
)

// BuildSSEEvent frames an already-marshaled JSON payload as a Claude-style
// "event: <type>\ndata: <json>\n\n" SSE message.
func BuildSSEEvent(eventType string, jsonData []byte) []byte {
	buf := GetBuffer()
	defer PutBuffer(buf)

	buf.WriteString("event: ")
	buf.WriteString(eventType)
	buf.WriteString("\ndata: ")
	buf.Write(jsonData)
	buf.WriteString("\n\n")

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out
}

func BuildClaudeToolCallBlockStartSSE(index int, id, name string) []byte {
	jb, _ := stdjson.Marshal(map[string]any{
		"type":  ClaudeSSEContentBlockStart,
		"index": index,
		"content_block": map[string]any{
			"type": ClaudeBlockToolUse, "id": id, "name": name, "input": map[string]any{},
		},
	})
	return BuildSSEEvent(ClaudeSSEContentBlockStart, jb)
}

func BuildClaudeToolCallInputDeltaSSE(index int, partialJSON string) []byte {
	jb, _ := stdjson.Marshal(map[string]any{
		"type": ClaudeSSEContentBlockDelta, "index": index,
		"delta": map[string]any{"type": "input_json_delta", "partial_json": partialJSON},
	})
	return BuildSSEEvent(ClaudeSSEContentBlockDelta, jb)
}

// ValidateJSON reports whether data is well-formed JSON.
func ValidateJSON(data []byte) error {
	if !stdjson.Valid(data) {
		return fmt.Errorf("invalid JSON payload")
	}
	return nil
}

// ExtractSSEData strips an optional leading "data:" SSE field prefix and
// surrounding whitespace from a raw SSE line, leaving the payload bytes.
func ExtractSSEData(line []byte) []byte {
	trimmed := bytes.TrimSpace(line)
	if rest, ok := bytes.CutPrefix(trimmed, []byte("data:")); ok {
		trimmed = bytes.TrimSpace(rest)
	}
	return trimmed
}

// ParseToolCallArgs decodes a tool call's JSON argument string into a generic
// value suitable for embedding back into a provider request/response body.
// Unparseable or empty input degrades to an empty object rather than erroring,
// since a malformed upstream arguments string shouldn't abort the whole
// response translation.
func ParseToolCallArgs(args string) any {
	trimmed := strings.TrimSpace(args)
	if trimmed == "" {
		return map[string]any{}
	}
	var v any
	if err := stdjson.Unmarshal([]byte(trimmed), &v); err != nil {
		return map[string]any{}
	}
	return v
}

// ExtractThoughtSignature reads a Gemini thought signature from either its
// camelCase (REST) or snake_case (some OpenAI-compatible bridges) field name.
func ExtractThoughtSignature(data gjson.Result) []byte {
	if v := data.Get("thoughtSignature"); v.Exists() && v.String() != "" {
		return []byte(v.String())
	}
	if v := data.Get("thought_signature"); v.Exists() && v.String() != "" {
		return []byte(v.String())
	}
	return nil
}

func claudeFinishReason(stopReason string) FinishReason {
	switch stopReason {
	case ClaudeStopEndTurn:
		return FinishReasonStop
	case ClaudeStopToolUse:
		return FinishReasonToolCalls
	case ClaudeStopMaxTokens:
		return FinishReasonLength
	case "":
		return FinishReasonUnknown
	default:
		return FinishReasonUnknown
	}
}

// ParseClaudeUsage extracts token accounting from a Claude "usage" object.
func ParseClaudeUsage(usage gjson.Result) *Usage {
	if !usage.Exists() {
		return nil
	}
	in := usage.Get("input_tokens").Int()
	out := usage.Get("output_tokens").Int()
	cacheRead := usage.Get("cache_read_input_tokens").Int()
	return &Usage{
		PromptTokens:     int(in),
		CompletionTokens: int(out),
		TotalTokens:      int(in + out),
		CachedTokens:     int(cacheRead),
	}
}

// ParseClaudeContentBlock appends one non-streaming Claude response content
// block (text/thinking/redacted_thinking/tool_use) onto msg.
func ParseClaudeContentBlock(block gjson.Result, msg *Message) {
	switch block.Get("type").String() {
	case ClaudeBlockText:
		msg.Content = append(msg.Content, ContentPart{Type: ContentTypeText, Text: block.Get("text").String()})
	case ClaudeBlockThinking:
		part := ContentPart{Type: ContentTypeReasoning, Reasoning: block.Get("thinking").String()}
		if sig := block.Get("signature").String(); sig != "" {
			part.ThoughtSignature = []byte(sig)
		}
		msg.Content = append(msg.Content, part)
	case "redacted_thinking":
		msg.Content = append(msg.Content, ContentPart{Type: ContentTypeRedactedThinking, RedactedData: block.Get("data").String()})
	case ClaudeBlockToolUse:
		msg.ToolCalls = append(msg.ToolCalls, ToolCall{
			ID:   block.Get("id").String(),
			Name: block.Get("name").String(),
			Args: block.Get("input").Raw,
		})
	case ClaudeBlockToolResult:
		result := block.Get("content")
		text := result.String()
		if result.IsArray() {
			for _, part := range result.Array() {
				text += part.Get("text").String()
			}
		}
		msg.Content = append(msg.Content, ContentPart{
			Type:       ContentTypeToolResult,
			ToolResult: &ToolResultPart{ToolCallID: block.Get("tool_use_id").String(), Result: text},
		})
	case ClaudeBlockImage:
		msg.Content = append(msg.Content, ContentPart{
			Type: ContentTypeImage,
			Image: &ImagePart{
				MimeType: block.Get("source.media_type").String(),
				Data:     block.Get("source.data").String(),
				URL:      block.Get("source.url").String(),
			},
		})
	}
}

// ClaudeStreamParserState tracks in-flight content blocks across a Claude
// SSE stream: the thinking text buffered until its signature_delta arrives,
// and each tool_use block's id/name/accumulated partial JSON keyed by index.
type ClaudeStreamParserState struct {
	pendingThinking *UnifiedEvent
	toolMeta        map[int]*ToolCall
	toolArgs        map[int]*strings.Builder
}

func NewClaudeStreamParserState() *ClaudeStreamParserState {
	return &ClaudeStreamParserState{
		toolMeta: make(map[int]*ToolCall),
		toolArgs: make(map[int]*strings.Builder),
	}
}

// HasPendingEvent reports whether a thinking_delta is buffered awaiting its
// signature_delta.
func (s *ClaudeStreamParserState) HasPendingEvent() bool {
	return s.pendingThinking != nil
}

// Finalize returns and clears any buffered thinking event at stream end,
// when no signature_delta ever arrived to complete it.
func (s *ClaudeStreamParserState) Finalize() *UnifiedEvent {
	ev := s.pendingThinking
	s.pendingThinking = nil
	return ev
}

// ParseClaudeContentBlockStart records tool_use block metadata so later
// input_json_delta/content_block_stop events can be reassembled.
func ParseClaudeContentBlockStart(parsed gjson.Result, state *ClaudeStreamParserState) []UnifiedEvent {
	if state == nil {
		return nil
	}
	block := parsed.Get("content_block")
	if block.Get("type").String() != ClaudeBlockToolUse {
		return nil
	}
	index := int(parsed.Get("index").Int())
	state.toolMeta[index] = &ToolCall{ID: block.Get("id").String(), Name: block.Get("name").String()}
	state.toolArgs[index] = &strings.Builder{}
	return nil
}

// ParseClaudeStreamDelta parses a content_block_delta without cross-chunk
// state; signature_delta can't be attached to its thinking text in this mode.
func ParseClaudeStreamDelta(parsed gjson.Result) []UnifiedEvent {
	delta := parsed.Get("delta")
	switch delta.Get("type").String() {
	case "text_delta":
		return []UnifiedEvent{{Type: EventTypeToken, Content: delta.Get("text").String()}}
	case "thinking_delta":
		return []UnifiedEvent{{Type: EventTypeReasoning, Reasoning: delta.Get("thinking").String()}}
	case "input_json_delta":
		return []UnifiedEvent{{Type: EventTypeToolCallDelta, ToolCallIndex: int(parsed.Get("index").Int()), ToolCall: &ToolCall{PartialArgs: delta.Get("partial_json").String()}}}
	}
	return nil
}

// ParseClaudeStreamDeltaWithState parses a content_block_delta with
// cross-chunk state, buffering thinking_delta text until a signature_delta
// completes it (content_block_stop does not release it; Finalize returns it
// at stream end), and accumulating tool_use input JSON.
func ParseClaudeStreamDeltaWithState(parsed gjson.Result, state *ClaudeStreamParserState) []UnifiedEvent {
	delta := parsed.Get("delta")
	index := int(parsed.Get("index").Int())

	switch delta.Get("type").String() {
	case "text_delta":
		return []UnifiedEvent{{Type: EventTypeToken, Content: delta.Get("text").String()}}
	case "thinking_delta":
		text := delta.Get("thinking").String()
		if state.pendingThinking != nil {
			text = state.pendingThinking.Reasoning + text
		}
		state.pendingThinking = &UnifiedEvent{Type: EventTypeReasoning, Reasoning: text}
		return nil
	case "signature_delta":
		if state.pendingThinking == nil {
			return nil
		}
		ev := *state.pendingThinking
		ev.ThoughtSignature = []byte(delta.Get("signature").String())
		state.pendingThinking = nil
		return []UnifiedEvent{ev}
	case "input_json_delta":
		partial := delta.Get("partial_json").String()
		if b, ok := state.toolArgs[index]; ok {
			b.WriteString(partial)
		}
		return []UnifiedEvent{{Type: EventTypeToolCallDelta, ToolCallIndex: index, ToolCall: &ToolCall{PartialArgs: partial}}}
	}
	return nil
}

// ParseClaudeContentBlockStop emits the completed tool_call event for a
// tool_use block, if the stopping index was tracked as one.
func ParseClaudeContentBlockStop(parsed gjson.Result, state *ClaudeStreamParserState) []UnifiedEvent {
	if state == nil {
		return nil
	}
	index := int(parsed.Get("index").Int())
	tc, ok := state.toolMeta[index]
	if !ok {
		return nil
	}
	if b, ok := state.toolArgs[index]; ok {
		tc.Args = b.String()
	}
	delete(state.toolMeta, index)
	delete(state.toolArgs, index)
	return []UnifiedEvent{{Type: EventTypeToolCall, ToolCallIndex: index, ToolCall: tc}}
}

// ParseClaudeMessageDelta parses the message_delta event carrying the final
// stop_reason and cumulative usage.
func ParseClaudeMessageDelta(parsed gjson.Result) []UnifiedEvent {
	stopReason := parsed.Get("delta.stop_reason").String()
	return []UnifiedEvent{{
		Type:         EventTypeFinish,
		FinishReason: claudeFinishReason(stopReason),
		Usage:        ParseClaudeUsage(parsed.Get("usage")),
	}}
}

// schemaCache memoizes CleanJsonSchemaForClaude by the schema's canonical
// JSON encoding, since tool schemas are typically reused across many
// requests for the same tool definition.
var schemaCache sync.Map

// CleanToolsForAntigravityClaude rewrites every tool's parameter schema in
// place using CleanJsonSchemaForClaude, for Claude models routed through
// Antigravity's stricter OpenAPI-subset tool validation.
func CleanToolsForAntigravityClaude(req *UnifiedChatRequest) {
	for i := range req.Tools {
		if req.Tools[i].Parameters == nil {
			continue
		}
		req.Tools[i].Parameters = CleanJsonSchemaForClaude(req.Tools[i].Parameters)
	}
}

// CleanJsonSchemaForClaude sanitizes a JSON Schema tree for the Claude tool
// input_schema dialect: unlike Gemini/Antigravity, Claude tolerates standard
// JSON Schema keywords directly, so only $ref/const/allOf/anyOf/oneOf and
// type-array normalization plus required-list cleanup are applied, not
// constraint hoisting or placeholder injection.
func CleanJsonSchemaForClaude(schema map[string]any) map[string]any {
	if schema == nil {
		return nil
	}
	key, err := stdjson.Marshal(schema)
	if err == nil {
		if cached, ok := schemaCache.Load(string(key)); ok {
			return cloneAny(cached).(map[string]any)
		}
	}
	cleaned := cleanJSONSchemaForClaude(schema)
	if err == nil {
		schemaCache.Store(string(key), cleaned)
	}
	return cleaned
}

func cleanJSONSchemaForClaude(schema map[string]any) map[string]any {
	var root any = cloneAny(schema)
	convertRefsToHints(&root)
	convertConstToEnum(&root)
	mergeAllOf(&root)
	flattenAnyOfOneOf(&root)
	flattenTypeArrays(&root)
	cleanupRequiredFields(&root)
	result, _ := root.(map[string]any)
	return result
}

// ResponseBuilder assembles a complete (non-streaming) response's content in
// each provider's own wire shape from a set of unified messages. One builder
// serves all three dialects; which Build* method is called determines the
// output format, not the model field (kept for future per-dialect quirks).
type ResponseBuilder struct {
	messages []Message
	usage    *Usage
	model    string
}

// NewResponseBuilder constructs a builder over the given messages.
func NewResponseBuilder(messages []Message, usage *Usage, model string) *ResponseBuilder {
	return &ResponseBuilder{messages: messages, usage: usage, model: model}
}

// GetLastMessage returns the final message, or nil if there are none.
func (b *ResponseBuilder) GetLastMessage() *Message {
	if len(b.messages) == 0 {
		return nil
	}
	return &b.messages[len(b.messages)-1]
}

// GetTextContent concatenates every text content part across all messages.
func (b *ResponseBuilder) GetTextContent() string {
	var out string
	for _, msg := range b.messages {
		out += CombineTextParts(msg)
	}
	return out
}

// GetReasoningContent concatenates every reasoning content part across all
// messages.
func (b *ResponseBuilder) GetReasoningContent() string {
	var out string
	for _, msg := range b.messages {
		_, r := CombineTextAndReasoning(msg)
		out += r
	}
	return out
}

// HasToolCalls reports whether any message carries a tool call, used to pick
// the Claude stop_reason.
func (b *ResponseBuilder) HasToolCalls() bool {
	for _, msg := range b.messages {
		if len(msg.ToolCalls) > 0 {
			return true
		}
	}
	return false
}

// BuildClaudeContentParts renders every message's content and tool calls as
// Claude Messages API content blocks.
func (b *ResponseBuilder) BuildClaudeContentParts() []any {
	var parts []any
	for _, msg := range b.messages {
		for i := range msg.Content {
			p := &msg.Content[i]
			switch p.Type {
			case ContentTypeReasoning:
				if p.Reasoning != "" {
					block := map[string]any{"type": ClaudeBlockThinking, "thinking": p.Reasoning}
					if len(p.ThoughtSignature) > 0 {
						block["signature"] = string(p.ThoughtSignature)
					}
					parts = append(parts, block)
				}
			case ContentTypeText:
				if p.Text != "" {
					parts = append(parts, map[string]any{"type": ClaudeBlockText, "text": p.Text})
				}
			case ContentTypeImage:
				if p.Image != nil {
					parts = append(parts, map[string]any{
						"type":   ClaudeBlockImage,
						"source": map[string]any{"type": "base64", "media_type": p.Image.MimeType, "data": p.Image.Data},
					})
				}
			case ContentTypeToolResult:
				if p.ToolResult != nil {
					parts = append(parts, map[string]any{
						"type": ClaudeBlockToolResult, "tool_use_id": p.ToolResult.ToolCallID, "content": p.ToolResult.Result,
					})
				}
			}
		}
		for i := range msg.ToolCalls {
			tc := &msg.ToolCalls[i]
			parts = append(parts, map[string]any{
				"type": ClaudeBlockToolUse, "id": ToClaudeToolID(tc.ID), "name": tc.Name, "input": ParseToolCallArgs(tc.Args),
			})
		}
	}
	return parts
}

// BuildGeminiContentParts renders every message's content and tool calls as
// Gemini generateContent "parts".
func (b *ResponseBuilder) BuildGeminiContentParts() []any {
	var parts []any
	for _, msg := range b.messages {
		for i := range msg.Content {
			p := &msg.Content[i]
			switch p.Type {
			case ContentTypeReasoning:
				if p.Reasoning != "" {
					part := map[string]any{"text": p.Reasoning, "thought": true}
					if len(p.ThoughtSignature) > 0 {
						part["thoughtSignature"] = string(p.ThoughtSignature)
					}
					parts = append(parts, part)
				}
			case ContentTypeText:
				if p.Text != "" {
					parts = append(parts, map[string]any{"text": p.Text})
				}
			}
		}
		for i := range msg.ToolCalls {
			tc := &msg.ToolCalls[i]
			part := map[string]any{"functionCall": map[string]any{"name": tc.Name, "args": ParseToolCallArgs(tc.Args)}}
			if len(tc.ThoughtSignature) > 0 {
				part["thoughtSignature"] = string(tc.ThoughtSignature)
			}
			parts = append(parts, part)
		}
	}
	return parts
}

// BuildOpenAIToolCalls renders every message's tool calls as OpenAI
// chat.completion tool_calls entries, carrying any Gemini thought signature
// through the extra_content.google.thought_signature escape hatch so a
// round trip back through Gemini can recover it.
func (b *ResponseBuilder) BuildOpenAIToolCalls() []any {
	var out []any
	for _, msg := range b.messages {
		for i := range msg.ToolCalls {
			tc := &msg.ToolCalls[i]
			args := tc.Args
			if args == "" {
				args = "{}"
			}
			call := map[string]any{
				"id":   tc.ID,
				"type": "function",
				"function": map[string]any{
					"name": tc.Name, "arguments": args,
				},
			}
			if len(tc.ThoughtSignature) > 0 {
				call["extra_content"] = map[string]any{
					"google": map[string]any{"thought_signature": string(tc.ThoughtSignature)},
				}
			}
			out = append(out, call)
		}
	}
	return out
}
