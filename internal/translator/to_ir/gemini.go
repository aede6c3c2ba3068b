package to_ir

import (
	"github.com/meitianwang/llm-gateway/internal/translator/ir"
	"github.com/tidwall/gjson"
)

// GeminiProvider parses Gemini generateContent wire format into IR.
type GeminiProvider struct{}

func (p *GeminiProvider) Format() string { return "gemini" }

func (p *GeminiProvider) Parse(payload []byte) (*ir.UnifiedChatRequest, error) {
	return ParseGeminiRequest(payload)
}

func (p *GeminiProvider) ParseResponse(payload []byte) ([]ir.Message, *ir.Usage, error) {
	messages, usage, _, err := ParseGeminiResponseMeta(payload)
	return messages, usage, err
}

func (p *GeminiProvider) ParseChunk(payload []byte) ([]ir.UnifiedEvent, error) {
	return ParseGeminiChunkWithStateContext(payload, ir.NewGeminiStreamParserState(), nil)
}

// ParseGeminiRequest parses a Gemini generateContent request body into IR.
func ParseGeminiRequest(payload []byte) (*ir.UnifiedChatRequest, error) {
	if err := ir.ValidateJSON(payload); err != nil {
		return nil, err
	}
	root := gjson.ParseBytes(payload)
	req := &ir.UnifiedChatRequest{Model: root.Get("model").String()}

	gen := root.Get("generationConfig")
	if t := gen.Get("temperature"); t.Exists() {
		v := t.Float()
		req.Temperature = &v
	}
	if t := gen.Get("topP"); t.Exists() {
		v := t.Float()
		req.TopP = &v
	}
	if t := gen.Get("topK"); t.Exists() {
		v := int(t.Int())
		req.TopK = &v
	}
	if t := gen.Get("maxOutputTokens"); t.Exists() {
		v := int(t.Int())
		req.MaxTokens = &v
	}
	if t := gen.Get("candidateCount"); t.Exists() {
		v := int(t.Int())
		req.CandidateCount = &v
	}
	for _, s := range gen.Get("stopSequences").Array() {
		req.StopSequences = append(req.StopSequences, s.String())
	}

	if tc := gen.Get("thinkingConfig"); tc.Exists() {
		req.Thinking = &ir.ThinkingConfig{IncludeThoughts: tc.Get("includeThoughts").Bool()}
		if b := tc.Get("thinkingBudget"); b.Exists() {
			budget := int32(b.Int())
			req.Thinking.ThinkingBudget = &budget
		}
		if lvl := tc.Get("thinkingLevel"); lvl.Exists() {
			budget := int32(ir.ThinkingLevelToBudget(ir.ThinkingLevel(lvl.String())))
			req.Thinking.ThinkingBudget = &budget
		}
	}

	if sys := root.Get("systemInstruction"); sys.Exists() {
		req.Instructions = gjson.Parse(sys.Raw).Get("parts.0.text").String()
	}

	for _, content := range root.Get("contents").Array() {
		req.Messages = append(req.Messages, parseGeminiContent(content))
	}

	for _, tool := range root.Get("tools").Array() {
		for _, fn := range tool.Get("functionDeclarations").Array() {
			td := ir.ToolDefinition{Name: fn.Get("name").String(), Description: fn.Get("description").String()}
			if params := fn.Get("parameters"); params.Exists() {
				if m, ok := params.Value().(map[string]any); ok {
					td.Parameters = m
				}
			}
			req.Tools = append(req.Tools, td)
		}
	}

	return req, nil
}

func parseGeminiContent(content gjson.Result) ir.Message {
	role := ir.RoleUser
	if content.Get("role").String() == "model" {
		role = ir.RoleAssistant
	}
	msg := ir.Message{Role: role}

	for _, part := range content.Get("parts").Array() {
		switch {
		case part.Get("text").Exists():
			if part.Get("thought").Bool() {
				msg.Content = append(msg.Content, ir.ContentPart{
					Type: ir.ContentTypeReasoning, Reasoning: part.Get("text").String(),
					ThoughtSignature: decodeGeminiSignature(part),
				})
			} else {
				msg.Content = append(msg.Content, ir.ContentPart{Type: ir.ContentTypeText, Text: part.Get("text").String()})
			}
		case part.Get("inlineData").Exists():
			msg.Content = append(msg.Content, ir.ContentPart{
				Type: ir.ContentTypeImage,
				Image: &ir.ImagePart{
					MimeType: part.Get("inlineData.mimeType").String(),
					Data:     part.Get("inlineData.data").String(),
				},
			})
		case part.Get("functionCall").Exists():
			msg.ToolCalls = append(msg.ToolCalls, ir.ToolCall{
				ID:               part.Get("functionCall.id").String(),
				Name:             part.Get("functionCall.name").String(),
				Args:             part.Get("functionCall.args").Raw,
				ThoughtSignature: decodeGeminiSignature(part),
			})
		case part.Get("functionResponse").Exists():
			msg.Content = append(msg.Content, ir.ContentPart{
				Type: ir.ContentTypeToolResult,
				ToolResult: &ir.ToolResultPart{
					ToolCallID: part.Get("functionResponse.id").String(),
					Result:     part.Get("functionResponse.response").Raw,
				},
			})
		}
	}

	return msg
}

func decodeGeminiSignature(part gjson.Result) []byte {
	sig := part.Get("thoughtSignature").String()
	if !ir.IsValidThoughtSignature([]byte(sig)) {
		return nil
	}
	return []byte(sig)
}

// ParseGeminiResponseMeta parses a single-candidate Gemini response,
// returning the assistant message, usage, and response metadata useful for
// translating into another provider's non-streaming response shape.
func ParseGeminiResponseMeta(payload []byte) ([]ir.Message, *ir.Usage, *ir.OpenAIMeta, error) {
	return ParseGeminiResponseMetaWithContext(payload, nil)
}

// ParseGeminiResponseMetaWithContext is ParseGeminiResponseMeta with access
// to the original request's declared tool schemas, used to coerce
// mis-typed function call arguments back to their declared JSON type.
func ParseGeminiResponseMetaWithContext(payload []byte, toolSchemaCtx *ir.ToolSchemaContext) ([]ir.Message, *ir.Usage, *ir.OpenAIMeta, error) {
	if err := ir.ValidateJSON(payload); err != nil {
		return nil, nil, nil, err
	}
	root := gjson.ParseBytes(payload)
	if wrapped := root.Get("response"); wrapped.Exists() {
		root = wrapped
	}

	usage := parseGeminiUsage(root.Get("usageMetadata"))
	meta := &ir.OpenAIMeta{
		ResponseID:         root.Get("responseId").String(),
		NativeFinishReason: root.Get("candidates.0.finishReason").String(),
		GroundingMetadata:  parseGeminiGrounding(root.Get("candidates.0.groundingMetadata")),
	}
	if usage != nil {
		meta.ThoughtsTokenCount = usage.ThoughtsTokenCount
	}

	candidate := root.Get("candidates.0.content")
	if !candidate.Exists() {
		return nil, usage, meta, nil
	}
	msg := parseGeminiContent(candidate)
	msg.Role = ir.RoleAssistant
	return []ir.Message{msg}, usage, meta, nil
}

// ParseGeminiResponseCandidates parses every candidate of a Gemini response
// with candidateCount > 1 into independent candidate results.
func ParseGeminiResponseCandidates(payload []byte, toolSchemaCtx *ir.ToolSchemaContext) ([]ir.CandidateResult, *ir.Usage, *ir.OpenAIMeta, error) {
	if err := ir.ValidateJSON(payload); err != nil {
		return nil, nil, nil, err
	}
	root := gjson.ParseBytes(payload)
	if wrapped := root.Get("response"); wrapped.Exists() {
		root = wrapped
	}

	usage := parseGeminiUsage(root.Get("usageMetadata"))
	meta := &ir.OpenAIMeta{
		ResponseID:        root.Get("responseId").String(),
		GroundingMetadata: parseGeminiGrounding(root.Get("candidates.0.groundingMetadata")),
	}

	var results []ir.CandidateResult
	for i, c := range root.Get("candidates").Array() {
		msg := parseGeminiContent(c.Get("content"))
		msg.Role = ir.RoleAssistant
		results = append(results, ir.CandidateResult{
			Index:        int(c.Get("index").Int()),
			Messages:     []ir.Message{msg},
			FinishReason: mapGeminiFinishReason(c.Get("finishReason").String()),
		})
		if i == 0 {
			meta.NativeFinishReason = c.Get("finishReason").String()
		}
	}
	return results, usage, meta, nil
}

func parseGeminiUsage(u gjson.Result) *ir.Usage {
	if !u.Exists() {
		return nil
	}
	return &ir.Usage{
		PromptTokens:       int(u.Get("promptTokenCount").Int()),
		CompletionTokens:   int(u.Get("candidatesTokenCount").Int()),
		TotalTokens:        int(u.Get("totalTokenCount").Int()),
		ThoughtsTokenCount: int(u.Get("thoughtsTokenCount").Int()),
		CachedTokens:       int(u.Get("cachedContentTokenCount").Int()),
	}
}

func parseGeminiGrounding(g gjson.Result) *ir.GroundingMetadata {
	if !g.Exists() {
		return nil
	}
	var gm ir.GroundingMetadata
	for _, q := range g.Get("webSearchQueries").Array() {
		gm.WebSearchQueries = append(gm.WebSearchQueries, q.String())
	}
	for _, c := range g.Get("groundingChunks").Array() {
		gm.GroundingChunks = append(gm.GroundingChunks, ir.GroundingChunk{
			Web: &ir.WebGrounding{URI: c.Get("web.uri").String(), Title: c.Get("web.title").String()},
		})
	}
	if html := g.Get("searchEntryPoint.renderedContent"); html.Exists() {
		gm.SearchEntryPoint = &ir.SearchEntryPoint{RenderedContent: html.String()}
	}
	return &gm
}

func mapGeminiFinishReason(reason string) ir.FinishReason {
	switch reason {
	case "STOP":
		return ir.FinishReasonStop
	case "MAX_TOKENS":
		return ir.FinishReasonLength
	case "SAFETY", "RECITATION", "BLOCKLIST", "PROHIBITED_CONTENT":
		return ir.FinishReasonContentFilter
	case "":
		return ir.FinishReasonUnknown
	default:
		return ir.FinishReasonUnknown
	}
}

// ParseGeminiChunkWithStateContext parses one line of a Gemini streamGenerateContent
// SSE response into unified events, using geminiState to bridge a thinking
// part split across a thought and its thoughtSignature in separate chunks,
// and toolSchemaCtx to type-coerce function call argument deltas.
func ParseGeminiChunkWithStateContext(line []byte, geminiState *ir.GeminiStreamParserState, toolSchemaCtx *ir.ToolSchemaContext) ([]ir.UnifiedEvent, error) {
	data := ir.ExtractSSEData(line)
	if len(data) == 0 {
		return nil, nil
	}
	if ir.ValidateJSON(data) != nil {
		return nil, nil
	}

	root := gjson.ParseBytes(data)
	var events []ir.UnifiedEvent

	if u := root.Get("usageMetadata"); u.Exists() && geminiState != nil {
		geminiState.ActualInputTokens = u.Get("promptTokenCount").Int()
		geminiState.ActualCacheTokens = u.Get("cachedContentTokenCount").Int()
	}

	candidate := root.Get("candidates.0")
	for _, part := range candidate.Get("content.parts").Array() {
		switch {
		case part.Get("text").Exists() && part.Get("thought").Bool():
			ev := ir.UnifiedEvent{Type: ir.EventTypeReasoning, Reasoning: part.Get("text").String()}
			if prev := geminiState.BufferThinkingEvent(&ev); prev != nil {
				events = append(events, *prev)
			}
		case part.Get("thoughtSignature").Exists() && geminiState.HasPendingEvent():
			if completed := geminiState.AttachSignature(decodeGeminiSignature(part)); completed != nil {
				events = append(events, *completed)
			}
		case part.Get("text").Exists():
			if flushed := geminiState.FlushPending(); flushed != nil {
				events = append(events, *flushed)
			}
			events = append(events, ir.UnifiedEvent{Type: ir.EventTypeToken, Content: part.Get("text").String()})
		case part.Get("functionCall").Exists():
			if flushed := geminiState.FlushPending(); flushed != nil {
				events = append(events, *flushed)
			}
			events = append(events, ir.UnifiedEvent{
				Type: ir.EventTypeToolCall,
				ToolCall: &ir.ToolCall{
					ID:               part.Get("functionCall.id").String(),
					Name:             part.Get("functionCall.name").String(),
					Args:             part.Get("functionCall.args").Raw,
					ThoughtSignature: decodeGeminiSignature(part),
				},
			})
		}
	}

	if reason := candidate.Get("finishReason"); reason.Exists() && reason.String() != "" {
		if flushed := geminiState.FlushPending(); flushed != nil {
			events = append(events, *flushed)
		}
		usage := parseGeminiUsage(root.Get("usageMetadata"))
		events = append(events, ir.UnifiedEvent{Type: ir.EventTypeFinish, FinishReason: mapGeminiFinishReason(reason.String()), Usage: usage})
	}

	return events, nil
}
