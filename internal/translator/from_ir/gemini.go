package from_ir

import (
	"encoding/json"

	"github.com/meitianwang/llm-gateway/internal/translator/ir"
)

// GeminiProvider converts IR into Gemini generateContent wire format.
type GeminiProvider struct{}

func (p *GeminiProvider) Provider() string { return "gemini" }

func (p *GeminiProvider) ConvertRequest(req *ir.UnifiedChatRequest) ([]byte, error) {
	return ToGeminiRequest(req)
}

func (p *GeminiProvider) ToResponse(messages []ir.Message, usage *ir.Usage, model string) ([]byte, error) {
	return ToGeminiResponse(messages, usage, model)
}

func (p *GeminiProvider) ToChunk(event ir.UnifiedEvent, model string) ([]byte, error) {
	return ToGeminiChunk(event, model)
}

// ToGeminiRequest converts a unified request into Gemini generateContent
// request JSON.
func ToGeminiRequest(req *ir.UnifiedChatRequest) ([]byte, error) {
	root := map[string]any{}
	genConfig := map[string]any{}

	if req.Temperature != nil {
		genConfig["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		genConfig["topP"] = *req.TopP
	}
	if req.TopK != nil {
		genConfig["topK"] = *req.TopK
	}
	if req.MaxTokens != nil {
		genConfig["maxOutputTokens"] = *req.MaxTokens
	}
	if req.CandidateCount != nil {
		genConfig["candidateCount"] = *req.CandidateCount
	}
	if len(req.StopSequences) > 0 {
		genConfig["stopSequences"] = req.StopSequences
	}

	if req.Thinking != nil {
		tc := map[string]any{"includeThoughts": req.Thinking.IncludeThoughts}
		if ir.IsGemini3(req.Model) {
			level := ir.DefaultThinkingLevel(req.Model)
			if req.Thinking.ThinkingBudget != nil {
				level = ir.BudgetToThinkingLevel(req.Model, int(*req.Thinking.ThinkingBudget))
			} else if req.Thinking.Effort != "" {
				level = ir.EffortToThinkingLevel(req.Model, req.Thinking.Effort)
			}
			tc["thinkingLevel"] = string(level)
		} else if req.Thinking.ThinkingBudget != nil {
			tc["thinkingBudget"] = *req.Thinking.ThinkingBudget
		}
		genConfig["thinkingConfig"] = tc
	}

	if len(genConfig) > 0 {
		root["generationConfig"] = genConfig
	}

	var contents []any
	for _, msg := range req.Messages {
		if msg.Role == ir.RoleSystem {
			if text := ir.CombineTextParts(msg); text != "" {
				root["systemInstruction"] = map[string]any{"parts": []any{map[string]any{"text": text}}}
			}
			continue
		}
		contents = append(contents, buildGeminiContent(msg))
	}
	root["contents"] = contents

	if len(req.Tools) > 0 {
		var decls []any
		for _, t := range req.Tools {
			fn := map[string]any{"name": t.Name, "description": t.Description}
			if len(t.Parameters) > 0 {
				fn["parameters"] = t.Parameters
			}
			decls = append(decls, fn)
		}
		root["tools"] = []any{map[string]any{"functionDeclarations": decls}}
	}

	return json.Marshal(root)
}

func buildGeminiContent(msg ir.Message) map[string]any {
	role := "user"
	if msg.Role == ir.RoleAssistant {
		role = "model"
	}

	var parts []any
	for i := range msg.Content {
		p := &msg.Content[i]
		switch p.Type {
		case ir.ContentTypeText:
			if p.Text != "" {
				parts = append(parts, map[string]any{"text": p.Text})
			}
		case ir.ContentTypeReasoning:
			if p.Reasoning != "" {
				part := map[string]any{"text": p.Reasoning, "thought": true}
				if len(p.ThoughtSignature) > 0 {
					part["thoughtSignature"] = string(p.ThoughtSignature)
				}
				parts = append(parts, part)
			}
		case ir.ContentTypeImage:
			if p.Image != nil {
				parts = append(parts, map[string]any{
					"inlineData": map[string]any{"mimeType": p.Image.MimeType, "data": p.Image.Data},
				})
			}
		case ir.ContentTypeToolResult:
			if p.ToolResult != nil {
				parts = append(parts, map[string]any{
					"functionResponse": map[string]any{
						"id":       p.ToolResult.ToolCallID,
						"response": map[string]any{"result": p.ToolResult.Result},
					},
				})
			}
		}
	}

	for i := range msg.ToolCalls {
		tc := &msg.ToolCalls[i]
		part := map[string]any{"functionCall": map[string]any{
			"id": tc.ID, "name": tc.Name, "args": ir.ParseToolCallArgs(tc.Args),
		}}
		if len(tc.ThoughtSignature) > 0 {
			part["thoughtSignature"] = string(tc.ThoughtSignature)
		}
		parts = append(parts, part)
	}

	return map[string]any{"role": role, "parts": parts}
}

// ToGeminiResponse converts unified messages into a non-streaming Gemini
// generateContent response.
func ToGeminiResponse(messages []ir.Message, usage *ir.Usage, model string) ([]byte, error) {
	var parts []any
	finishReason := "STOP"
	if len(messages) > 0 {
		content := buildGeminiContent(messages[0])
		parts = content["parts"].([]any)
	}

	candidate := map[string]any{
		"content":      map[string]any{"role": "model", "parts": parts},
		"finishReason": finishReason,
		"index":        0,
	}

	root := map[string]any{"candidates": []any{candidate}, "modelVersion": model}
	if usage != nil {
		root["usageMetadata"] = map[string]any{
			"promptTokenCount":     usage.PromptTokens,
			"candidatesTokenCount": usage.CompletionTokens,
			"totalTokenCount":      usage.TotalTokens,
			"thoughtsTokenCount":   usage.ThoughtsTokenCount,
		}
	}
	return json.Marshal(root)
}

// ToGeminiChunk converts a single unified event into one Gemini
// streamGenerateContent response object. It returns the bare JSON, with no
// "data: " prefix or trailing blank line.
func ToGeminiChunk(event ir.UnifiedEvent, model string) ([]byte, error) {
	var part map[string]any
	switch event.Type {
	case ir.EventTypeToken:
		part = map[string]any{"text": event.Content}
	case ir.EventTypeReasoning:
		part = map[string]any{"text": event.Reasoning, "thought": true}
		if len(event.ThoughtSignature) > 0 {
			part["thoughtSignature"] = string(event.ThoughtSignature)
		}
	case ir.EventTypeToolCall:
		if event.ToolCall == nil {
			return nil, nil
		}
		part = map[string]any{"functionCall": map[string]any{
			"id": event.ToolCall.ID, "name": event.ToolCall.Name, "args": ir.ParseToolCallArgs(event.ToolCall.Args),
		}}
	case ir.EventTypeFinish:
		root := map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"role": "model", "parts": []any{}},
				"finishReason": geminiFinishReasonString(event.FinishReason),
				"index":        0,
			}},
			"modelVersion": model,
		}
		if event.Usage != nil {
			root["usageMetadata"] = map[string]any{
				"promptTokenCount":     event.Usage.PromptTokens,
				"candidatesTokenCount": event.Usage.CompletionTokens,
				"totalTokenCount":      event.Usage.TotalTokens,
			}
		}
		return json.Marshal(root)
	default:
		return nil, nil
	}

	root := map[string]any{
		"candidates": []any{map[string]any{
			"content": map[string]any{"role": "model", "parts": []any{part}},
			"index":   0,
		}},
		"modelVersion": model,
	}
	return json.Marshal(root)
}

func geminiFinishReasonString(reason ir.FinishReason) string {
	switch reason {
	case ir.FinishReasonStop:
		return "STOP"
	case ir.FinishReasonLength:
		return "MAX_TOKENS"
	case ir.FinishReasonContentFilter:
		return "SAFETY"
	default:
		return "STOP"
	}
}
