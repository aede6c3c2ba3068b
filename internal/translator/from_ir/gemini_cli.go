package from_ir

import (
	"encoding/json"
	"strings"

	"github.com/meitianwang/llm-gateway/internal/translator/ir"
)

// geminiCLIThoughtSignature is the fixed placeholder the Cloud Code Assist
// validator accepts in place of a real thought signature on image and
// function-call parts it didn't itself produce.
const geminiCLIThoughtSignature = "skip_thought_signature_validator"

// GeminiCLIProvider converts IR into the Cloud Code Assist ("gemini-cli")
// wire envelope: {project, request: innerRequest, model}.
type GeminiCLIProvider struct{}

func (p *GeminiCLIProvider) Provider() string { return "gemini-cli" }

func (p *GeminiCLIProvider) ConvertRequest(req *ir.UnifiedChatRequest) ([]byte, error) {
	return ToGeminiCLIRequest(req)
}

func (p *GeminiCLIProvider) ToResponse(messages []ir.Message, usage *ir.Usage, model string) ([]byte, error) {
	return ToGeminiResponse(messages, usage, model)
}

func (p *GeminiCLIProvider) ToChunk(event ir.UnifiedEvent, model string) ([]byte, error) {
	return ToGeminiChunk(event, model)
}

// defaultGeminiCLISafetySettings mirrors the Cloud Code Assist defaults: all
// categories disabled except civic integrity, which only blocks nothing.
func defaultGeminiCLISafetySettings() []any {
	category := func(name, threshold string) any {
		return map[string]any{"category": name, "threshold": threshold}
	}
	return []any{
		category("HARM_CATEGORY_HARASSMENT", "OFF"),
		category("HARM_CATEGORY_HATE_SPEECH", "OFF"),
		category("HARM_CATEGORY_SEXUALLY_EXPLICIT", "OFF"),
		category("HARM_CATEGORY_DANGEROUS_CONTENT", "OFF"),
		category("HARM_CATEGORY_CIVIC_INTEGRITY", "BLOCK_NONE"),
	}
}

// ToGeminiCLIRequest builds the inner generateContent body and wraps it in
// the {project, request, model} envelope the Cloud Code Assist backend
// expects. ToAntigravityRequest builds on the same inner request.
func ToGeminiCLIRequest(req *ir.UnifiedChatRequest) ([]byte, error) {
	inner := buildGeminiCLIInnerRequest(req)
	envelope := map[string]any{
		"project": "",
		"request": inner,
		"model":   req.Model,
	}
	return json.Marshal(envelope)
}

// buildGeminiCLIInnerRequest is shared by the Gemini-CLI and Antigravity
// translators: Antigravity starts from this shape and layers its own
// envelope fields and system-instruction injection on top.
func buildGeminiCLIInnerRequest(req *ir.UnifiedChatRequest) map[string]any {
	inner := map[string]any{}
	genConfig := map[string]any{}

	if req.Thinking != nil {
		tc := map[string]any{}
		effort := strings.ToLower(strings.TrimSpace(req.Thinking.Effort))
		if effort == "auto" {
			tc["thinkingBudget"] = -1
			tc["includeThoughts"] = true
		} else if effort != "" {
			tc["thinkingLevel"] = effort
			tc["includeThoughts"] = effort != "none"
		}
		if len(tc) > 0 {
			genConfig["thinkingConfig"] = tc
		}
	}
	if req.Temperature != nil {
		genConfig["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		genConfig["topP"] = *req.TopP
	}
	if req.TopK != nil {
		genConfig["topK"] = *req.TopK
	}
	if req.CandidateCount != nil && *req.CandidateCount > 1 {
		genConfig["candidateCount"] = *req.CandidateCount
	}
	if len(req.ResponseModality) > 0 {
		genConfig["responseModalities"] = req.ResponseModality
	}
	if req.ImageConfig != nil {
		imgCfg := map[string]any{}
		if req.ImageConfig.AspectRatio != "" {
			imgCfg["aspectRatio"] = req.ImageConfig.AspectRatio
		}
		if req.ImageConfig.ImageSize != "" {
			imgCfg["imageSize"] = req.ImageConfig.ImageSize
		}
		if len(imgCfg) > 0 {
			genConfig["imageConfig"] = imgCfg
		}
	}
	if len(genConfig) > 0 {
		inner["generationConfig"] = genConfig
	}

	var contents []any
	var systemParts []any
	hasMultiple := len(req.Messages) > 1

	i := 0
	for i < len(req.Messages) {
		msg := req.Messages[i]
		if msg.Role == ir.RoleSystem {
			text := ir.CombineTextParts(msg)
			if text == "" {
				i++
				continue
			}
			if hasMultiple {
				systemParts = append(systemParts, map[string]any{"text": text})
			} else {
				contents = append(contents, map[string]any{"role": "user", "parts": []any{map[string]any{"text": text}}})
			}
			i++
			continue
		}
		if msg.Role == ir.RoleTool {
			// Gather every consecutive tool message into one functionResponse
			// "user" entry, per the Gemini-CLI parallel-tool-result rule.
			var toolParts []any
			for i < len(req.Messages) && req.Messages[i].Role == ir.RoleTool {
				toolParts = append(toolParts, buildGeminiCLIFunctionResponseParts(req.Messages[i])...)
				i++
			}
			if len(toolParts) > 0 {
				contents = append(contents, map[string]any{"role": "user", "parts": toolParts})
			}
			continue
		}
		contents = append(contents, buildGeminiCLIContent(msg))
		i++
	}
	inner["contents"] = contents
	if len(systemParts) > 0 {
		inner["systemInstruction"] = map[string]any{"role": "user", "parts": systemParts}
	}

	if len(req.Tools) > 0 || req.Metadata[ir.MetaGoogleSearch] != nil ||
		req.Metadata[ir.MetaCodeExecution] != nil || req.Metadata[ir.MetaURLContext] != nil {
		inner["tools"] = buildGeminiCLIToolNodes(req)
	}

	if _, ok := inner["safetySettings"]; !ok {
		inner["safetySettings"] = defaultGeminiCLISafetySettings()
	}

	return inner
}

func buildGeminiCLIToolNodes(req *ir.UnifiedChatRequest) []any {
	var nodes []any
	if len(req.Tools) > 0 {
		var decls []any
		for _, t := range req.Tools {
			fn := map[string]any{"name": t.Name, "description": t.Description}
			if len(t.Parameters) > 0 {
				fn["parametersJsonSchema"] = t.Parameters
			} else {
				fn["parametersJsonSchema"] = map[string]any{"type": "object", "properties": map[string]any{}}
			}
			decls = append(decls, fn)
		}
		nodes = append(nodes, map[string]any{"functionDeclarations": decls})
	}
	for _, key := range []string{ir.MetaGoogleSearch, ir.MetaGoogleSearchRetrieval, ir.MetaCodeExecution, ir.MetaURLContext} {
		wireKey := map[string]string{
			ir.MetaGoogleSearch:          "googleSearch",
			ir.MetaGoogleSearchRetrieval: "googleSearchRetrieval",
			ir.MetaCodeExecution:         "codeExecution",
			ir.MetaURLContext:            "urlContext",
		}[key]
		items, _ := req.Metadata[key].([]any)
		for _, item := range items {
			nodes = append(nodes, map[string]any{wireKey: item})
		}
	}
	return nodes
}

func buildGeminiCLIContent(msg ir.Message) map[string]any {
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
					"inlineData":      map[string]any{"mimeType": p.Image.MimeType, "data": p.Image.Data},
					"thoughtSignature": geminiCLIThoughtSignature,
				})
			}
		case ir.ContentTypeFile:
			if p.File != nil && p.File.FileData != "" {
				parts = append(parts, map[string]any{
					"inlineData":      map[string]any{"mimeType": "application/pdf", "data": p.File.FileData},
					"thoughtSignature": geminiCLIThoughtSignature,
				})
			}
		}
	}

	for i := range msg.ToolCalls {
		tc := &msg.ToolCalls[i]
		sig := geminiCLIThoughtSignature
		if len(tc.ThoughtSignature) > 0 {
			sig = string(tc.ThoughtSignature)
		}
		parts = append(parts, map[string]any{
			"functionCall": map[string]any{
				"id": tc.ID, "name": tc.Name, "args": ir.ParseToolCallArgs(tc.Args),
			},
			"thoughtSignature": sig,
		})
	}

	return map[string]any{"role": role, "parts": parts}
}

func buildGeminiCLIFunctionResponseParts(msg ir.Message) []any {
	var parts []any
	for i := range msg.Content {
		p := &msg.Content[i]
		if p.Type != ir.ContentTypeToolResult || p.ToolResult == nil {
			continue
		}
		parts = append(parts, map[string]any{
			"functionResponse": map[string]any{
				"id":       p.ToolResult.ToolCallID,
				"response": map[string]any{"result": p.ToolResult.Result},
			},
		})
	}
	return parts
}
