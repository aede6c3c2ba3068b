package from_ir

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/meitianwang/llm-gateway/internal/translator/ir"
)

// antigravitySystemInstruction is injected (twice, the second copy wrapped
// in [ignore]...[/ignore]) ahead of any user-supplied system instruction
// when the target model uses Antigravity's own dialect.
const antigravitySystemInstruction = "You are Antigravity, a powerful agentic AI coding assistant designed by the Google Deepmind team working on Advanced Agentic Coding.You are pair programming with a USER to solve their coding task. The task may require creating a new codebase, modifying or debugging an existing codebase, or simply answering a question.**Absolute paths only****Proactiveness**"

// AntigravityProvider converts IR into the Antigravity wire envelope: the
// Gemini-CLI {project, request, model} shape with userAgent/requestType/
// sessionId/requestId layered on top and safetySettings stripped.
type AntigravityProvider struct{}

func (p *AntigravityProvider) Provider() string { return "antigravity" }

func (p *AntigravityProvider) ConvertRequest(req *ir.UnifiedChatRequest) ([]byte, error) {
	return ToAntigravityRequest(req)
}

func (p *AntigravityProvider) ToResponse(messages []ir.Message, usage *ir.Usage, model string) ([]byte, error) {
	return ToGeminiResponse(messages, usage, model)
}

func (p *AntigravityProvider) ToChunk(event ir.UnifiedEvent, model string) ([]byte, error) {
	return ToGeminiChunk(event, model)
}

// usesAntigravityDialect reports whether model gets the Antigravity system
// prompt injection (Claude models and gemini-3-pro-high). VALIDATED function
// calling is set only for Claude models, and the parametersJsonSchema →
// parameters rename is applied to every model regardless of dialect.
func usesAntigravityDialect(model string) bool {
	lower := strings.ToLower(model)
	return ir.IsClaude(lower) || strings.Contains(lower, "gemini-3-pro-high")
}

// ToAntigravityRequest builds the Antigravity wire envelope atop the
// Gemini-CLI inner request.
func ToAntigravityRequest(req *ir.UnifiedChatRequest) ([]byte, error) {
	inner := buildGeminiCLIInnerRequest(req)
	delete(inner, "safetySettings")

	dialect := usesAntigravityDialect(req.Model)
	if dialect {
		applyAntigravitySystemInstruction(inner)
		renameParametersJSONSchema(inner)
		if ir.IsClaude(req.Model) {
			setAntigravityFunctionCallingMode(inner, "VALIDATED")
		}
	} else {
		renameParametersJSONSchema(inner)
	}

	envelope := map[string]any{
		"project":     "",
		"model":       req.Model,
		"userAgent":   "antigravity",
		"requestType": "agent",
		"requestId":   "agent-" + uuid.NewString(),
		"request":     inner,
	}
	envelope["request"].(map[string]any)["sessionId"] = antigravitySessionID(inner)

	return json.Marshal(envelope)
}

func applyAntigravitySystemInstruction(inner map[string]any) {
	var existingParts []any
	if si, ok := inner["systemInstruction"].(map[string]any); ok {
		if parts, ok := si["parts"].([]any); ok {
			existingParts = parts
		}
	}
	parts := []any{
		map[string]any{"text": antigravitySystemInstruction},
		map[string]any{"text": fmt.Sprintf("Please ignore following [ignore]%s[/ignore]", antigravitySystemInstruction)},
	}
	parts = append(parts, existingParts...)
	inner["systemInstruction"] = map[string]any{"role": "user", "parts": parts}
}

func setAntigravityFunctionCallingMode(inner map[string]any, mode string) {
	toolConfig, _ := inner["toolConfig"].(map[string]any)
	if toolConfig == nil {
		toolConfig = map[string]any{}
	}
	fcc, _ := toolConfig["functionCallingConfig"].(map[string]any)
	if fcc == nil {
		fcc = map[string]any{}
	}
	fcc["mode"] = mode
	toolConfig["functionCallingConfig"] = fcc
	inner["toolConfig"] = toolConfig
}

// renameParametersJSONSchema renames every "parametersJsonSchema" key back
// to "parameters" recursively, since Antigravity (unlike the plain
// Cloud Code Assist backend) expects the OpenAPI-style name.
func renameParametersJSONSchema(node any) {
	switch v := node.(type) {
	case map[string]any:
		if schema, ok := v["parametersJsonSchema"]; ok {
			delete(v, "parametersJsonSchema")
			v["parameters"] = schema
		}
		for _, child := range v {
			renameParametersJSONSchema(child)
		}
	case []any:
		for _, child := range v {
			renameParametersJSONSchema(child)
		}
	}
}

// antigravitySessionID derives a stable per-conversation id from the first
// user message's text (SHA-256 truncated to a 63-bit signed integer), or
// falls back to a time-derived pseudo-random one when there's no text yet.
func antigravitySessionID(inner map[string]any) string {
	if contents, ok := inner["contents"].([]any); ok {
		for _, c := range contents {
			content, ok := c.(map[string]any)
			if !ok || content["role"] != "user" {
				continue
			}
			parts, _ := content["parts"].([]any)
			if len(parts) == 0 {
				continue
			}
			part, ok := parts[0].(map[string]any)
			if !ok {
				continue
			}
			text, _ := part["text"].(string)
			if text == "" {
				continue
			}
			sum := sha256.Sum256([]byte(text))
			n := int64(binary.BigEndian.Uint64(sum[:8]))
			n &= math.MaxInt64
			return fmt.Sprintf("-%d", n)
		}
	}
	n := time.Now().UnixNano()
	mixed := n ^ (n >> 33) ^ (n << 11)
	mixed &= math.MaxInt64
	if mixed < 0 {
		mixed = -mixed
	}
	return fmt.Sprintf("-%d", mixed)
}
