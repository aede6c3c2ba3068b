package from_ir

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/meitianwang/llm-gateway/internal/translator/ir"
)

// CodexToolNameLimit is the longest tool name the Responses API accepts;
// longer names are shortened and the mapping recorded so the response path
// can restore the caller's original name.
const CodexToolNameLimit = 64

// CodexProvider converts IR into the Codex Responses API request envelope
// and projects Codex SSE events back onto the OpenAI chat-completion chunk
// template.
type CodexProvider struct{}

func (p *CodexProvider) Provider() string { return "codex" }

func (p *CodexProvider) ConvertRequest(req *ir.UnifiedChatRequest) ([]byte, error) {
	body, _, err := ToCodexRequest(req, true)
	return body, err
}

func (p *CodexProvider) ToResponse(messages []ir.Message, usage *ir.Usage, model string) ([]byte, error) {
	return ToOpenAIChatCompletion(messages, usage, model, "chatcmpl-"+uuid.NewString())
}

func (p *CodexProvider) ToChunk(event ir.UnifiedEvent, model string) ([]byte, error) {
	return ToOpenAIChunk(event, model, "chatcmpl-"+uuid.NewString(), event.ToolCallIndex)
}

// ToCodexRequest builds the Codex Responses API request body. It returns
// the shortened-name map alongside the body so the executor can reverse
// tool-call names on the way back out.
func ToCodexRequest(req *ir.UnifiedChatRequest, stream bool) ([]byte, map[string]string, error) {
	effort := "medium"
	if req.Thinking != nil && req.Thinking.Effort != "" {
		effort = req.Thinking.Effort
	}

	out := map[string]any{
		"instructions":         "",
		"stream":               stream,
		"parallel_tool_calls":  true,
		"reasoning":            map[string]any{"effort": effort, "summary": "auto"},
		"include":              []string{"reasoning.encrypted_content"},
		"store":                false,
		"model":                req.Model,
	}

	nameMap := buildCodexShortNameMap(req.Tools)
	out["input"] = buildCodexInput(req.Messages, nameMap)

	if len(req.Tools) > 0 {
		var tools []any
		for _, t := range req.Tools {
			name := t.Name
			if short, ok := nameMap[name]; ok {
				name = short
			}
			tool := map[string]any{"type": "function", "name": name, "description": t.Description}
			if len(t.Parameters) > 0 {
				tool["parameters"] = t.Parameters
			}
			tools = append(tools, tool)
		}
		out["tools"] = tools
	}

	if req.ToolChoice != "" {
		out["tool_choice"] = req.ToolChoice
	}

	body, err := json.Marshal(out)
	return body, nameMap, err
}

func buildCodexInput(messages []ir.Message, nameMap map[string]string) []any {
	var input []any
	for _, msg := range messages {
		if msg.Role == ir.RoleTool {
			for i := range msg.Content {
				p := &msg.Content[i]
				if p.Type != ir.ContentTypeToolResult || p.ToolResult == nil {
					continue
				}
				input = append(input, map[string]any{
					"type":    "function_call_output",
					"call_id": p.ToolResult.ToolCallID,
					"output":  p.ToolResult.Result,
				})
			}
			continue
		}

		role := string(msg.Role)
		if msg.Role == ir.RoleSystem {
			role = "developer"
		}
		partType := "input_text"
		if msg.Role == ir.RoleAssistant {
			partType = "output_text"
		}

		var content []any
		for i := range msg.Content {
			p := &msg.Content[i]
			switch p.Type {
			case ir.ContentTypeText:
				if p.Text != "" {
					content = append(content, map[string]any{"type": partType, "text": p.Text})
				}
			case ir.ContentTypeImage:
				if msg.Role == ir.RoleUser && p.Image != nil {
					url := p.Image.URL
					if url == "" && p.Image.Data != "" {
						url = "data:" + p.Image.MimeType + ";base64," + p.Image.Data
					}
					content = append(content, map[string]any{"type": "input_image", "image_url": url})
				}
			}
		}
		input = append(input, map[string]any{"type": "message", "role": role, "content": content})

		if msg.Role == ir.RoleAssistant {
			for i := range msg.ToolCalls {
				tc := &msg.ToolCalls[i]
				name := tc.Name
				if short, ok := nameMap[name]; ok {
					name = short
				} else {
					name = shortenCodexToolName(name)
				}
				input = append(input, map[string]any{
					"type":      "function_call",
					"call_id":   tc.ID,
					"name":      name,
					"arguments": tc.Args,
				})
			}
		}
	}
	return input
}

// shortenCodexToolName enforces CodexToolNameLimit. An over-long
// "mcp__<server>__<tool>" name becomes "mcp__<tool>" (the segment after the
// last "__", with the server dropped), cut to the limit; any other
// over-long name is simply truncated.
func shortenCodexToolName(name string) string {
	if len(name) <= CodexToolNameLimit {
		return name
	}
	if strings.HasPrefix(name, "mcp__") {
		if idx := strings.LastIndex(name, "__"); idx >= 0 {
			candidate := "mcp__" + name[idx+2:]
			if len(candidate) > CodexToolNameLimit {
				candidate = candidate[:CodexToolNameLimit]
			}
			return candidate
		}
	}
	return name[:CodexToolNameLimit]
}

// buildCodexShortNameMap shortens every declared tool name, disambiguating
// collisions with a numeric suffix that still respects the length cap.
func buildCodexShortNameMap(tools []ir.ToolDefinition) map[string]string {
	used := make(map[string]struct{}, len(tools))
	out := make(map[string]string, len(tools))
	for _, t := range tools {
		candidate := shortenCodexToolName(t.Name)
		unique := candidate
		for i := 1; ; i++ {
			if _, taken := used[unique]; !taken {
				break
			}
			suffix := "_" + strconv.Itoa(i)
			allowed := CodexToolNameLimit - len(suffix)
			base := candidate
			if len(base) > allowed {
				base = base[:allowed]
			}
			unique = base + suffix
		}
		used[unique] = struct{}{}
		out[t.Name] = unique
	}
	return out
}
