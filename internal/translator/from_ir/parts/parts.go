// Package parts renders unified content parts into the Gemini-envelope
// "parts" array shape shared by the Vertex Claude and Gemini CLI request
// builders.
package parts

import "github.com/meitianwang/llm-gateway/internal/translator/ir"

// BuildUserParts renders a user message's content parts (text, images) as
// Gemini-style envelope parts, skipping tool results which the caller
// builds separately to attach the matching tool_use id.
func BuildUserParts(content []ir.ContentPart) []any {
	var out []any
	for i := range content {
		p := &content[i]
		switch p.Type {
		case ir.ContentTypeText:
			if p.Text != "" {
				out = append(out, map[string]any{"text": p.Text})
			}
		case ir.ContentTypeImage:
			if p.Image != nil {
				out = append(out, map[string]any{
					"inlineData": map[string]any{"mimeType": p.Image.MimeType, "data": p.Image.Data},
				})
			}
		}
	}
	return out
}
