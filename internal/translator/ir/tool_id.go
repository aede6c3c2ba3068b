package ir

import (
	"strings"

	"github.com/google/uuid"
)

// Tool call IDs differ by wire format: OpenAI/Ollama use "call_", Claude uses
// "toolu_", and Kiro's CodeWhisperer bridge uses "tooluse_". These helpers
// translate an ID between formats when round-tripping a tool call across a
// provider boundary, and leave IDs already in the target's own format (or in
// an unrecognized format) untouched rather than guess.

const (
	kiroToolPrefix   = "tooluse_"
	claudeToolPrefix = "toolu_"
	openAIToolPrefix = "call_"
)

// FromKiroToolID converts a Kiro "tooluse_" id to the OpenAI "call_" form.
func FromKiroToolID(id string) string {
	if rest, ok := strings.CutPrefix(id, kiroToolPrefix); ok {
		return openAIToolPrefix + rest
	}
	return id
}

// FromClaudeToolID converts a Claude "toolu_" id to the OpenAI "call_" form.
func FromClaudeToolID(id string) string {
	if rest, ok := strings.CutPrefix(id, claudeToolPrefix); ok {
		return openAIToolPrefix + rest
	}
	return id
}

// ToKiroToolID converts an OpenAI "call_" id to the Kiro "tooluse_" form.
func ToKiroToolID(id string) string {
	if rest, ok := strings.CutPrefix(id, openAIToolPrefix); ok {
		return kiroToolPrefix + rest
	}
	return id
}

// ToClaudeToolID converts an id of any known format to the Claude "toolu_"
// form. IDs already in Claude's own format pass through unchanged; IDs in
// any other shape (including no prefix at all) are prefixed rather than
// having their original prefix stripped, since Claude's format has no
// reserved meaning for a "tooluse_" or bare segment.
func ToClaudeToolID(id string) string {
	if strings.HasPrefix(id, claudeToolPrefix) {
		return id
	}
	if rest, ok := strings.CutPrefix(id, openAIToolPrefix); ok {
		return claudeToolPrefix + rest
	}
	return claudeToolPrefix + id
}

func randomToolIDSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// GenToolCallID generates a unique OpenAI-format tool call id.
func GenToolCallID() string {
	return openAIToolPrefix + randomToolIDSuffix()
}

// GenClaudeToolCallID generates a unique Claude-format tool call id.
func GenClaudeToolCallID() string {
	return claudeToolPrefix + randomToolIDSuffix()
}
