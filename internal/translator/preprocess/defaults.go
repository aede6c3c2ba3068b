package preprocess

import (
	"github.com/meitianwang/llm-gateway/internal/registry"
	"github.com/meitianwang/llm-gateway/internal/translator/ir"
)

func applyProviderDefaults(req *ir.UnifiedChatRequest, info *registry.ModelInfo) {
	applyClaudeDefaults(req)
}

func applyClaudeDefaults(req *ir.UnifiedChatRequest) {
	if !ir.IsClaude(req.Model) {
		return
	}
	if req.MaxTokens == nil || *req.MaxTokens == 0 {
		defaultMax := ir.ClaudeDefaultMaxTokens
		req.MaxTokens = &defaultMax
	}
	ir.CleanToolsForAntigravityClaude(req)
}
