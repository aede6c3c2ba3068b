// Package preprocess normalizes a parsed request before it is handed to a
// provider's request builder: clamping limits to what the target model
// actually supports, filling provider-specific defaults, and reconciling
// thinking configuration against the model's declared reasoning range.
package preprocess

import (
	"github.com/meitianwang/llm-gateway/internal/registry"
	"github.com/meitianwang/llm-gateway/internal/translator/ir"
)

// Apply runs every normalization pass over req in place, looking up model
// metadata from the global model registry.
func Apply(req *ir.UnifiedChatRequest) {
	if req == nil {
		return
	}
	info := registry.GetGlobalRegistry().GetModelInfo(req.Model)
	applyThinkingNormalization(req, info)
	applyProviderDefaults(req, info)
	applyLimits(req, info)
}
