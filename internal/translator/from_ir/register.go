package from_ir

import "github.com/meitianwang/llm-gateway/internal/translator"

func init() {
	translator.RegisterFromIR("openai", &OpenAIProvider{})
	translator.RegisterFromIR("gemini", &GeminiProvider{})
	translator.RegisterFromIR("claude", &ClaudeProvider{})
	translator.RegisterFromIR("vertex-envelope", &VertexEnvelopeProvider{})
	translator.RegisterFromIR("gemini-cli", &GeminiCLIProvider{})
	translator.RegisterFromIR("antigravity", &AntigravityProvider{})
	translator.RegisterFromIR("codex", &CodexProvider{})
	translator.RegisterFromIR("kiro", &KiroProvider{})
}
