package to_ir

import "github.com/meitianwang/llm-gateway/internal/translator"

func init() {
	translator.RegisterToIR("openai", &OpenAIProvider{})
	translator.RegisterToIR("gemini", &GeminiProvider{})
	translator.RegisterToIR("claude", &ClaudeProvider{})
	translator.RegisterToIR("ollama", &OllamaProvider{})
}
