package executor

import (
	"net/http"

	"github.com/meitianwang/llm-gateway/internal/provider"
	"github.com/meitianwang/llm-gateway/internal/util"
)

// applyGeminiHeaders applies custom headers from auth attributes for Gemini requests.
func applyGeminiHeaders(req *http.Request, auth *provider.Auth) {
	var attrs map[string]string
	if auth != nil {
		attrs = auth.Attributes
	}
	util.ApplyCustomHeadersFromAttrs(req, attrs)
}
