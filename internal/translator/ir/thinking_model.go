package ir

import "strings"

// ThinkingLevel is Gemini 3's coarse reasoning-effort dial ("thinkingLevel"
// in the generateContent request), distinct from the older numeric
// thinkingBudget token count Gemini 2.5 and Claude use.
type ThinkingLevel string

const (
	ThinkingLevelUnspecified ThinkingLevel = ""
	ThinkingLevelMinimal     ThinkingLevel = "MINIMAL"
	ThinkingLevelLow         ThinkingLevel = "LOW"
	ThinkingLevelMedium      ThinkingLevel = "MEDIUM"
	ThinkingLevelHigh        ThinkingLevel = "HIGH"
)

// IsGemini3 reports whether model belongs to the Gemini 3 family.
func IsGemini3(model string) bool {
	return strings.Contains(strings.ToLower(model), "gemini-3")
}

// IsGemini3Flash reports whether model is a Gemini 3 Flash variant, which
// unlike Gemini 3 Pro supports the MINIMAL and MEDIUM thinking levels.
func IsGemini3Flash(model string) bool {
	lower := strings.ToLower(model)
	return strings.Contains(lower, "gemini-3") && strings.Contains(lower, "flash")
}

// IsClaude reports whether model is an Anthropic Claude model (including
// the "anthropic.claude-*" Bedrock naming).
func IsClaude(model string) bool {
	return strings.Contains(strings.ToLower(model), "claude")
}

// IsThinkingModel reports whether model's name itself advertises reasoning
// (e.g. a "-thinking" suffixed Claude alias).
func IsThinkingModel(model string) bool {
	return strings.Contains(strings.ToLower(model), "thinking")
}

// ModelMayHaveThinking reports whether model could plausibly support a
// reasoning/thinking configuration at all.
func ModelMayHaveThinking(model string) bool {
	if model == "" {
		return false
	}
	lower := strings.ToLower(model)
	return strings.Contains(lower, "gemini-2.5") || IsGemini3(model) || IsClaude(model) || IsThinkingModel(model)
}

// DefaultThinkingLevel is the level used when a request sets no effort and
// no budget. Gemini 3 Pro defaults to HIGH; Flash, being cheaper to run at
// full effort, defaults to MEDIUM.
func DefaultThinkingLevel(model string) ThinkingLevel {
	if IsGemini3Flash(model) {
		return ThinkingLevelMedium
	}
	return ThinkingLevelHigh
}

// EffortToThinkingLevel maps an OpenAI-style reasoning_effort string onto a
// Gemini 3 thinkingLevel. Gemini 3 Pro has no MINIMAL level, so "none" and
// "minimal" both fall back to LOW on Pro.
func EffortToThinkingLevel(model, effort string) ThinkingLevel {
	flash := IsGemini3Flash(model)
	switch strings.ToLower(effort) {
	case "none", "minimal":
		if flash {
			return ThinkingLevelMinimal
		}
		return ThinkingLevelLow
	case "low":
		return ThinkingLevelLow
	case "medium", "high", "xhigh":
		return ThinkingLevelHigh
	default:
		return DefaultThinkingLevel(model)
	}
}

// BudgetToThinkingLevel maps a numeric thinking token budget (as carried
// over from a Gemini 2.5-style request, or translated from another
// provider's reasoning effort) onto a Gemini 3 thinkingLevel.
func BudgetToThinkingLevel(model string, budget int) ThinkingLevel {
	flash := IsGemini3Flash(model)
	switch {
	case budget <= 128:
		if flash {
			return ThinkingLevelMinimal
		}
		return ThinkingLevelLow
	case budget <= 1024:
		return ThinkingLevelLow
	case budget <= 8192:
		if flash {
			return ThinkingLevelMedium
		}
		return ThinkingLevelHigh
	default:
		return ThinkingLevelHigh
	}
}

// ThinkingLevelToBudget maps a Gemini 3 thinkingLevel back onto the
// equivalent Gemini 2.5/Claude numeric token budget, for providers that
// only understand the older budget field.
func ThinkingLevelToBudget(level ThinkingLevel) int {
	switch level {
	case ThinkingLevelMinimal:
		return 128
	case ThinkingLevelLow:
		return 1024
	case ThinkingLevelMedium:
		return 8192
	case ThinkingLevelHigh:
		return 32768
	default:
		return 8192
	}
}

// EffortToBudget maps an OpenAI-style reasoning_effort onto a thinking
// token budget and whether thoughts should be included in the response.
// An unrecognized or empty effort returns -1 to signal "use the provider's
// own default budget" rather than a concrete number.
func EffortToBudget(effort string) (budget int, include bool) {
	switch strings.ToLower(effort) {
	case "none":
		return 0, false
	case "minimal":
		return 128, true
	case "low":
		return 1024, true
	case "medium":
		return 8192, true
	case "high":
		return 32768, true
	case "xhigh":
		return 65536, true
	default:
		return -1, true
	}
}

// BudgetToEffort maps a numeric thinking budget back onto an OpenAI-style
// reasoning_effort string. budget<=0 returns defaultForZero, since zero is
// ambiguous between "thinking disabled" and "no budget specified".
func BudgetToEffort(budget int, defaultForZero string) string {
	if budget <= 0 {
		return defaultForZero
	}
	switch {
	case budget <= 1024:
		return "low"
	case budget <= 8192:
		return "medium"
	default:
		return "high"
	}
}

// IsValidThoughtSignature filters out the literal placeholder strings some
// upstreams send in place of a real opaque thought signature.
func IsValidThoughtSignature(sig []byte) bool {
	if len(sig) == 0 {
		return false
	}
	switch string(sig) {
	case "undefined", "[undefined]", "null", "[null]":
		return false
	}
	return true
}
