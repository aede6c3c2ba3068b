package stream

import (
	"encoding/json"

	"github.com/meitianwang/llm-gateway/internal/translator/ir"
)

// CodexEventState accumulates the per-connection context the Responses API
// spreads across a "response.created" event and every later "response.*"
// delta, so a later event can be translated without re-reading the whole
// stream. One instance per streaming request.
type CodexEventState struct {
	ResponseID        string
	CreatedAt         int64
	Model             string
	FunctionCallIndex int
	ReverseToolNames  map[string]string
}

// NewCodexEventState builds state for one Codex Responses API stream.
// reverseToolNames maps the shortened tool names ToCodexRequest generated
// back to the caller's original names, so tool-call deltas never leak the
// 64-char-limited wire name.
func NewCodexEventState(reverseToolNames map[string]string) *CodexEventState {
	return &CodexEventState{FunctionCallIndex: -1, ReverseToolNames: reverseToolNames}
}

// ParseCodexEvent translates one decoded "response.*" SSE payload into zero
// or more ir.UnifiedEvent values. "response.created" only seeds state and
// never emits an event; unrecognized event types are ignored rather than
// treated as errors, since the Responses API adds new event types the
// gateway doesn't need to model (e.g. response.in_progress).
func (s *CodexEventState) ParseCodexEvent(eventType string, payload []byte) ([]ir.UnifiedEvent, error) {
	var data map[string]any
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, err
	}

	if eventType == "response.created" {
		if resp, ok := data["response"].(map[string]any); ok {
			if id, ok := resp["id"].(string); ok {
				s.ResponseID = id
			}
			if created, ok := resp["created_at"].(float64); ok {
				s.CreatedAt = int64(created)
			}
			if model, ok := resp["model"].(string); ok {
				s.Model = model
			}
		}
		return nil, nil
	}

	switch eventType {
	case "response.reasoning_summary_text.delta":
		delta, _ := data["delta"].(string)
		if delta == "" {
			return nil, nil
		}
		return []ir.UnifiedEvent{{Type: ir.EventTypeReasoningSummary, Reasoning: delta}}, nil

	case "response.reasoning_summary_text.done":
		return []ir.UnifiedEvent{{Type: ir.EventTypeReasoningSummary, Reasoning: "\n\n"}}, nil

	case "response.output_text.delta":
		delta, _ := data["delta"].(string)
		if delta == "" {
			return nil, nil
		}
		return []ir.UnifiedEvent{{Type: ir.EventTypeToken, Content: delta}}, nil

	case "response.output_item.done":
		return s.handleOutputItemDone(data)

	case "response.completed":
		reason := ir.FinishReasonStop
		if s.FunctionCallIndex != -1 {
			reason = ir.FinishReasonToolCalls
		}
		return []ir.UnifiedEvent{{Type: ir.EventTypeFinish, FinishReason: reason, Usage: codexUsageFromResponse(data)}}, nil

	default:
		return nil, nil
	}
}

func (s *CodexEventState) handleOutputItemDone(data map[string]any) ([]ir.UnifiedEvent, error) {
	item, ok := data["item"].(map[string]any)
	if !ok || item["type"] != "function_call" {
		return nil, nil
	}
	s.FunctionCallIndex++

	name, _ := item["name"].(string)
	if orig, ok := s.ReverseToolNames[name]; ok {
		name = orig
	}
	callID, _ := item["call_id"].(string)
	args, _ := item["arguments"].(string)

	return []ir.UnifiedEvent{{
		Type:          ir.EventTypeToolCall,
		ToolCallIndex: s.FunctionCallIndex,
		ToolCall:      &ir.ToolCall{ID: callID, Name: name, Args: args},
	}}, nil
}

func codexUsageFromResponse(data map[string]any) *ir.Usage {
	resp, ok := data["response"].(map[string]any)
	if !ok {
		return nil
	}
	usage, ok := resp["usage"].(map[string]any)
	if !ok {
		return nil
	}
	u := &ir.Usage{}
	if n, ok := usage["input_tokens"].(float64); ok {
		u.PromptTokens = int(n)
	}
	if n, ok := usage["output_tokens"].(float64); ok {
		u.CompletionTokens = int(n)
	}
	if n, ok := usage["total_tokens"].(float64); ok {
		u.TotalTokens = int(n)
	} else {
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}
	if details, ok := usage["output_tokens_details"].(map[string]any); ok {
		if n, ok := details["reasoning_tokens"].(float64); ok {
			u.ThoughtsTokenCount = int(n)
		}
	}
	return u
}
