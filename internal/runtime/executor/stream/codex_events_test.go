package stream

import (
	"testing"

	"github.com/meitianwang/llm-gateway/internal/translator/ir"
)

func TestCodexEventStateSeedsFromCreated(t *testing.T) {
	s := NewCodexEventState(nil)
	events, err := s.ParseCodexEvent("response.created", []byte(`{"response":{"id":"resp_1","created_at":1700000000,"model":"gpt-5-codex"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if events != nil {
		t.Fatalf("response.created should not emit events, got %#v", events)
	}
	if s.ResponseID != "resp_1" || s.Model != "gpt-5-codex" || s.CreatedAt != 1700000000 {
		t.Fatalf("state not seeded from response.created: %#v", s)
	}
}

func TestCodexEventStateOutputTextDelta(t *testing.T) {
	s := NewCodexEventState(nil)
	events, err := s.ParseCodexEvent("response.output_text.delta", []byte(`{"delta":"hi"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Type != ir.EventTypeToken || events[0].Content != "hi" {
		t.Fatalf("unexpected events: %#v", events)
	}
}

func TestCodexEventStateToolCallRestoresOriginalName(t *testing.T) {
	s := NewCodexEventState(map[string]string{"search_abc123": "search_the_web_for_docs"})
	payload := []byte(`{"item":{"type":"function_call","call_id":"call_1","name":"search_abc123","arguments":"{}"}}`)
	events, err := s.ParseCodexEvent("response.output_item.done", payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].ToolCall == nil {
		t.Fatalf("expected one tool call event, got %#v", events)
	}
	if events[0].ToolCall.Name != "search_the_web_for_docs" {
		t.Fatalf("expected restored tool name, got %q", events[0].ToolCall.Name)
	}
	if s.FunctionCallIndex != 0 {
		t.Fatalf("expected function call index 0, got %d", s.FunctionCallIndex)
	}
}

func TestCodexEventStateCompletedPicksFinishReason(t *testing.T) {
	s := NewCodexEventState(nil)
	s.FunctionCallIndex = 0
	events, err := s.ParseCodexEvent("response.completed", []byte(`{"response":{"usage":{"input_tokens":3,"output_tokens":7,"total_tokens":10}}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].FinishReason != ir.FinishReasonToolCalls {
		t.Fatalf("expected tool_calls finish reason, got %#v", events)
	}
	if events[0].Usage == nil || events[0].Usage.TotalTokens != 10 {
		t.Fatalf("expected usage with total 10, got %#v", events[0].Usage)
	}
}

func TestCodexEventStateUnknownEventIgnored(t *testing.T) {
	s := NewCodexEventState(nil)
	events, err := s.ParseCodexEvent("response.in_progress", []byte(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if events != nil {
		t.Fatalf("expected unknown event type to produce no events, got %#v", events)
	}
}
