package stream

import (
	"testing"

	"github.com/meitianwang/llm-gateway/internal/translator/ir"
)

func TestKiroEventStreamParserContent(t *testing.T) {
	p := NewKiroEventStreamParser(ir.ThinkingHandlingAsReasoning, 20)
	events := p.Feed([]byte(`{"content":"hello"}{"content":"hello world"}`))

	var tokens []string
	for _, e := range events {
		if e.Type == ir.EventTypeToken {
			tokens = append(tokens, e.Content)
		}
	}
	if len(tokens) == 0 {
		t.Fatalf("expected at least one token event, got %#v", events)
	}
}

func TestKiroEventStreamParserDedupesRepeatedContent(t *testing.T) {
	p := NewKiroEventStreamParser(ir.ThinkingHandlingAsReasoning, 20)
	events := p.Feed([]byte(`{"content":"same"}{"content":"same"}`))
	count := 0
	for _, e := range events {
		if e.Type == ir.EventTypeToken {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected the repeated content chunk to be deduped, got %d token events", count)
	}
}

func TestKiroEventStreamParserToolCall(t *testing.T) {
	p := NewKiroEventStreamParser(ir.ThinkingHandlingAsReasoning, 20)
	events := p.Feed([]byte(`{"name":"search","toolUseId":"tu-1","input":{"q":"x"},"stop":true}`))

	var found *ir.ToolCall
	for _, e := range events {
		if e.Type == ir.EventTypeToolCall {
			found = e.ToolCall
		}
	}
	if found == nil {
		t.Fatalf("expected a tool call event, got %#v", events)
	}
	if found.Name != "search" || found.ID != "tu-1" {
		t.Fatalf("unexpected tool call: %#v", found)
	}
}

func TestKiroEventStreamParserSplitAcrossChunks(t *testing.T) {
	p := NewKiroEventStreamParser(ir.ThinkingHandlingAsReasoning, 20)
	first := p.Feed([]byte(`{"conte`))
	if len(first) != 0 {
		t.Fatalf("expected no events from a partial object, got %#v", first)
	}
	second := p.Feed([]byte(`nt":"partial chunk"}`))
	found := false
	for _, e := range second {
		if e.Type == ir.EventTypeToken && e.Content != "" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the completed object to produce a token event, got %#v", second)
	}
}

func TestKiroEventStreamParserUsage(t *testing.T) {
	p := NewKiroEventStreamParser(ir.ThinkingHandlingAsReasoning, 20)
	events := p.Feed([]byte(`{"usage":{"inputTokens":10,"outputTokens":5}}`))
	if len(events) != 1 || events[0].Type != ir.EventTypeFinish || events[0].Usage == nil {
		t.Fatalf("expected one finish event carrying usage, got %#v", events)
	}
	if events[0].Usage.TotalTokens != 15 {
		t.Fatalf("expected total tokens 15, got %d", events[0].Usage.TotalTokens)
	}
}
