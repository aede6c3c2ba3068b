package ir

import "testing"

func collectContent(outs []ThinkingParserOutput) string {
	s := ""
	for _, o := range outs {
		s += o.Content
	}
	return s
}

func collectReasoning(outs []ThinkingParserOutput) string {
	s := ""
	for _, o := range outs {
		s += o.Reasoning
	}
	return s
}

func TestThinkingParser_AsReasoningContent(t *testing.T) {
	p := NewThinkingParser(ThinkingHandlingAsReasoning, 20)
	var outs []ThinkingParserOutput
	outs = append(outs, p.Feed("<thinking>let me think</thinking>Hello")...)
	outs = append(outs, p.Flush()...)

	if got := collectReasoning(outs); got != "let me think" {
		t.Errorf("reasoning = %q, want %q", got, "let me think")
	}
	if got := collectContent(outs); got != "Hello" {
		t.Errorf("content = %q, want %q", got, "Hello")
	}
}

func TestThinkingParser_NoTagPassesThrough(t *testing.T) {
	p := NewThinkingParser(ThinkingHandlingAsReasoning, 20)
	var outs []ThinkingParserOutput
	outs = append(outs, p.Feed("plain text with no tags at all")...)
	outs = append(outs, p.Flush()...)

	if got := collectContent(outs); got != "plain text with no tags at all" {
		t.Errorf("content = %q, want full passthrough", got)
	}
	if got := collectReasoning(outs); got != "" {
		t.Errorf("reasoning should be empty, got %q", got)
	}
}

func TestThinkingParser_RemoveMode(t *testing.T) {
	p := NewThinkingParser(ThinkingHandlingRemove, 20)
	var outs []ThinkingParserOutput
	outs = append(outs, p.Feed("<think>internal</think>visible")...)
	outs = append(outs, p.Flush()...)

	if got := collectReasoning(outs); got != "" {
		t.Errorf("reasoning should be dropped, got %q", got)
	}
	if got := collectContent(outs); got != "visible" {
		t.Errorf("content = %q, want %q", got, "visible")
	}
}

func TestThinkingParser_StripTagsMode(t *testing.T) {
	p := NewThinkingParser(ThinkingHandlingStripTags, 20)
	var outs []ThinkingParserOutput
	outs = append(outs, p.Feed("<reasoning>scratch</reasoning>answer")...)
	outs = append(outs, p.Flush()...)

	if got := collectContent(outs); got != "scratchanswer" {
		t.Errorf("content = %q, want %q", got, "scratchanswer")
	}
}

func TestThinkingParser_PassModeReemitsTags(t *testing.T) {
	p := NewThinkingParser(ThinkingHandlingPass, 20)
	var outs []ThinkingParserOutput
	outs = append(outs, p.Feed("<thought>scratch</thought>answer")...)
	outs = append(outs, p.Flush()...)

	full := collectContent(outs)
	if full != "<thought>scratch</thought>answer" {
		t.Errorf("content = %q, want tags preserved", full)
	}
}

func TestThinkingParser_SplitAcrossChunks(t *testing.T) {
	p := NewThinkingParser(ThinkingHandlingAsReasoning, 20)
	var outs []ThinkingParserOutput
	outs = append(outs, p.Feed("<thi")...)
	outs = append(outs, p.Feed("nking>par")...)
	outs = append(outs, p.Feed("t one</thi")...)
	outs = append(outs, p.Feed("nking>rest")...)
	outs = append(outs, p.Flush()...)

	if got := collectReasoning(outs); got != "part one" {
		t.Errorf("reasoning = %q, want %q", got, "part one")
	}
	if got := collectContent(outs); got != "rest" {
		t.Errorf("content = %q, want %q", got, "rest")
	}
}

func TestThinkingParser_NoOpenTagFlushesBufferedPrefix(t *testing.T) {
	p := NewThinkingParser(ThinkingHandlingAsReasoning, 20)
	var outs []ThinkingParserOutput
	outs = append(outs, p.Feed("no tag here at all, just text")...)
	outs = append(outs, p.Flush()...)

	if got := collectContent(outs); got != "no tag here at all, just text" {
		t.Errorf("content = %q", got)
	}
}
