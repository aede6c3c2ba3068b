package stream

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/meitianwang/llm-gateway/internal/translator/ir"
)

// kiroEventPattern is one of the JSON-object shapes CodeWhisperer interleaves
// into its chunked response body. There is no length-prefixed framing on
// this wire; events are recognized by their leading field name and closed by
// brace matching.
type kiroEventPattern struct {
	prefix string
	kind   kiroEventKind
}

type kiroEventKind int

const (
	kiroEventContent kiroEventKind = iota
	kiroEventToolStart
	kiroEventToolInput
	kiroEventToolStop
	kiroEventUsage
	kiroEventContextUsage
)

var kiroPatterns = []kiroEventPattern{
	{`{"content":`, kiroEventContent},
	{`{"name":`, kiroEventToolStart},
	{`{"input":`, kiroEventToolInput},
	{`{"stop":`, kiroEventToolStop},
	{`{"usage":`, kiroEventUsage},
	{`{"contextUsagePercentage":`, kiroEventContextUsage},
}

// KiroEventStreamParser reassembles CodeWhisperer's chunked JSON-object
// stream into ir.UnifiedEvent values, folding tool-call fragments and
// routing assistant text through a ThinkingParser so inline
// <thinking>...</thinking> spans surface as reasoning events.
type KiroEventStreamParser struct {
	buf         strings.Builder
	thinking    *ir.ThinkingParser
	lastContent string

	toolCallIdx  int
	currentTool  *kiroToolCall
	toolCalls    []kiroToolCall
}

type kiroToolCall struct {
	id        string
	name      string
	argsBuf   strings.Builder
	finalized bool
}

// NewKiroEventStreamParser builds a parser for one streaming response.
// mode and maxInitialBuffer are passed unchanged to ir.NewThinkingParser for
// the embedded parser that splits inline <thinking> spans out of content.
func NewKiroEventStreamParser(mode ir.ThinkingHandlingMode, maxInitialBuffer int) *KiroEventStreamParser {
	return &KiroEventStreamParser{
		thinking: ir.NewThinkingParser(mode, maxInitialBuffer),
	}
}

// Feed appends a raw chunk of the HTTP response body and returns every
// ir.UnifiedEvent that chunk completed. Partial JSON objects straddling two
// chunks stay buffered until the next call.
func (p *KiroEventStreamParser) Feed(chunk []byte) []ir.UnifiedEvent {
	p.buf.Write(chunk)
	buffered := p.buf.String()
	p.buf.Reset()

	var events []ir.UnifiedEvent
	for {
		pos, kind, found := findNextKiroPattern(buffered)
		if !found {
			break
		}
		end := findMatchingBrace(buffered, pos)
		if end < 0 {
			break
		}
		object := buffered[pos : end+1]
		buffered = buffered[end+1:]

		var data map[string]any
		if err := json.Unmarshal([]byte(object), &data); err != nil {
			continue
		}
		events = append(events, p.processEvent(data, kind)...)
	}
	p.buf.WriteString(buffered)
	return events
}

// Flush drains any pending <thinking> buffer once the upstream body ends,
// matching ThinkingParser.Flush's contract for the other providers.
func (p *KiroEventStreamParser) Flush() []ir.UnifiedEvent {
	out := p.thinking.Flush()
	return thinkingOutputsToEvents(out)
}

func (p *KiroEventStreamParser) processEvent(data map[string]any, kind kiroEventKind) []ir.UnifiedEvent {
	switch kind {
	case kiroEventContent:
		if _, isFollowup := data["followupPrompt"]; isFollowup {
			return nil
		}
		content, _ := data["content"].(string)
		if content == p.lastContent {
			return nil
		}
		p.lastContent = content
		return thinkingOutputsToEvents(p.thinking.Feed(content))

	case kiroEventToolStart:
		p.finalizeCurrentTool()
		name, _ := data["name"].(string)
		id, _ := data["toolUseId"].(string)
		if id == "" {
			id = "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		}
		p.currentTool = &kiroToolCall{id: id, name: name}
		p.currentTool.argsBuf.WriteString(stringifyKiroInput(data["input"]))
		if stop, _ := data["stop"].(bool); stop {
			return p.finalizeCurrentTool()
		}
		return nil

	case kiroEventToolInput:
		if p.currentTool != nil {
			p.currentTool.argsBuf.WriteString(stringifyKiroInput(data["input"]))
		}
		return nil

	case kiroEventToolStop:
		if stop, _ := data["stop"].(bool); stop {
			return p.finalizeCurrentTool()
		}
		return nil

	case kiroEventUsage:
		usage := kiroUsageFromMap(data["usage"])
		if usage == nil {
			return nil
		}
		return []ir.UnifiedEvent{{Type: ir.EventTypeFinish, Usage: usage, FinishReason: ir.FinishReasonStop}}

	case kiroEventContextUsage:
		// Context-window utilization has no place in ir.UnifiedEvent today;
		// the field exists upstream purely for the CLI's own progress bar.
		return nil
	}
	return nil
}

func (p *KiroEventStreamParser) finalizeCurrentTool() []ir.UnifiedEvent {
	if p.currentTool == nil || p.currentTool.finalized {
		return nil
	}
	tc := p.currentTool
	tc.finalized = true
	p.currentTool = nil

	args := strings.TrimSpace(tc.argsBuf.String())
	if args == "" || !json.Valid([]byte(args)) {
		args = "{}"
	}
	idx := p.toolCallIdx
	p.toolCallIdx++
	p.toolCalls = append(p.toolCalls, *tc)
	return []ir.UnifiedEvent{{
		Type:          ir.EventTypeToolCall,
		ToolCallIndex: idx,
		ToolCall:      &ir.ToolCall{ID: tc.id, Name: tc.name, Args: args},
	}}
}

func stringifyKiroInput(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func kiroUsageFromMap(v any) *ir.Usage {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	u := &ir.Usage{}
	if n, ok := m["inputTokens"].(float64); ok {
		u.PromptTokens = int(n)
	}
	if n, ok := m["outputTokens"].(float64); ok {
		u.CompletionTokens = int(n)
	}
	u.TotalTokens = u.PromptTokens + u.CompletionTokens
	return u
}

func thinkingOutputsToEvents(outs []ir.ThinkingParserOutput) []ir.UnifiedEvent {
	events := make([]ir.UnifiedEvent, 0, len(outs))
	for _, o := range outs {
		if o.Reasoning != "" {
			events = append(events, ir.UnifiedEvent{Type: ir.EventTypeReasoning, Reasoning: o.Reasoning})
		}
		if o.Content != "" {
			events = append(events, ir.UnifiedEvent{Type: ir.EventTypeToken, Content: o.Content})
		}
	}
	return events
}

func findNextKiroPattern(buf string) (int, kiroEventKind, bool) {
	earliestPos := -1
	var earliestKind kiroEventKind
	for _, pat := range kiroPatterns {
		if idx := strings.Index(buf, pat.prefix); idx >= 0 {
			if earliestPos == -1 || idx < earliestPos {
				earliestPos = idx
				earliestKind = pat.kind
			}
		}
	}
	if earliestPos == -1 {
		return 0, 0, false
	}
	return earliestPos, earliestKind, true
}

// findMatchingBrace returns the index of the '}' that closes the '{' at
// start, honoring quoted strings and escapes, or -1 if the buffer doesn't
// yet contain the full object.
func findMatchingBrace(buf string, start int) int {
	if start >= len(buf) || buf[start] != '{' {
		return -1
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(buf); i++ {
		c := buf[i]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
