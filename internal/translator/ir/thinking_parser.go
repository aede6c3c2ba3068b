package ir

import "strings"

// ThinkingHandlingMode controls how extracted <thinking> spans are exposed
// downstream. Configured via FAKE_REASONING_HANDLING (see SPEC_FULL.md §4.8).
type ThinkingHandlingMode string

const (
	ThinkingHandlingAsReasoning ThinkingHandlingMode = "as_reasoning_content"
	ThinkingHandlingRemove      ThinkingHandlingMode = "remove"
	ThinkingHandlingPass        ThinkingHandlingMode = "pass"
	ThinkingHandlingStripTags   ThinkingHandlingMode = "strip_tags"
)

type thinkingParserState int

const (
	statePreContent thinkingParserState = iota
	stateInThinking
	stateStreaming
)

// openTags are the recognized thinking-span openers, tried in order at the
// start of a response (after optional leading whitespace).
var openTags = []string{"<thinking>", "<think>", "<reasoning>", "<thought>"}

var closeTagFor = map[string]string{
	"<thinking>":  "</thinking>",
	"<think>":     "</think>",
	"<reasoning>": "</reasoning>",
	"<thought>":   "</thought>",
}

// ThinkingParserOutput is one piece of output produced by a call to
// ThinkingParser.Feed or ThinkingParser.Flush.
type ThinkingParserOutput struct {
	Content       string
	Reasoning     string
	FirstReasoning bool
	LastReasoning  bool
}

// ThinkingParser implements the streaming <thinking> tag extraction state
// machine from SPEC_FULL.md §4.2. One instance owns all mutable state for a
// single connection/response; there is no other shared state, matching the
// StreamContext flattening pattern the rest of this codebase follows.
type ThinkingParser struct {
	state   thinkingParserState
	mode    ThinkingHandlingMode
	maxInitialBuffer int
	maxTagLen        int

	preBuf       strings.Builder
	thinkBuf     strings.Builder
	openTag      string
	closeTag     string
	emittedAnyReasoning bool
}

// NewThinkingParser constructs a parser. initialBufferSize is N from
// SPEC_FULL.md §4.2 (default 20 when <= 0).
func NewThinkingParser(mode ThinkingHandlingMode, initialBufferSize int) *ThinkingParser {
	if initialBufferSize <= 0 {
		initialBufferSize = 20
	}
	maxTagLen := 0
	for _, t := range openTags {
		if len(t) > maxTagLen {
			maxTagLen = len(t)
		}
	}
	for _, t := range closeTagFor {
		if len(t) > maxTagLen {
			maxTagLen = len(t)
		}
	}
	return &ThinkingParser{
		state:            statePreContent,
		mode:             mode,
		maxInitialBuffer: initialBufferSize,
		maxTagLen:        maxTagLen,
	}
}

// Feed processes one chunk of plain-text content as it arrives and returns
// zero or more outputs. Bytes in equal bytes out (modulo the handling mode).
func (p *ThinkingParser) Feed(text string) []ThinkingParserOutput {
	var out []ThinkingParserOutput
	for len(text) > 0 {
		switch p.state {
		case statePreContent:
			text = p.feedPreContent(text, &out)
		case stateInThinking:
			text = p.feedInThinking(text, &out)
		case stateStreaming:
			out = append(out, ThinkingParserOutput{Content: text})
			text = ""
		}
	}
	return out
}

func (p *ThinkingParser) feedPreContent(text string, out *[]ThinkingParserOutput) string {
	p.preBuf.WriteString(text)
	buf := p.preBuf.String()
	trimmed := strings.TrimLeft(buf, " \t\r\n")

	for _, tag := range openTags {
		if strings.HasPrefix(trimmed, tag) {
			p.openTag = tag
			p.closeTag = closeTagFor[tag]
			p.state = stateInThinking
			remainder := trimmed[len(tag):]
			p.preBuf.Reset()
			return remainder
		}
	}

	if canBePrefix(trimmed, openTags) && len(trimmed) <= p.maxInitialBuffer {
		// Keep buffering; not enough bytes yet to decide.
		return ""
	}

	// No open tag possible, or buffer exceeded N: flush as content.
	p.preBuf.Reset()
	p.state = stateStreaming
	if buf != "" {
		*out = append(*out, ThinkingParserOutput{Content: buf})
	}
	return ""
}

func (p *ThinkingParser) feedInThinking(text string, out *[]ThinkingParserOutput) string {
	p.thinkBuf.WriteString(text)
	buf := p.thinkBuf.String()

	if idx := strings.Index(buf, p.closeTag); idx >= 0 {
		reasoning := buf[:idx]
		remainder := strings.TrimLeft(buf[idx+len(p.closeTag):], " \t\r\n")
		p.thinkBuf.Reset()
		p.state = stateStreaming
		p.emitReasoning(out, reasoning, true)
		if remainder != "" {
			*out = append(*out, ThinkingParserOutput{Content: remainder})
		}
		return ""
	}

	if len(buf) > 2*p.maxTagLen {
		keep := p.maxTagLen
		flush := buf[:len(buf)-keep]
		p.thinkBuf.Reset()
		p.thinkBuf.WriteString(buf[len(buf)-keep:])
		p.emitReasoning(out, flush, false)
	}
	return ""
}

// Flush must be called at end-of-stream. It returns the final output(s) for
// any residual buffered text.
func (p *ThinkingParser) Flush() []ThinkingParserOutput {
	var out []ThinkingParserOutput
	switch p.state {
	case stateInThinking:
		residual := p.thinkBuf.String()
		p.thinkBuf.Reset()
		if residual != "" || p.emittedAnyReasoning {
			p.emitReasoning(&out, residual, true)
		}
	case statePreContent:
		residual := p.preBuf.String()
		p.preBuf.Reset()
		if residual != "" {
			out = append(out, ThinkingParserOutput{Content: residual})
		}
	}
	return out
}

func (p *ThinkingParser) emitReasoning(out *[]ThinkingParserOutput, text string, isLast bool) {
	first := !p.emittedAnyReasoning
	p.emittedAnyReasoning = true

	switch p.mode {
	case ThinkingHandlingRemove:
		return
	case ThinkingHandlingPass:
		content := text
		if first {
			content = p.openTag + content
		}
		if isLast {
			content = content + p.closeTag
		}
		*out = append(*out, ThinkingParserOutput{Content: content, FirstReasoning: first, LastReasoning: isLast})
	case ThinkingHandlingStripTags:
		*out = append(*out, ThinkingParserOutput{Content: text, FirstReasoning: first, LastReasoning: isLast})
	case ThinkingHandlingAsReasoning:
		fallthrough
	default:
		*out = append(*out, ThinkingParserOutput{Reasoning: text, FirstReasoning: first, LastReasoning: isLast})
	}
}

// canBePrefix reports whether s could still be a prefix of at least one tag
// in tags (i.e. every byte of s so far matches some tag), which is the
// PreContent "keep buffering" condition.
func canBePrefix(s string, tags []string) bool {
	if s == "" {
		return true
	}
	for _, t := range tags {
		n := len(s)
		if n > len(t) {
			n = len(t)
		}
		if s[:n] == t[:n] {
			return true
		}
	}
	return false
}
