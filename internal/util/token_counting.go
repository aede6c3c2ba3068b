package util

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/meitianwang/llm-gateway/internal/translator/ir"
	"github.com/tiktoken-go/tokenizer"
)

// tiktokenCache caches tokenizer codecs to avoid re-initialization overhead.
var (
	tiktokenCache   = make(map[tokenizer.Encoding]tokenizer.Codec)
	tiktokenCacheMu sync.RWMutex
)

// Flat per-item token costs used when an upstream's own usage accounting
// isn't available yet (request-time estimation, before the real response
// lands). These are approximations, not a re-implementation of any
// provider's exact multimodal tokenizer.
const (
	// ImageTokenCost is Gemini's fixed cost for an inline image part.
	ImageTokenCost = 258
	// AudioTokenCostGemini is Gemini's fixed cost for an inline audio clip,
	// in addition to any transcript text it carries.
	AudioTokenCostGemini = 300
	// VideoTokenCostGemini is Gemini's fixed cost for a referenced video.
	VideoTokenCostGemini = 2000
	// DocTokenCostGemini is the fixed cost for a file attached to a tool
	// result (PDF, CSV, etc. attributed by reference rather than content).
	DocTokenCostGemini = 1000
	// ImageTokenCostOpenAI approximates OpenAI/Claude high-res image tiling
	// (85 + 170*tiles), averaged to a flat per-image estimate.
	ImageTokenCostOpenAI = 255

	// ThinkingModeOverhead is added to an estimate when a request enables
	// thinking but the upstream hasn't reported an actual reasoning token
	// count yet, so the estimate doesn't undercount by the full reasoning
	// budget.
	ThinkingModeOverhead = 512
)

// CountTokensFromIR estimates token usage for req using a tiktoken encoding
// chosen by model family. Used for OpenAI/Claude/Ollama-style requests;
// Gemini requests should prefer CountGeminiTokensFromIR, whose multimodal
// costs match Gemini's own accounting more closely.
func CountTokensFromIR(model string, req *ir.UnifiedChatRequest) int64 {
	if req == nil {
		return 0
	}

	enc, err := getTiktokenCodec(tiktokenEncodingForModel(model))
	if err != nil {
		return 0
	}

	var total int64
	tokensPerMessage := int64(3)

	if req.Instructions != "" {
		ids, _, _ := enc.Encode(req.Instructions)
		total += int64(len(ids)) + tokensPerMessage
	}

	for _, msg := range req.Messages {
		total += tokensPerMessage

		roleIDs, _, _ := enc.Encode(string(msg.Role))
		total += int64(len(roleIDs))

		text, imageCount, extra := flattenMessageForCounting(&msg)
		if text != "" {
			ids, _, _ := enc.Encode(text)
			total += int64(len(ids))
		}
		total += int64(imageCount * ImageTokenCostOpenAI)
		total += extra
	}

	if len(req.Tools) > 0 {
		toolsJSON, _ := json.Marshal(req.Tools)
		ids, _, _ := enc.Encode(string(toolsJSON))
		total += int64(len(ids)) + 10
	}

	if total > 0 {
		total += 3 // reply priming
	}

	return total
}

// CountGeminiTokensFromIR estimates token usage for req using Gemini's flat
// per-modality costs for images, audio, and video rather than OpenAI-style
// tiling, since Gemini bills those very differently from a vision-capable
// GPT model.
func CountGeminiTokensFromIR(req *ir.UnifiedChatRequest) int64 {
	if req == nil {
		return 0
	}

	enc, err := getTiktokenCodec(tokenizer.O200kBase)
	if err != nil {
		return 0
	}

	var total int64
	if req.Instructions != "" {
		ids, _, _ := enc.Encode(req.Instructions)
		total += int64(len(ids))
	}

	for _, msg := range req.Messages {
		for _, part := range msg.Content {
			switch part.Type {
			case ir.ContentTypeText:
				total += encodedLen(enc, part.Text)
			case ir.ContentTypeReasoning:
				total += encodedLen(enc, part.Reasoning)
				if len(part.ThoughtSignature) > 0 {
					total += int64(len(part.ThoughtSignature)) / 4
				}
			case ir.ContentTypeImage:
				total += ImageTokenCost
			case ir.ContentTypeAudio:
				total += AudioTokenCostGemini
				if part.Audio != nil {
					total += encodedLen(enc, part.Audio.Transcript)
				}
			case ir.ContentTypeVideo:
				total += VideoTokenCostGemini
			case ir.ContentTypeFile:
				total += DocTokenCostGemini
			case ir.ContentTypeToolResult:
				if part.ToolResult != nil {
					total += encodedLen(enc, part.ToolResult.Result)
					total += int64(len(part.ToolResult.Files)) * DocTokenCostGemini
					total += int64(len(part.ToolResult.Images)) * ImageTokenCost
				}
			case ir.ContentTypeExecutableCode:
				if part.CodeExecution != nil {
					total += encodedLen(enc, part.CodeExecution.Code)
				}
			case ir.ContentTypeCodeResult:
				if part.CodeExecution != nil {
					total += encodedLen(enc, part.CodeExecution.Output)
				}
			}
		}
		for _, tc := range msg.ToolCalls {
			total += encodedLen(enc, tc.Name) + encodedLen(enc, tc.Args)
		}
	}

	if len(req.Tools) > 0 {
		toolsJSON, _ := json.Marshal(req.Tools)
		total += encodedLen(enc, string(toolsJSON))
	}

	return total
}

func encodedLen(enc tokenizer.Codec, s string) int64 {
	if s == "" {
		return 0
	}
	ids, _, _ := enc.Encode(s)
	return int64(len(ids))
}

func getTiktokenCodec(encoding tokenizer.Encoding) (tokenizer.Codec, error) {
	tiktokenCacheMu.RLock()
	codec, ok := tiktokenCache[encoding]
	tiktokenCacheMu.RUnlock()
	if ok {
		return codec, nil
	}

	tiktokenCacheMu.Lock()
	defer tiktokenCacheMu.Unlock()
	if codec, ok := tiktokenCache[encoding]; ok {
		return codec, nil
	}

	codec, err := tokenizer.Get(encoding)
	if err != nil {
		return nil, err
	}
	tiktokenCache[encoding] = codec
	return codec, nil
}

func tiktokenEncodingForModel(model string) tokenizer.Encoding {
	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "gpt-5"),
		strings.Contains(lower, "gpt-4o"),
		strings.Contains(lower, "claude"),
		strings.Contains(lower, "antigravity"):
		return tokenizer.O200kBase
	case strings.Contains(lower, "gpt-4"),
		strings.Contains(lower, "gpt-3.5"),
		strings.Contains(lower, "turbo"):
		return tokenizer.Cl100kBase
	default:
		return tokenizer.O200kBase
	}
}

// knownGeminiModels lists the model IDs normalizeModel recognizes verbatim.
var knownGeminiModels = map[string]bool{
	"gemini-2.5-pro":   true,
	"gemini-2.0-flash": true,
	"gemini-1.5-pro":   true,
	"gemini-1.5-flash": true,
	"gemini-1.0-pro":   true,
}

// normalizeModel maps a possibly-aliased Gemini model name onto the
// canonical ID used for tokenizer/cost selection, falling back to the
// current default flash tier for anything unrecognized.
func normalizeModel(model string) string {
	if knownGeminiModels[model] {
		return model
	}
	if model == "gemini-pro" {
		return "gemini-1.0-pro"
	}
	return "gemini-2.5-flash"
}

// flattenMessageForCounting returns the message's text content, its inline
// image count, and any additional flat token cost (audio/video/doc) not
// captured by a tiktoken pass over text.
func flattenMessageForCounting(msg *ir.Message) (text string, imageCount int, extra int64) {
	var sb strings.Builder
	for _, part := range msg.Content {
		switch part.Type {
		case ir.ContentTypeText:
			sb.WriteString(part.Text)
		case ir.ContentTypeReasoning:
			sb.WriteString(part.Reasoning)
		case ir.ContentTypeCodeResult:
			if part.CodeExecution != nil {
				sb.WriteString(part.CodeExecution.Output)
			}
		case ir.ContentTypeExecutableCode:
			if part.CodeExecution != nil {
				sb.WriteString(part.CodeExecution.Code)
			}
		case ir.ContentTypeImage:
			if part.Image != nil {
				imageCount++
			}
		case ir.ContentTypeAudio:
			extra += AudioTokenCostGemini
			if part.Audio != nil {
				sb.WriteString(part.Audio.Transcript)
			}
		case ir.ContentTypeVideo:
			extra += VideoTokenCostGemini
		case ir.ContentTypeFile:
			if part.File != nil {
				sb.WriteString(part.File.FileData)
			}
		case ir.ContentTypeToolResult:
			if part.ToolResult != nil {
				fmt.Fprintf(&sb, "\nTool %s result: %s", part.ToolResult.ToolCallID, part.ToolResult.Result)
				imageCount += len(part.ToolResult.Images)
				extra += int64(len(part.ToolResult.Files)) * DocTokenCostGemini
			}
		}
	}

	for _, tc := range msg.ToolCalls {
		fmt.Fprintf(&sb, "\nCall tool %s(%s)", tc.Name, tc.Args)
	}

	return sb.String(), imageCount, extra
}
