// Package normalize maps vendor stream events onto the canonical chunk vocabulary.
//
// Every function here is pure. Unknown event types yield no chunk so new
// vendor event kinds pass through harmlessly.
package normalize

import (
	"llmarena/internal/domain/models/llm"
)

// Func translates one native stream event into zero or one canonical chunk
type Func func(eventType string, payload interface{}) (llm.Chunk, bool)

// Chat-completions event types, as emitted by the OpenAI-compatible adapter
// for each populated field of a streamed choice delta.
const (
	ChatReasoningDelta = "reasoning_content.delta"
	ChatContentDelta   = "content.delta"
	ChatRefusalDelta   = "refusal.delta"
	ChatToolCallDelta  = "tool_call.delta"
	ChatFinish         = "finish"
	ChatError          = "error"
)

var chatCompletionsTable = map[string]llm.ChunkKind{
	ChatReasoningDelta: llm.ChunkReasoning,
	ChatContentDelta:   llm.ChunkText,
	ChatRefusalDelta:   llm.ChunkText,
	ChatToolCallDelta:  llm.ChunkJSON,
	ChatFinish:         llm.ChunkStatus,
	ChatError:          llm.ChunkError,
}

// OpenAI Responses API stream event types
const (
	ResponsesCreated               = "response.created"
	ResponsesInProgress            = "response.in_progress"
	ResponsesReasoningSummaryDelta = "response.reasoning_summary_text.delta"
	ResponsesReasoningDelta        = "response.reasoning_text.delta"
	ResponsesOutputTextDelta       = "response.output_text.delta"
	ResponsesRefusalDelta          = "response.refusal.delta"
	ResponsesFunctionArgsDelta     = "response.function_call_arguments.delta"
	ResponsesCompleted             = "response.completed"
	ResponsesIncomplete            = "response.incomplete"
	ResponsesFailed                = "response.failed"
	ResponsesError                 = "error"
)

var responsesTable = map[string]llm.ChunkKind{
	ResponsesCreated:               llm.ChunkStatus,
	ResponsesInProgress:            llm.ChunkStatus,
	ResponsesReasoningSummaryDelta: llm.ChunkReasoning,
	ResponsesReasoningDelta:        llm.ChunkReasoning,
	ResponsesOutputTextDelta:       llm.ChunkText,
	ResponsesRefusalDelta:          llm.ChunkText,
	ResponsesFunctionArgsDelta:     llm.ChunkJSON,
	ResponsesCompleted:             llm.ChunkStatus,
	ResponsesIncomplete:            llm.ChunkStatus,
	ResponsesFailed:                llm.ChunkError,
	ResponsesError:                 llm.ChunkError,
}

// Anthropic Messages stream event and delta types
const (
	AnthropicMessageStart      = "message_start"
	AnthropicContentBlockStart = "content_block_start"
	AnthropicTextDelta         = "text_delta"
	AnthropicThinkingDelta     = "thinking_delta"
	AnthropicInputJSONDelta    = "input_json_delta"
	AnthropicMessageDelta      = "message_delta"
	AnthropicError             = "error"
)

var anthropicTable = map[string]llm.ChunkKind{
	AnthropicMessageStart:      llm.ChunkStatus,
	AnthropicContentBlockStart: llm.ChunkStatus,
	AnthropicTextDelta:         llm.ChunkText,
	AnthropicThinkingDelta:     llm.ChunkReasoning,
	AnthropicInputJSONDelta:    llm.ChunkJSON,
	AnthropicMessageDelta:      llm.ChunkStatus,
	AnthropicError:             llm.ChunkError,
}

// Library (meridian-llm-go) delta types
const (
	LibraryTextDelta     = "text_delta"
	LibraryThinkingDelta = "thinking_delta"
	LibraryJSONDelta     = "json_delta"
	LibraryInputJSON     = "input_json_delta"
)

var libraryTable = map[string]llm.ChunkKind{
	LibraryTextDelta:     llm.ChunkText,
	LibraryThinkingDelta: llm.ChunkReasoning,
	LibraryJSONDelta:     llm.ChunkJSON,
	LibraryInputJSON:     llm.ChunkJSON,
}

// ChatCompletions normalizes OpenAI-compatible chat-completions stream events
func ChatCompletions(eventType string, payload interface{}) (llm.Chunk, bool) {
	return translate(chatCompletionsTable, eventType, payload)
}

// Responses normalizes OpenAI Responses API stream events.
// Delta events carry their text as the payload; terminal events may carry none.
func Responses(eventType string, payload interface{}) (llm.Chunk, bool) {
	return translate(responsesTable, eventType, payload)
}

// Anthropic normalizes Anthropic Messages stream events
func Anthropic(eventType string, payload interface{}) (llm.Chunk, bool) {
	return translate(anthropicTable, eventType, payload)
}

// Library normalizes meridian-llm-go stream deltas
func Library(eventType string, payload interface{}) (llm.Chunk, bool) {
	return translate(libraryTable, eventType, payload)
}

func translate(table map[string]llm.ChunkKind, eventType string, payload interface{}) (llm.Chunk, bool) {
	kind, ok := table[eventType]
	if !ok {
		return llm.Chunk{}, false
	}

	text := ExtractText(payload)

	switch kind {
	case llm.ChunkStatus, llm.ChunkError:
		if text == "" {
			text = eventType
		}
	default:
		// Empty content deltas carry nothing worth relaying
		if text == "" {
			return llm.Chunk{}, false
		}
	}

	return llm.Chunk{Kind: kind, Payload: text}, true
}

// ExtractText pulls text from a loosely typed payload.
// Accepts a raw string, an object with "text", or an object with "content".
// Anything else yields "".
func ExtractText(payload interface{}) string {
	switch p := payload.(type) {
	case string:
		return p
	case *string:
		if p == nil {
			return ""
		}
		return *p
	case map[string]interface{}:
		if s, ok := p["text"].(string); ok {
			return s
		}
		if s, ok := p["content"].(string); ok {
			return s
		}
	case map[string]string:
		if s, ok := p["text"]; ok {
			return s
		}
		if s, ok := p["content"]; ok {
			return s
		}
	}
	return ""
}
