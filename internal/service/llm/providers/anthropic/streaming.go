package anthropic

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"llmarena/internal/domain/models/llm"
	domainllm "llmarena/internal/domain/services/llm"
	"llmarena/internal/service/llm/normalize"
)

// StreamModel streams a response from Claude, emitting normalized chunks as deltas arrive.
func (p *Provider) StreamModel(ctx context.Context, messages []llm.ModelMessage, model *llm.ModelConfig, opts *llm.CallOptions, emit domainllm.ChunkSink) (*llm.ModelResponse, error) {
	start := time.Now()

	apiParams, err := buildParams(messages, model, opts)
	if err != nil {
		return nil, err
	}

	stream := p.client.Messages.NewStreaming(ctx, apiParams)
	defer stream.Close()

	// Accumulator for final message metadata
	message := anthropic.Message{}

	for stream.Next() {
		event := stream.Current()

		if err := message.Accumulate(event); err != nil {
			return nil, fmt.Errorf("failed to accumulate message: %w", err)
		}

		eventType, payload := classifyStreamEvent(event)
		if chunk, ok := normalize.Anthropic(eventType, payload); ok {
			emit(chunk)
		}
	}

	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("anthropic streaming error: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	response := convertFromAnthropicMessage(&message)
	response.ResponseTime = time.Since(start).Milliseconds()
	return response, nil
}

// classifyStreamEvent reduces an Anthropic stream event to (type, payload) for the normalizer.
//
// Anthropic stream events include:
// - MessageStart: message metadata (id, model, role)
// - ContentBlockStart: new content block (text, thinking, tool_use)
// - ContentBlockDelta: text_delta, thinking_delta, input_json_delta, signature_delta
// - MessageDelta: stop_reason
// - ContentBlockStop / MessageStop: structural only
func classifyStreamEvent(event anthropic.MessageStreamEventUnion) (string, interface{}) {
	switch e := event.AsAny().(type) {
	case anthropic.MessageStartEvent:
		return normalize.AnthropicMessageStart, "started"

	case anthropic.ContentBlockStartEvent:
		return normalize.AnthropicContentBlockStart, string(e.ContentBlock.Type)

	case anthropic.ContentBlockDeltaEvent:
		switch e.Delta.Type {
		case normalize.AnthropicTextDelta:
			return e.Delta.Type, e.Delta.Text
		case normalize.AnthropicThinkingDelta:
			return e.Delta.Type, e.Delta.Thinking
		case normalize.AnthropicInputJSONDelta:
			return e.Delta.Type, e.Delta.PartialJSON
		}
		return e.Delta.Type, nil

	case anthropic.MessageDeltaEvent:
		return normalize.AnthropicMessageDelta, string(e.Delta.StopReason)
	}

	return event.Type, nil
}
