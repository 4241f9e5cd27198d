package openaicompat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"llmarena/internal/domain/models/llm"
	domainllm "llmarena/internal/domain/services/llm"
	"llmarena/internal/service/llm/normalize"
)

// StreamModel streams a chat completion, emitting normalized chunks in arrival order.
func (p *Provider) StreamModel(ctx context.Context, messages []llm.ModelMessage, model *llm.ModelConfig, opts *llm.CallOptions, emit domainllm.ChunkSink) (*llm.ModelResponse, error) {
	start := time.Now()

	req := p.buildRequest(messages, model, opts)
	req.Stream = true
	req.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

	stream, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s streaming request failed: %w", p.config.Name, err)
	}
	defer stream.Close()

	var content, reasoning strings.Builder
	var usage *llm.TokenUsage
	var responseID string

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s streaming error: %w", p.config.Name, err)
		}

		if responseID == "" {
			responseID = resp.ID
		}
		if resp.Usage != nil {
			usage = convertUsage(resp.Usage)
		}

		for _, event := range deltaEvents(resp) {
			chunk, ok := normalize.ChatCompletions(event.eventType, event.payload)
			if !ok {
				continue
			}
			switch chunk.Kind {
			case llm.ChunkText:
				content.WriteString(chunk.Payload)
			case llm.ChunkReasoning:
				reasoning.WriteString(chunk.Payload)
			}
			emit(chunk)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &llm.ModelResponse{
		Content:      content.String(),
		Reasoning:    reasoning.String(),
		ResponseTime: time.Since(start).Milliseconds(),
		TokenUsage:   usage,
		ResponseID:   responseID,
	}, nil
}

type nativeEvent struct {
	eventType string
	payload   interface{}
}

// deltaEvents splits one streamed response into typed native events, reasoning first.
func deltaEvents(resp openai.ChatCompletionStreamResponse) []nativeEvent {
	var events []nativeEvent

	for _, choice := range resp.Choices {
		delta := choice.Delta
		if delta.ReasoningContent != "" {
			events = append(events, nativeEvent{normalize.ChatReasoningDelta, delta.ReasoningContent})
		}
		if delta.Content != "" {
			events = append(events, nativeEvent{normalize.ChatContentDelta, delta.Content})
		}
		if delta.Refusal != "" {
			events = append(events, nativeEvent{normalize.ChatRefusalDelta, delta.Refusal})
		}
		for _, call := range delta.ToolCalls {
			events = append(events, nativeEvent{normalize.ChatToolCallDelta, call.Function.Arguments})
		}
		if choice.FinishReason != "" {
			events = append(events, nativeEvent{normalize.ChatFinish, string(choice.FinishReason)})
		}
	}

	return events
}
