// Package lorem adapts the meridian-llm-go lorem provider: a key-less,
// deterministic-latency model used in development and end-to-end tests.
package lorem

import (
	"context"
	"fmt"
	"strings"
	"time"

	llmprovider "github.com/haowjy/meridian-llm-go"
	"github.com/haowjy/meridian-llm-go/providers/lorem"

	"llmarena/internal/domain/models/llm"
	domainllm "llmarena/internal/domain/services/llm"
	"llmarena/internal/service/llm/normalize"
)

const defaultMaxTokens = 256

// Provider wraps the library's lorem provider and implements the Provider interface.
type Provider struct {
	provider llmprovider.Provider
	models   []llm.ModelConfig
}

// NewProvider creates a lorem provider serving the given model table.
func NewProvider(models []llm.ModelConfig) *Provider {
	return &Provider{
		provider: lorem.NewProvider(),
		models:   models,
	}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "lorem"
}

// Models returns the provider's model table.
func (p *Provider) Models() []llm.ModelConfig {
	return p.models
}

// GetModel looks up a model by catalog id.
func (p *Provider) GetModel(id string) (*llm.ModelConfig, bool) {
	for i := range p.models {
		if p.models[i].ID == id {
			return &p.models[i], true
		}
	}
	return nil, false
}

// CallModel generates a complete lorem response.
func (p *Provider) CallModel(ctx context.Context, messages []llm.ModelMessage, model *llm.ModelConfig, opts *llm.CallOptions) (*llm.ModelResponse, error) {
	start := time.Now()

	resp, err := p.provider.GenerateResponse(ctx, convertToLibraryRequest(messages, model, opts))
	if err != nil {
		return nil, fmt.Errorf("lorem generation failed: %w", err)
	}

	var content, reasoning strings.Builder
	for _, block := range resp.Blocks {
		if block == nil || block.TextContent == nil {
			continue
		}
		switch block.BlockType {
		case "thinking":
			reasoning.WriteString(*block.TextContent)
		default:
			content.WriteString(*block.TextContent)
		}
	}

	return &llm.ModelResponse{
		Content:      content.String(),
		Reasoning:    reasoning.String(),
		ResponseTime: time.Since(start).Milliseconds(),
		TokenUsage: &llm.TokenUsage{
			Input:  resp.InputTokens,
			Output: resp.OutputTokens,
		},
	}, nil
}

// StreamModel streams a lorem response, emitting normalized chunks.
func (p *Provider) StreamModel(ctx context.Context, messages []llm.ModelMessage, model *llm.ModelConfig, opts *llm.CallOptions, emit domainllm.ChunkSink) (*llm.ModelResponse, error) {
	start := time.Now()

	events, err := p.provider.StreamResponse(ctx, convertToLibraryRequest(messages, model, opts))
	if err != nil {
		return nil, fmt.Errorf("lorem stream failed: %w", err)
	}

	var content, reasoning strings.Builder
	usage := &llm.TokenUsage{}

	for event := range events {
		if event.Error != nil {
			return nil, fmt.Errorf("lorem streaming error: %w", event.Error)
		}

		if event.Delta != nil {
			chunk, ok := normalize.Library(event.Delta.DeltaType, event.Delta.TextDelta)
			if ok {
				switch chunk.Kind {
				case llm.ChunkText:
					content.WriteString(chunk.Payload)
				case llm.ChunkReasoning:
					reasoning.WriteString(chunk.Payload)
				}
				emit(chunk)
			}
		}

		if event.Metadata != nil {
			usage.Input = event.Metadata.InputTokens
			usage.Output = event.Metadata.OutputTokens
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
	}, nil
}

// convertToLibraryRequest converts canonical messages to the library request.
// The library only knows user/assistant turns, so system and context content is folded into user text.
func convertToLibraryRequest(messages []llm.ModelMessage, model *llm.ModelConfig, opts *llm.CallOptions) *llmprovider.GenerateRequest {
	system, rest := llm.SplitSystem(llm.MergeContextMessages(messages))

	libMessages := make([]llmprovider.Message, 0, len(rest))
	for i, msg := range rest {
		text := msg.Content
		if i == 0 && system != "" {
			text = system + "\n\n" + text
		}

		role := llm.RoleUser
		if msg.Role == llm.RoleAssistant {
			role = llm.RoleAssistant
		}

		libMessages = append(libMessages, llmprovider.Message{
			Role: role,
			Blocks: []*llmprovider.Block{
				{
					BlockType:   "text",
					TextContent: &text,
				},
			},
		})
	}

	maxTokens := opts.GetMaxTokens(defaultMaxTokens)
	thinking := model.Capabilities.Reasoning

	return &llmprovider.GenerateRequest{
		Messages: libMessages,
		Model:    model.Model,
		Params: &llmprovider.RequestParams{
			MaxTokens:       &maxTokens,
			ThinkingEnabled: &thinking,
		},
	}
}
