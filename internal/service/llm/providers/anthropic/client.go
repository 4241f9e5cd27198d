package anthropic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"llmarena/internal/domain/models/llm"
)

const defaultMaxTokens = 4096

// Provider implements the Provider interface for Anthropic (Claude) models.
type Provider struct {
	client *anthropic.Client
	models []llm.ModelConfig
}

// NewProvider creates a new Anthropic provider with the given API key and model table.
func NewProvider(apiKey string, models []llm.ModelConfig, opts ...option.RequestOption) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	opts = append([]option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}, opts...)
	client := anthropic.NewClient(opts...)

	return &Provider{
		client: &client,
		models: models,
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "anthropic"
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

// CallModel generates a complete response from Claude.
func (p *Provider) CallModel(ctx context.Context, messages []llm.ModelMessage, model *llm.ModelConfig, opts *llm.CallOptions) (*llm.ModelResponse, error) {
	start := time.Now()

	apiParams, err := buildParams(messages, model, opts)
	if err != nil {
		return nil, err
	}

	message, err := p.client.Messages.New(ctx, apiParams)
	if err != nil {
		return nil, fmt.Errorf("anthropic API call failed: %w", err)
	}

	response := convertFromAnthropicMessage(message)
	response.ResponseTime = time.Since(start).Milliseconds()
	return response, nil
}

// buildParams converts canonical messages and options into Anthropic request parameters.
func buildParams(messages []llm.ModelMessage, model *llm.ModelConfig, opts *llm.CallOptions) (anthropic.MessageNewParams, error) {
	system, converted, err := convertToAnthropicMessages(messages)
	if err != nil {
		return anthropic.MessageNewParams{}, fmt.Errorf("failed to convert messages: %w", err)
	}

	maxTokens := opts.GetMaxTokens(defaultMaxTokens)
	if model.Limits.MaxTokens > 0 && maxTokens > model.Limits.MaxTokens {
		maxTokens = model.Limits.MaxTokens
	}

	apiParams := anthropic.MessageNewParams{
		Model:     anthropic.Model(model.Model),
		Messages:  converted,
		MaxTokens: int64(maxTokens),
	}

	if system != "" {
		apiParams.System = []anthropic.TextBlockParam{
			{
				Text: system,
			},
		}
	}

	// Thinking mode - effort level maps to a token budget
	budget := 0
	if model.Capabilities.Reasoning {
		budget = opts.ReasoningBudgetTokens()
	}
	if budget > 0 {
		if apiParams.MaxTokens <= int64(budget) {
			apiParams.MaxTokens = int64(budget + defaultMaxTokens)
		}
		apiParams.Thinking = anthropic.ThinkingConfigParamOfEnabled(int64(budget))
	} else if opts != nil && opts.Temperature != nil {
		// Temperature is only accepted with thinking disabled
		apiParams.Temperature = anthropic.Float(*opts.Temperature)
	}

	return apiParams, nil
}

// convertToAnthropicMessages converts canonical messages to Anthropic SDK format.
// System messages are returned separately; context messages are merged into user turns.
func convertToAnthropicMessages(messages []llm.ModelMessage) (string, []anthropic.MessageParam, error) {
	system, rest := llm.SplitSystem(llm.MergeContextMessages(messages))

	result := make([]anthropic.MessageParam, 0, len(rest))
	for i, msg := range rest {
		block := anthropic.NewTextBlock(msg.Content)

		switch msg.Role {
		case llm.RoleUser:
			result = append(result, anthropic.NewUserMessage(block))
		case llm.RoleAssistant:
			result = append(result, anthropic.NewAssistantMessage(block))
		default:
			return "", nil, fmt.Errorf("message %d: unsupported role '%s'", i, msg.Role)
		}
	}

	if len(result) == 0 {
		return "", nil, fmt.Errorf("at least one user message is required")
	}

	return system, result, nil
}

// convertFromAnthropicMessage converts a (possibly accumulated) Anthropic message to a ModelResponse.
func convertFromAnthropicMessage(msg *anthropic.Message) *llm.ModelResponse {
	var content, reasoning strings.Builder

	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			content.WriteString(block.Text)
		case "thinking":
			reasoning.WriteString(block.Thinking)
		}
	}

	return &llm.ModelResponse{
		Content:   content.String(),
		Reasoning: reasoning.String(),
		TokenUsage: &llm.TokenUsage{
			Input:  int(msg.Usage.InputTokens),
			Output: int(msg.Usage.OutputTokens),
		},
		ResponseID: msg.ID,
	}
}
