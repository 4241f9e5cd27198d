// Package openaicompat adapts every vendor that speaks the OpenAI
// chat-completions protocol (OpenAI, xAI, DeepSeek, OpenRouter).
package openaicompat

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"llmarena/internal/domain/models/llm"
)

const defaultMaxTokens = 4096

// Base URLs for OpenAI-compatible vendors
const (
	OpenAIBaseURL     = "https://api.openai.com/v1"
	XAIBaseURL        = "https://api.x.ai/v1"
	DeepSeekBaseURL   = "https://api.deepseek.com/v1"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

// Config describes one OpenAI-compatible vendor
type Config struct {
	Name    string
	APIKey  string
	BaseURL string
	Models  []llm.ModelConfig

	// SupportsReasoningEffort sends reasoning_effort to reasoning models
	SupportsReasoningEffort bool
	// SupportsVerbosity sends verbosity to gpt-5 family models
	SupportsVerbosity bool

	HTTPClient *http.Client
}

// Provider implements the Provider interface over the chat-completions API.
type Provider struct {
	client *openai.Client
	config Config
}

// NewProvider creates a provider for one OpenAI-compatible vendor.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("provider name is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s API key is required", cfg.Name)
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		clientConfig.HTTPClient = cfg.HTTPClient
	}

	return &Provider{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return p.config.Name
}

// Models returns the provider's model table.
func (p *Provider) Models() []llm.ModelConfig {
	return p.config.Models
}

// GetModel looks up a model by catalog id.
func (p *Provider) GetModel(id string) (*llm.ModelConfig, bool) {
	for i := range p.config.Models {
		if p.config.Models[i].ID == id {
			return &p.config.Models[i], true
		}
	}
	return nil, false
}

// CallModel performs a non-streaming chat completion.
func (p *Provider) CallModel(ctx context.Context, messages []llm.ModelMessage, model *llm.ModelConfig, opts *llm.CallOptions) (*llm.ModelResponse, error) {
	start := time.Now()

	req := p.buildRequest(messages, model, opts)

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s API call failed: %w", p.config.Name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s returned no choices", p.config.Name)
	}

	choice := resp.Choices[0]
	content := choice.Message.Content
	if content == "" && choice.Message.Refusal != "" {
		content = choice.Message.Refusal
	}

	return &llm.ModelResponse{
		Content:      content,
		Reasoning:    choice.Message.ReasoningContent,
		ResponseTime: time.Since(start).Milliseconds(),
		TokenUsage:   convertUsage(&resp.Usage),
		ResponseID:   resp.ID,
	}, nil
}

// buildRequest converts canonical messages and options into a chat-completions request.
func (p *Provider) buildRequest(messages []llm.ModelMessage, model *llm.ModelConfig, opts *llm.CallOptions) openai.ChatCompletionRequest {
	maxTokens := opts.GetMaxTokens(defaultMaxTokens)
	if model.Limits.MaxTokens > 0 && maxTokens > model.Limits.MaxTokens {
		maxTokens = model.Limits.MaxTokens
	}

	req := openai.ChatCompletionRequest{
		Model:               model.Model,
		Messages:            convertMessages(messages),
		MaxCompletionTokens: maxTokens,
	}

	if opts != nil && opts.Temperature != nil && !IsReasoningModelName(model.Model) {
		req.Temperature = float32(*opts.Temperature)
		// Temperature is omitempty in go-openai, so an explicit 0 becomes the smallest
		// non-zero value instead of silently falling back to the vendor default.
		if req.Temperature == 0 {
			req.Temperature = math.SmallestNonzeroFloat32
		}
	}

	// Chat completions has no reasoning summary parameter; ReasoningSummary is not sent
	if model.Capabilities.Reasoning && p.config.SupportsReasoningEffort && opts != nil && opts.ReasoningEffort != "" {
		req.ReasoningEffort = opts.ReasoningEffort
	}

	// Only the gpt-5 family accepts verbosity
	if p.config.SupportsVerbosity && strings.HasPrefix(model.Model, "gpt-5") && opts != nil && opts.TextVerbosity != "" {
		req.Verbosity = opts.TextVerbosity
	}

	return req
}

// convertMessages maps canonical roles onto chat-completions roles.
// Context messages have no native role and are merged into user content.
func convertMessages(messages []llm.ModelMessage) []openai.ChatCompletionMessage {
	merged := llm.MergeContextMessages(messages)
	result := make([]openai.ChatCompletionMessage, 0, len(merged))

	for _, msg := range merged {
		role := openai.ChatMessageRoleUser
		switch msg.Role {
		case llm.RoleSystem:
			role = openai.ChatMessageRoleSystem
		case llm.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		result = append(result, openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}

	return result
}

func convertUsage(usage *openai.Usage) *llm.TokenUsage {
	if usage == nil {
		return nil
	}

	out := &llm.TokenUsage{
		Input:  usage.PromptTokens,
		Output: usage.CompletionTokens,
	}
	if usage.CompletionTokensDetails != nil && usage.CompletionTokensDetails.ReasoningTokens > 0 {
		reasoning := usage.CompletionTokensDetails.ReasoningTokens
		out.Reasoning = &reasoning
	}
	return out
}

// IsReasoningModelName reports whether a vendor model string belongs to a reasoning family
// that only accepts default sampling parameters.
func IsReasoningModelName(model string) bool {
	for _, prefix := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}
