package anthropic

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"

	"llmarena/internal/domain/models/llm"
)

func testModel(reasoning bool) *llm.ModelConfig {
	return &llm.ModelConfig{
		ID:       "claude-haiku-4-5-20251001",
		Provider: "anthropic",
		Model:    "claude-haiku-4-5-20251001",
		Capabilities: llm.ModelCapabilities{
			Reasoning: reasoning,
			Streaming: true,
		},
		Limits: llm.ModelLimits{MaxTokens: 64000},
	}
}

func TestConvertToAnthropicMessages(t *testing.T) {
	messages := []llm.ModelMessage{
		{Role: llm.RoleSystem, Content: "be terse"},
		{Role: llm.RoleContext, Content: "topic: tabs vs spaces"},
		{Role: llm.RoleUser, Content: "argue"},
		{Role: llm.RoleAssistant, Content: "tabs"},
		{Role: llm.RoleUser, Content: "again"},
	}

	system, converted, err := convertToAnthropicMessages(messages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if system != "be terse" {
		t.Errorf("system = %q", system)
	}
	if len(converted) != 3 {
		t.Fatalf("expected 3 messages (context merged into user), got %d", len(converted))
	}
	if converted[0].Role != "user" || converted[1].Role != "assistant" || converted[2].Role != "user" {
		t.Errorf("unexpected roles: %s %s %s", converted[0].Role, converted[1].Role, converted[2].Role)
	}
}

func TestConvertToAnthropicMessages_SystemOnly(t *testing.T) {
	_, _, err := convertToAnthropicMessages([]llm.ModelMessage{{Role: llm.RoleSystem, Content: "x"}})
	if err == nil {
		t.Fatal("expected error when no conversational messages remain")
	}
}

func TestBuildParams_Thinking(t *testing.T) {
	temp := 0.3
	maxTokens := 1000

	tests := []struct {
		name         string
		reasoning    bool
		opts         *llm.CallOptions
		wantThinking bool
		wantTemp     bool
		wantMinMax   int64
	}{
		{
			name:       "defaults",
			reasoning:  false,
			opts:       nil,
			wantMinMax: defaultMaxTokens,
		},
		{
			name:       "temperature without thinking",
			reasoning:  true,
			opts:       &llm.CallOptions{Temperature: &temp},
			wantTemp:   true,
			wantMinMax: defaultMaxTokens,
		},
		{
			name:         "effort enables thinking and raises max tokens above budget",
			reasoning:    true,
			opts:         &llm.CallOptions{ReasoningEffort: llm.ReasoningEffortMedium, MaxTokens: &maxTokens, Temperature: &temp},
			wantThinking: true,
			wantTemp:     false,
			wantMinMax:   8192 + 1,
		},
		{
			name:         "summary alone enables thinking",
			reasoning:    true,
			opts:         &llm.CallOptions{ReasoningSummary: llm.ReasoningSummaryDetailed, Temperature: &temp},
			wantThinking: true,
			wantTemp:     false,
			wantMinMax:   16384 + 1,
		},
		{
			name:       "effort ignored for non-reasoning model",
			reasoning:  false,
			opts:       &llm.CallOptions{ReasoningEffort: llm.ReasoningEffortHigh},
			wantMinMax: defaultMaxTokens,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params, err := buildParams([]llm.ModelMessage{{Role: llm.RoleUser, Content: "hi"}}, testModel(tt.reasoning), tt.opts)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			hasThinking := params.Thinking.OfEnabled != nil
			if hasThinking != tt.wantThinking {
				t.Errorf("thinking = %v, want %v", hasThinking, tt.wantThinking)
			}
			if params.Temperature.Valid() != tt.wantTemp {
				t.Errorf("temperature set = %v, want %v", params.Temperature.Valid(), tt.wantTemp)
			}
			if params.MaxTokens < tt.wantMinMax {
				t.Errorf("max tokens = %d, want >= %d", params.MaxTokens, tt.wantMinMax)
			}
		})
	}
}

const anthropicStream = `event: message_start
data: {"type":"message_start","message":{"id":"msg_123","type":"message","role":"assistant","model":"claude-haiku-4-5-20251001","content":[],"stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":12,"output_tokens":1}}}

event: content_block_start
data: {"type":"content_block_start","index":0,"content_block":{"type":"thinking","thinking":"","signature":""}}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"thinking_delta","thinking":"Consider both sides."}}

event: content_block_stop
data: {"type":"content_block_stop","index":0}

event: content_block_start
data: {"type":"content_block_start","index":1,"content_block":{"type":"text","text":""}}

event: content_block_delta
data: {"type":"content_block_delta","index":1,"delta":{"type":"text_delta","text":"Tabs "}}

event: content_block_delta
data: {"type":"content_block_delta","index":1,"delta":{"type":"text_delta","text":"win."}}

event: content_block_stop
data: {"type":"content_block_stop","index":1}

event: message_delta
data: {"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":9}}

event: message_stop
data: {"type":"message_stop"}

`

func TestStreamModel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, anthropicStream)
	}))
	defer server.Close()

	provider, err := NewProvider("test-key", []llm.ModelConfig{*testModel(true)}, option.WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	var chunks []llm.Chunk
	resp, err := provider.StreamModel(context.Background(),
		[]llm.ModelMessage{{Role: llm.RoleUser, Content: "tabs or spaces?"}},
		testModel(true), nil,
		func(c llm.Chunk) { chunks = append(chunks, c) })
	if err != nil {
		t.Fatalf("StreamModel: %v", err)
	}

	var reasoning, text strings.Builder
	for _, c := range chunks {
		switch c.Kind {
		case llm.ChunkReasoning:
			reasoning.WriteString(c.Payload)
		case llm.ChunkText:
			text.WriteString(c.Payload)
		}
	}

	if reasoning.String() != "Consider both sides." {
		t.Errorf("reasoning chunks = %q", reasoning.String())
	}
	if text.String() != "Tabs win." {
		t.Errorf("text chunks = %q", text.String())
	}
	if resp.Content != "Tabs win." || resp.Reasoning != "Consider both sides." {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.ResponseID != "msg_123" {
		t.Errorf("response id = %q", resp.ResponseID)
	}
	if resp.TokenUsage == nil || resp.TokenUsage.Input != 12 || resp.TokenUsage.Output != 9 {
		t.Errorf("unexpected usage: %+v", resp.TokenUsage)
	}
}

func TestNewProvider_RequiresKey(t *testing.T) {
	if _, err := NewProvider("", nil); err == nil {
		t.Fatal("expected error for empty API key")
	}
}
