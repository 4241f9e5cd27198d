package llm

import (
	"context"

	"llmarena/internal/domain/models/llm"
)

// Provider defines the interface that every vendor adapter must implement.
// An adapter owns its static model table and translates canonical calls into
// one outbound vendor request per call. Adapters never retry; failure
// isolation belongs to the registry's circuit breakers.
type Provider interface {
	// Name returns the provider name (e.g., "openai", "anthropic")
	Name() string

	// Models returns the provider's model table
	Models() []llm.ModelConfig

	// GetModel looks up one of the provider's models by catalog id
	GetModel(id string) (*llm.ModelConfig, bool)

	// CallModel performs a non-streaming call.
	// Any vendor HTTP/SDK failure is returned as an error; the registry classifies it.
	CallModel(ctx context.Context, messages []llm.ModelMessage, model *llm.ModelConfig, opts *llm.CallOptions) (*llm.ModelResponse, error)

	// StreamModel performs a streaming call, emitting normalized chunks in vendor order.
	// Returns the accumulated response once the vendor stream ends.
	StreamModel(ctx context.Context, messages []llm.ModelMessage, model *llm.ModelConfig, opts *llm.CallOptions, emit ChunkSink) (*llm.ModelResponse, error)
}

// ChunkSink receives normalized chunks from a streaming adapter
type ChunkSink func(chunk llm.Chunk)

// StreamCallbacks are invoked by ProviderRegistry.CallModelStreaming.
// Exactly one of OnComplete or OnError fires per call. Nil callbacks are skipped.
type StreamCallbacks struct {
	OnStatus         func(phase, message string)
	OnReasoningChunk func(delta string)
	OnContentChunk   func(delta string)
	OnJSONChunk      func(delta string)
	OnComplete       func(completion *llm.StreamCompletion)
	OnError          func(err error)
}

// Dispatch routes a chunk to the matching callback
func (c *StreamCallbacks) Dispatch(chunk llm.Chunk) {
	switch chunk.Kind {
	case llm.ChunkReasoning:
		if c.OnReasoningChunk != nil {
			c.OnReasoningChunk(chunk.Payload)
		}
	case llm.ChunkText:
		if c.OnContentChunk != nil {
			c.OnContentChunk(chunk.Payload)
		}
	case llm.ChunkJSON:
		if c.OnJSONChunk != nil {
			c.OnJSONChunk(chunk.Payload)
		}
	case llm.ChunkStatus:
		if c.OnStatus != nil {
			c.OnStatus("streaming", chunk.Payload)
		}
	case llm.ChunkError:
		// Vendor-reported in-band errors surface as status; the terminal error comes from the adapter's return.
		if c.OnStatus != nil {
			c.OnStatus("provider_error", chunk.Payload)
		}
	}
}

// ProviderRegistry is the single entry point for calling models.
// Every call is routed through the owning provider's circuit breaker.
type ProviderRegistry interface {
	GetAllModels() []llm.ModelConfig
	GetModelByID(id string) (*llm.ModelConfig, error)
	GetProviderByModelID(id string) (Provider, error)

	// CallModel returns domain.ModelNotFoundError, domain.CircuitBreakerError or domain.ProviderError on failure
	CallModel(ctx context.Context, modelID string, messages []llm.ModelMessage, opts *llm.CallOptions) (*llm.ModelResponse, error)

	// CallModelStreaming blocks until the stream ends and reports the outcome through callbacks
	CallModelStreaming(ctx context.Context, modelID string, messages []llm.ModelMessage, opts *llm.CallOptions, cb StreamCallbacks)

	// BreakerStatuses reports per-provider breaker observations
	BreakerStatuses() []BreakerStatus
}

// BreakerStatus is a read-only observation of one provider's breaker
type BreakerStatus struct {
	Provider        string  `json:"provider"`
	State           string  `json:"state"`
	FailureCount    int     `json:"failureCount"`
	LastFailureTime *string `json:"lastFailureTime,omitempty"`
}
