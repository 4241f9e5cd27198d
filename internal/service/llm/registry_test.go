package llm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"llmarena/internal/domain"
	llmModels "llmarena/internal/domain/models/llm"
	domainllm "llmarena/internal/domain/services/llm"
	"llmarena/internal/observability"
	"llmarena/internal/service/llm/breaker"
)

type fakeProvider struct {
	name   string
	models []llmModels.ModelConfig
	calls  atomic.Int32

	// respond is used for both call modes; chunks are emitted before it returns when streaming
	respond func(ctx context.Context) (*llmModels.ModelResponse, error)
	chunks  []llmModels.Chunk
}

func (p *fakeProvider) Name() string { return p.name }
func (p *fakeProvider) Models() []llmModels.ModelConfig { return p.models }

func (p *fakeProvider) GetModel(id string) (*llmModels.ModelConfig, bool) {
	for i := range p.models {
		if p.models[i].ID == id {
			return &p.models[i], true
		}
	}
	return nil, false
}

func (p *fakeProvider) CallModel(ctx context.Context, _ []llmModels.ModelMessage, _ *llmModels.ModelConfig, _ *llmModels.CallOptions) (*llmModels.ModelResponse, error) {
	p.calls.Add(1)
	return p.respond(ctx)
}

func (p *fakeProvider) StreamModel(ctx context.Context, _ []llmModels.ModelMessage, _ *llmModels.ModelConfig, _ *llmModels.CallOptions, emit domainllm.ChunkSink) (*llmModels.ModelResponse, error) {
	p.calls.Add(1)
	for _, c := range p.chunks {
		emit(c)
	}
	return p.respond(ctx)
}

func okResponse(context.Context) (*llmModels.ModelResponse, error) {
	reasoning := 500_000
	return &llmModels.ModelResponse{
		Content:    "answer",
		TokenUsage: &llmModels.TokenUsage{Input: 1_000_000, Output: 1_000_000, Reasoning: &reasoning},
	}, nil
}

var errVendor = errors.New("vendor 500")

func failResponse(context.Context) (*llmModels.ModelResponse, error) {
	return nil, errVendor
}

func newFake(name string, ids ...string) *fakeProvider {
	p := &fakeProvider{name: name, respond: okResponse}
	for _, id := range ids {
		p.models = append(p.models, llmModels.ModelConfig{
			ID:       id,
			Name:     id,
			Provider: name,
			Model:    id,
			Pricing:  llmModels.ModelPricing{InputPerMillion: 1, OutputPerMillion: 4},
		})
	}
	return p
}

func newTestRegistry(t *testing.T, providers ...domainllm.Provider) (*ProviderRegistry, *observability.Metrics) {
	t.Helper()
	metrics := observability.NewMetrics()
	r := NewProviderRegistry(RegistryConfig{
		Breaker: breaker.Config{
			FailureThreshold: 2,
			RecoveryTimeout:  time.Minute,
			MonitoringPeriod: time.Minute,
		},
	}, metrics, slog.New(slog.NewTextHandler(io.Discard, nil)))

	for _, p := range providers {
		if err := r.Register(p); err != nil {
			t.Fatalf("Register(%s): %v", p.Name(), err)
		}
	}
	return r, metrics
}

var userPrompt = []llmModels.ModelMessage{{Role: llmModels.RoleUser, Content: "hi"}}

func TestRegister_RejectsDuplicates(t *testing.T) {
	r, _ := newTestRegistry(t, newFake("openai", "gpt-a"))

	if err := r.Register(newFake("openai", "gpt-b")); err == nil {
		t.Error("expected duplicate provider name to fail")
	}
	if err := r.Register(newFake("xai", "gpt-a")); err == nil {
		t.Error("expected duplicate model id to fail")
	}
}

func TestLookups(t *testing.T) {
	openai := newFake("openai", "gpt-a", "gpt-b")
	anthropic := newFake("anthropic", "claude-a")
	r, _ := newTestRegistry(t, openai, anthropic)

	models := r.GetAllModels()
	if len(models) != 3 {
		t.Fatalf("expected 3 models, got %d", len(models))
	}
	if models[0].ID != "gpt-a" || models[2].ID != "claude-a" {
		t.Errorf("unexpected model order: %v", models)
	}

	p, err := r.GetProviderByModelID("claude-a")
	if err != nil || p.Name() != "anthropic" {
		t.Errorf("GetProviderByModelID = %v, %v", p, err)
	}

	m, err := r.GetModelByID("gpt-b")
	if err != nil || m.Provider != "openai" {
		t.Errorf("GetModelByID = %+v, %v", m, err)
	}
}

func TestCallModel_UnknownModel(t *testing.T) {
	r, _ := newTestRegistry(t, newFake("openai", "gpt-a"))

	for _, id := range []string{"", "gpt-z", "claude-a"} {
		t.Run(id, func(t *testing.T) {
			_, err := r.CallModel(context.Background(), id, userPrompt, nil)
			var notFound *domain.ModelNotFoundError
			if !errors.As(err, &notFound) {
				t.Fatalf("expected ModelNotFoundError, got %v", err)
			}
			if notFound.ModelID != id {
				t.Errorf("model id = %q, want %q", notFound.ModelID, id)
			}
			if !errors.Is(err, domain.ErrNotFound) {
				t.Error("ModelNotFoundError should match ErrNotFound")
			}
		})
	}
}

func TestCallModel_Success(t *testing.T) {
	r, metrics := newTestRegistry(t, newFake("openai", "gpt-a"))

	resp, err := r.CallModel(context.Background(), "gpt-a", userPrompt, nil)
	if err != nil {
		t.Fatalf("CallModel: %v", err)
	}

	if resp.ResponseID == "" {
		t.Error("expected generated response id")
	}
	if resp.ModelConfig == nil || resp.ModelConfig.Pricing.OutputPerMillion != 4 {
		t.Errorf("expected config echo, got %+v", resp.ModelConfig)
	}
	// 1M input at $1, 1M output at $4, 0.5M reasoning billed at output price
	if resp.Cost == nil || resp.Cost.Total != 7 {
		t.Errorf("unexpected cost: %+v", resp.Cost)
	}

	got := testutil.ToFloat64(metrics.ProviderCalls.WithLabelValues("openai", "call", observability.OutcomeSuccess))
	if got != 1 {
		t.Errorf("success counter = %v, want 1", got)
	}
}

func TestCallModel_ProviderErrorAndBreaker(t *testing.T) {
	failing := newFake("openai", "gpt-a")
	failing.respond = failResponse
	healthy := newFake("anthropic", "claude-a")
	r, metrics := newTestRegistry(t, failing, healthy)
	ctx := context.Background()

	_, err := r.CallModel(ctx, "gpt-a", userPrompt, nil)
	var provErr *domain.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if provErr.Provider != "openai" || provErr.ModelID != "gpt-a" || provErr.FailureCount != 1 || provErr.CircuitBreakerState != "CLOSED" {
		t.Errorf("unexpected annotation: %+v", provErr)
	}
	if !errors.Is(err, errVendor) {
		t.Error("ProviderError should unwrap to the vendor error")
	}

	_, err = r.CallModel(ctx, "gpt-a", userPrompt, nil)
	if !errors.As(err, &provErr) || provErr.CircuitBreakerState != "OPEN" {
		t.Fatalf("expected ProviderError with OPEN state, got %v", err)
	}

	before := failing.calls.Load()
	_, err = r.CallModel(ctx, "gpt-a", userPrompt, nil)
	var cbErr *domain.CircuitBreakerError
	if !errors.As(err, &cbErr) {
		t.Fatalf("expected CircuitBreakerError, got %v", err)
	}
	if failing.calls.Load() != before {
		t.Error("adapter must not be invoked while the breaker is open")
	}

	// Other providers are isolated
	if _, err := r.CallModel(ctx, "claude-a", userPrompt, nil); err != nil {
		t.Errorf("healthy provider affected by open breaker: %v", err)
	}

	statuses := r.BreakerStatuses()
	if len(statuses) != 2 || statuses[0].State != "OPEN" || statuses[0].LastFailureTime == nil || statuses[1].State != "CLOSED" {
		t.Errorf("unexpected statuses: %+v", statuses)
	}

	if v := testutil.ToFloat64(metrics.BreakerState.WithLabelValues("openai")); v != 2 {
		t.Errorf("breaker gauge = %v, want 2", v)
	}
}

func TestCallModel_CancellationNotCounted(t *testing.T) {
	p := newFake("openai", "gpt-a")
	p.respond = func(ctx context.Context) (*llmModels.ModelResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	r, _ := newTestRegistry(t, p)

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := r.CallModel(ctx, "gpt-a", userPrompt, nil)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	}

	if s := r.BreakerStatuses()[0]; s.State != "CLOSED" || s.FailureCount != 0 {
		t.Errorf("cancellation counted against breaker: %+v", s)
	}
}

func TestCallModel_TimeoutCounts(t *testing.T) {
	p := newFake("openai", "gpt-a")
	p.respond = func(ctx context.Context) (*llmModels.ModelResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	r, _ := newTestRegistry(t, p)
	r.config.Timeout = 10 * time.Millisecond

	_, err := r.CallModel(context.Background(), "gpt-a", userPrompt, nil)
	var provErr *domain.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProviderError on timeout, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded cause, got %v", err)
	}
}

type recordedStream struct {
	statuses  []string
	reasoning []string
	content   []string
	complete  []*llmModels.StreamCompletion
	errs      []error
}

func (s *recordedStream) callbacks() domainllm.StreamCallbacks {
	return domainllm.StreamCallbacks{
		OnStatus:         func(phase, _ string) { s.statuses = append(s.statuses, phase) },
		OnReasoningChunk: func(d string) { s.reasoning = append(s.reasoning, d) },
		OnContentChunk:   func(d string) { s.content = append(s.content, d) },
		OnComplete:       func(c *llmModels.StreamCompletion) { s.complete = append(s.complete, c) },
		OnError:          func(err error) { s.errs = append(s.errs, err) },
	}
}

func TestCallModelStreaming(t *testing.T) {
	tests := []struct {
		name         string
		modelID      string
		respond      func(context.Context) (*llmModels.ModelResponse, error)
		wantComplete bool
		wantErr      interface{}
	}{
		{name: "success", modelID: "gpt-a", respond: okResponse, wantComplete: true},
		{name: "provider failure", modelID: "gpt-a", respond: failResponse, wantErr: &domain.ProviderError{}},
		{name: "unknown model", modelID: "nope", respond: okResponse, wantErr: &domain.ModelNotFoundError{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFake("openai", "gpt-a")
			p.respond = tt.respond
			p.chunks = []llmModels.Chunk{
				{Kind: llmModels.ChunkReasoning, Payload: "think"},
				{Kind: llmModels.ChunkText, Payload: "say"},
			}
			r, _ := newTestRegistry(t, p)

			rec := &recordedStream{}
			r.CallModelStreaming(context.Background(), tt.modelID, userPrompt, nil, rec.callbacks())

			if terminals := len(rec.complete) + len(rec.errs); terminals != 1 {
				t.Fatalf("expected exactly one terminal callback, got %d", terminals)
			}

			if tt.wantComplete {
				c := rec.complete[0]
				if c.ResponseID == "" || c.Cost == nil || c.Response.Content != "answer" {
					t.Errorf("unexpected completion: %+v", c)
				}
				if len(rec.reasoning) != 1 || len(rec.content) != 1 {
					t.Errorf("chunks not dispatched: %+v", rec)
				}
				return
			}

			switch tt.wantErr.(type) {
			case *domain.ProviderError:
				var target *domain.ProviderError
				if !errors.As(rec.errs[0], &target) {
					t.Errorf("expected ProviderError, got %v", rec.errs[0])
				}
			case *domain.ModelNotFoundError:
				var target *domain.ModelNotFoundError
				if !errors.As(rec.errs[0], &target) {
					t.Errorf("expected ModelNotFoundError, got %v", rec.errs[0])
				}
			}
		})
	}
}
