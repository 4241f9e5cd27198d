package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"llmarena/internal/domain"
	llmModels "llmarena/internal/domain/models/llm"
	domainllm "llmarena/internal/domain/services/llm"
	"llmarena/internal/observability"
	"llmarena/internal/service/llm/breaker"
)

const (
	modeCall   = "call"
	modeStream = "stream"
)

// RegistryConfig configures the provider registry
type RegistryConfig struct {
	// Breaker is applied to every registered provider (one instance each)
	Breaker breaker.Config

	// Timeout bounds a single provider call (0 = no bound beyond the caller's context)
	Timeout time.Duration
}

// ProviderRegistry holds every adapter plus one circuit breaker per adapter.
// It is the only path from the service layer to a vendor.
//
// Providers are registered at startup; lookups are read-locked afterwards.
type ProviderRegistry struct {
	mu         sync.RWMutex
	providers  map[string]domainllm.Provider
	breakers   map[string]*breaker.Breaker
	modelIndex map[string]string // model id -> provider name
	order      []string

	config  RegistryConfig
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewProviderRegistry creates an empty registry
func NewProviderRegistry(cfg RegistryConfig, metrics *observability.Metrics, logger *slog.Logger) *ProviderRegistry {
	return &ProviderRegistry{
		providers:  make(map[string]domainllm.Provider),
		breakers:   make(map[string]*breaker.Breaker),
		modelIndex: make(map[string]string),
		config:     cfg,
		metrics:    metrics,
		logger:     logger,
	}
}

// Register adds a provider and creates its breaker.
// Model ids must be unique across providers.
func (r *ProviderRegistry) Register(provider domainllm.Provider) error {
	name := provider.Name()
	if name == "" {
		return fmt.Errorf("provider name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("provider %q already registered", name)
	}
	for _, m := range provider.Models() {
		if owner, taken := r.modelIndex[m.ID]; taken {
			return fmt.Errorf("model %q already registered by provider %q", m.ID, owner)
		}
	}

	cfg := r.config.Breaker
	userHook := cfg.OnStateChange
	cfg.OnStateChange = func(provider string, from, to breaker.State) {
		r.logger.Warn("circuit breaker state change",
			"provider", provider,
			"from", string(from),
			"to", string(to),
		)
		if r.metrics != nil {
			r.metrics.BreakerTransitions.WithLabelValues(provider, string(from), string(to)).Inc()
			r.metrics.BreakerState.WithLabelValues(provider).Set(observability.BreakerStateValue(string(to)))
		}
		if userHook != nil {
			userHook(provider, from, to)
		}
	}

	r.providers[name] = provider
	r.breakers[name] = breaker.New(name, cfg)
	r.order = append(r.order, name)
	for _, m := range provider.Models() {
		r.modelIndex[m.ID] = name
	}
	if r.metrics != nil {
		r.metrics.BreakerState.WithLabelValues(name).Set(0)
	}

	return nil
}

// Providers returns registered provider names in registration order
func (r *ProviderRegistry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// GetAllModels returns every model across providers, grouped by provider in registration order
func (r *ProviderRegistry) GetAllModels() []llmModels.ModelConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var models []llmModels.ModelConfig
	for _, name := range r.order {
		models = append(models, r.providers[name].Models()...)
	}
	return models
}

// GetModelByID resolves a model id to its config
func (r *ProviderRegistry) GetModelByID(id string) (*llmModels.ModelConfig, error) {
	provider, err := r.GetProviderByModelID(id)
	if err != nil {
		return nil, err
	}
	model, ok := provider.GetModel(id)
	if !ok {
		return nil, &domain.ModelNotFoundError{ModelID: id}
	}
	return model, nil
}

// GetProviderByModelID resolves a model id to the adapter that owns it
func (r *ProviderRegistry) GetProviderByModelID(id string) (domainllm.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name, ok := r.modelIndex[id]
	if !ok {
		return nil, &domain.ModelNotFoundError{ModelID: id}
	}
	return r.providers[name], nil
}

// CallModel performs a non-streaming call through the owning provider's breaker
func (r *ProviderRegistry) CallModel(ctx context.Context, modelID string, messages []llmModels.ModelMessage, opts *llmModels.CallOptions) (*llmModels.ModelResponse, error) {
	provider, model, cb, err := r.resolve(modelID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	var resp *llmModels.ModelResponse
	err = cb.Execute(ctx, func(ctx context.Context) error {
		var callErr error
		resp, callErr = provider.CallModel(ctx, messages, model, opts)
		if callErr == nil && resp == nil {
			callErr = errors.New("provider returned no response")
		}
		return callErr
	})
	if err != nil {
		return nil, r.classify(ctx, cb, modelID, modeCall, start, err)
	}

	r.finish(resp, model, start, modeCall, cb.Name())
	r.logger.Debug("model call completed",
		"provider", cb.Name(),
		"model_id", modelID,
		"response_time_ms", resp.ResponseTime,
	)
	return resp, nil
}

// CallModelStreaming streams through the owning provider's breaker.
// It blocks until the stream ends and fires exactly one of cb.OnComplete or cb.OnError.
func (r *ProviderRegistry) CallModelStreaming(ctx context.Context, modelID string, messages []llmModels.ModelMessage, opts *llmModels.CallOptions, cb domainllm.StreamCallbacks) {
	provider, model, br, err := r.resolve(modelID)
	if err != nil {
		if cb.OnError != nil {
			cb.OnError(err)
		}
		return
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if cb.OnStatus != nil {
		cb.OnStatus("connecting", fmt.Sprintf("calling %s", model.Name))
	}

	start := time.Now()
	var resp *llmModels.ModelResponse
	err = br.Execute(ctx, func(ctx context.Context) error {
		var streamErr error
		resp, streamErr = provider.StreamModel(ctx, messages, model, opts, cb.Dispatch)
		if streamErr == nil && resp == nil {
			streamErr = errors.New("provider returned no response")
		}
		return streamErr
	})
	if err != nil {
		classified := r.classify(ctx, br, modelID, modeStream, start, err)
		if cb.OnError != nil {
			cb.OnError(classified)
		}
		return
	}

	r.finish(resp, model, start, modeStream, br.Name())
	if cb.OnComplete != nil {
		cb.OnComplete(&llmModels.StreamCompletion{
			ResponseID: resp.ResponseID,
			Usage:      resp.TokenUsage,
			Cost:       resp.Cost,
			Response:   resp,
		})
	}
}

// BreakerStatuses reports every provider's breaker, in registration order
func (r *ProviderRegistry) BreakerStatuses() []domainllm.BreakerStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	statuses := make([]domainllm.BreakerStatus, 0, len(r.order))
	for _, name := range r.order {
		b := r.breakers[name]
		status := domainllm.BreakerStatus{
			Provider:     name,
			State:        string(b.State()),
			FailureCount: b.FailureCount(),
		}
		if last := b.LastFailureTime(); !last.IsZero() {
			formatted := last.UTC().Format(time.RFC3339)
			status.LastFailureTime = &formatted
		}
		statuses = append(statuses, status)
	}
	return statuses
}

func (r *ProviderRegistry) resolve(modelID string) (domainllm.Provider, *llmModels.ModelConfig, *breaker.Breaker, error) {
	r.mu.RLock()
	name, ok := r.modelIndex[modelID]
	var provider domainllm.Provider
	var cb *breaker.Breaker
	if ok {
		provider = r.providers[name]
		cb = r.breakers[name]
	}
	r.mu.RUnlock()

	if !ok {
		return nil, nil, nil, &domain.ModelNotFoundError{ModelID: modelID}
	}
	model, found := provider.GetModel(modelID)
	if !found {
		return nil, nil, nil, &domain.ModelNotFoundError{ModelID: modelID}
	}
	return provider, model, cb, nil
}

func (r *ProviderRegistry) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.config.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.config.Timeout)
}

// classify turns a breaker/adapter failure into the domain taxonomy
func (r *ProviderRegistry) classify(ctx context.Context, cb *breaker.Breaker, modelID, mode string, start time.Time, err error) error {
	name := cb.Name()

	var cbErr *domain.CircuitBreakerError
	if errors.As(err, &cbErr) {
		r.record(name, mode, observability.OutcomeRejected, start)
		r.logger.Warn("provider call rejected by circuit breaker",
			"provider", name,
			"model_id", modelID,
			"failure_count", cbErr.FailureCount,
			"retry_after", cbErr.RetryAfter.String(),
		)
		return cbErr
	}

	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		r.record(name, mode, observability.OutcomeCancelled, start)
		r.logger.Info("provider call cancelled",
			"provider", name,
			"model_id", modelID,
		)
		return err
	}

	r.record(name, mode, observability.OutcomeError, start)
	r.logger.Error("provider call failed",
		"provider", name,
		"model_id", modelID,
		"breaker_state", string(cb.State()),
		"failure_count", cb.FailureCount(),
		"error", err,
	)
	return &domain.ProviderError{
		Provider:            name,
		ModelID:             modelID,
		CircuitBreakerState: string(cb.State()),
		FailureCount:        cb.FailureCount(),
		Err:                 err,
	}
}

// finish stamps timing, cost, config echo and a response id onto a successful response
func (r *ProviderRegistry) finish(resp *llmModels.ModelResponse, model *llmModels.ModelConfig, start time.Time, mode, provider string) {
	resp.ResponseTime = time.Since(start).Milliseconds()
	if resp.TokenUsage != nil {
		resp.Cost = model.ComputeCost(resp.TokenUsage)
	}
	resp.ModelConfig = model.Echo()
	if resp.ResponseID == "" {
		resp.ResponseID = uuid.New().String()
	}

	r.record(provider, mode, observability.OutcomeSuccess, start)
	if r.metrics != nil && resp.TokenUsage != nil {
		r.metrics.TokensTotal.WithLabelValues(model.ID, "input").Add(float64(resp.TokenUsage.Input))
		r.metrics.TokensTotal.WithLabelValues(model.ID, "output").Add(float64(resp.TokenUsage.Output))
		if resp.TokenUsage.Reasoning != nil {
			r.metrics.TokensTotal.WithLabelValues(model.ID, "reasoning").Add(float64(*resp.TokenUsage.Reasoning))
		}
	}
}

func (r *ProviderRegistry) record(provider, mode, outcome string, start time.Time) {
	if r.metrics == nil {
		return
	}
	r.metrics.ProviderCalls.WithLabelValues(provider, mode, outcome).Inc()
	if outcome != observability.OutcomeRejected {
		r.metrics.ProviderLatency.WithLabelValues(provider, mode).Observe(time.Since(start).Seconds())
	}
}
