package llm

import (
	"fmt"
	"log/slog"

	"llmarena/internal/capabilities"
	"llmarena/internal/config"
	domainllm "llmarena/internal/domain/services/llm"
	"llmarena/internal/observability"
	"llmarena/internal/service/llm/breaker"
	"llmarena/internal/service/llm/providers/anthropic"
	"llmarena/internal/service/llm/providers/lorem"
	"llmarena/internal/service/llm/providers/openaicompat"
)

// vendorSpec describes how to build one OpenAI-compatible vendor from config
type vendorSpec struct {
	name      string
	apiKey    string
	baseURL   string
	effort    bool
	verbosity bool
}

// SetupProviders builds every provider with credentials and registers it.
// Providers without an API key are skipped with a warning; lorem is added when enabled.
func SetupProviders(cfg *config.Config, catalog *capabilities.Registry, metrics *observability.Metrics, logger *slog.Logger) (*ProviderRegistry, error) {
	registry := NewProviderRegistry(RegistryConfig{
		Breaker: breaker.Config{
			FailureThreshold: cfg.BreakerFailureThreshold,
			RecoveryTimeout:  cfg.BreakerRecoveryTimeout,
			MonitoringPeriod: cfg.BreakerMonitoringPeriod,
		},
		Timeout: cfg.ProviderTimeout,
	}, metrics, logger)

	vendors := []vendorSpec{
		{name: capabilities.ProviderOpenAI, apiKey: cfg.OpenAIAPIKey, baseURL: openaicompat.OpenAIBaseURL, effort: true, verbosity: true},
		{name: capabilities.ProviderXAI, apiKey: cfg.XAIAPIKey, baseURL: openaicompat.XAIBaseURL, effort: true},
		{name: capabilities.ProviderDeepSeek, apiKey: cfg.DeepSeekAPIKey, baseURL: openaicompat.DeepSeekBaseURL},
		{name: capabilities.ProviderOpenRouter, apiKey: cfg.OpenRouterAPIKey, baseURL: openaicompat.OpenRouterBaseURL, effort: true},
	}

	for _, v := range vendors {
		if v.apiKey == "" {
			logger.Warn("API key not set - provider not available", "provider", v.name)
			continue
		}
		models, err := catalog.ListProviderModels(v.name)
		if err != nil {
			return nil, err
		}
		provider, err := openaicompat.NewProvider(openaicompat.Config{
			Name:                    v.name,
			APIKey:                  v.apiKey,
			BaseURL:                 v.baseURL,
			Models:                  models,
			SupportsReasoningEffort: v.effort,
			SupportsVerbosity:       v.verbosity,
		})
		if err != nil {
			return nil, fmt.Errorf("create %s provider: %w", v.name, err)
		}
		if err := register(registry, provider, logger); err != nil {
			return nil, err
		}
	}

	if cfg.AnthropicAPIKey != "" {
		models, err := catalog.ListProviderModels(capabilities.ProviderAnthropic)
		if err != nil {
			return nil, err
		}
		provider, err := anthropic.NewProvider(cfg.AnthropicAPIKey, models)
		if err != nil {
			return nil, fmt.Errorf("create anthropic provider: %w", err)
		}
		if err := register(registry, provider, logger); err != nil {
			return nil, err
		}
	} else {
		logger.Warn("API key not set - provider not available", "provider", capabilities.ProviderAnthropic)
	}

	if cfg.EnableLoremProvider {
		models, err := catalog.ListProviderModels(capabilities.ProviderLorem)
		if err != nil {
			return nil, err
		}
		if err := register(registry, lorem.NewProvider(models), logger); err != nil {
			return nil, err
		}
	}

	if len(registry.Providers()) == 0 {
		logger.Warn("no providers configured - every model call will fail with MODEL_NOT_FOUND")
	}

	logger.Info("provider registry initialized", "providers", registry.Providers())
	return registry, nil
}

func register(registry *ProviderRegistry, provider domainllm.Provider, logger *slog.Logger) error {
	if err := registry.Register(provider); err != nil {
		return fmt.Errorf("register %s: %w", provider.Name(), err)
	}
	logger.Info("provider available", "provider", provider.Name(), "models", len(provider.Models()))
	return nil
}
