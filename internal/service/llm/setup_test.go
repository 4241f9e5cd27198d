package llm

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"llmarena/internal/capabilities"
	"llmarena/internal/config"
	"llmarena/internal/domain"
)

func TestSetupProviders(t *testing.T) {
	catalog, err := capabilities.NewRegistry()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name      string
		configure func(*config.Config)
		want      []string
	}{
		{
			name:      "lorem only",
			configure: func(c *config.Config) { c.EnableLoremProvider = true },
			want:      []string{"lorem"},
		},
		{
			name: "keys select vendors",
			configure: func(c *config.Config) {
				c.OpenAIAPIKey = "sk-test"
				c.DeepSeekAPIKey = "ds-test"
				c.AnthropicAPIKey = "ant-test"
			},
			want: []string{"openai", "deepseek", "anthropic"},
		},
		{
			name:      "nothing configured",
			configure: func(c *config.Config) {},
			want:      nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{
				BreakerFailureThreshold: 5,
				BreakerRecoveryTimeout:  time.Minute,
				BreakerMonitoringPeriod: 2 * time.Minute,
			}
			tt.configure(cfg)

			registry, err := SetupProviders(cfg, catalog, nil, logger)
			if err != nil {
				t.Fatalf("SetupProviders: %v", err)
			}

			got := registry.Providers()
			if len(got) != len(tt.want) {
				t.Fatalf("providers = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("provider[%d] = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSetupProviders_CatalogModelsResolve(t *testing.T) {
	catalog, err := capabilities.NewRegistry()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	registry, err := SetupProviders(&config.Config{OpenAIAPIKey: "sk-test"}, catalog, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("SetupProviders: %v", err)
	}

	model, err := registry.GetModelByID("gpt-4o-mini-2024-07-18")
	if err != nil {
		t.Fatalf("GetModelByID: %v", err)
	}
	if model.Provider != "openai" {
		t.Errorf("provider = %s", model.Provider)
	}

	if _, err := registry.GetModelByID("claude-haiku-4-5-20251001"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("anthropic model should be unavailable without a key, got %v", err)
	}
}
