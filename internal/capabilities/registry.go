package capabilities

import (
	"embed"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"llmarena/internal/domain/models/llm"
)

//go:embed config/*.yaml
var configFiles embed.FS

// Provider names with an embedded catalog file
const (
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderXAI        = "xai"
	ProviderDeepSeek   = "deepseek"
	ProviderOpenRouter = "openrouter"
	ProviderLorem      = "lorem"
)

// KnownProviders lists every provider with an embedded catalog
var KnownProviders = []string{
	ProviderOpenAI,
	ProviderAnthropic,
	ProviderXAI,
	ProviderDeepSeek,
	ProviderOpenRouter,
	ProviderLorem,
}

// Registry holds the static model tables for all providers
type Registry struct {
	providers map[string]*ProviderCatalog
	mu        sync.RWMutex
}

// NewRegistry creates a new catalog registry and loads embedded YAML files
func NewRegistry() (*Registry, error) {
	r := &Registry{
		providers: make(map[string]*ProviderCatalog),
	}

	for _, provider := range KnownProviders {
		if err := r.loadProviderFile(provider); err != nil {
			return nil, fmt.Errorf("failed to load %s catalog: %w", provider, err)
		}
	}

	return r, nil
}

// loadProviderFile loads a provider's catalog YAML file
func (r *Registry) loadProviderFile(provider string) error {
	filename := fmt.Sprintf("config/%s.yaml", provider)
	data, err := configFiles.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filename, err)
	}

	catalog, err := parseCatalog(data)
	if err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", filename, err)
	}
	if catalog.Provider != provider {
		return fmt.Errorf("%s declares provider %q", filename, catalog.Provider)
	}

	r.mu.Lock()
	r.providers[provider] = catalog
	r.mu.Unlock()

	return nil
}

func parseCatalog(data []byte) (*ProviderCatalog, error) {
	var catalog ProviderCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, err
	}
	if catalog.Provider == "" {
		return nil, fmt.Errorf("missing provider field")
	}
	return &catalog, nil
}

// GetModel returns one model's config
func (r *Registry) GetModel(provider, modelID string) (*llm.ModelConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	catalog, ok := r.providers[provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}

	for i := range catalog.Models {
		if catalog.Models[i].ID == modelID {
			model := catalog.Models[i]
			return &model, nil
		}
	}

	return nil, fmt.Errorf("unknown model %s for provider %s", modelID, provider)
}

// ListProviderModels returns a copy of all models for a provider (ordered as defined in YAML)
func (r *Registry) ListProviderModels(provider string) ([]llm.ModelConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	catalog, ok := r.providers[provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}

	models := make([]llm.ModelConfig, len(catalog.Models))
	copy(models, catalog.Models)
	return models, nil
}

// GetAllProviders returns all registered providers, sorted
func (r *Registry) GetAllProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := make([]string, 0, len(r.providers))
	for provider := range r.providers {
		providers = append(providers, provider)
	}
	sort.Strings(providers)
	return providers
}
