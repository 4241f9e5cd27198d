package llm

// ModelConfig is the static description of one callable model.
// Loaded once at startup from the embedded catalog and never mutated.
type ModelConfig struct {
	ID           string            `json:"id" yaml:"-"`
	Name         string            `json:"name" yaml:"name"`
	Provider     string            `json:"provider" yaml:"-"`
	Model        string            `json:"model" yaml:"model"` // vendor model string sent on the wire
	Capabilities ModelCapabilities `json:"capabilities" yaml:"capabilities"`
	Pricing      ModelPricing      `json:"pricing" yaml:"pricing"`
	Limits       ModelLimits       `json:"limits" yaml:"limits"`
}

// ModelCapabilities lists what a model can do
type ModelCapabilities struct {
	Reasoning       bool `json:"reasoning" yaml:"reasoning"`
	Multimodal      bool `json:"multimodal" yaml:"multimodal"`
	FunctionCalling bool `json:"functionCalling" yaml:"function_calling"`
	Streaming       bool `json:"streaming" yaml:"streaming"`
}

// ModelPricing is USD per million tokens
type ModelPricing struct {
	InputPerMillion     float64  `json:"inputPerMillion" yaml:"input_per_million"`
	OutputPerMillion    float64  `json:"outputPerMillion" yaml:"output_per_million"`
	ReasoningPerMillion *float64 `json:"reasoningPerMillion,omitempty" yaml:"reasoning_per_million"`
}

// ModelLimits holds token limits
type ModelLimits struct {
	MaxTokens     int `json:"maxTokens" yaml:"max_tokens"`
	ContextWindow int `json:"contextWindow" yaml:"context_window"`
}

// ComputeCost prices token usage against this model's catalog entry.
// Reasoning tokens fall back to the output price when no reasoning price is set.
func (m *ModelConfig) ComputeCost(usage *TokenUsage) *Cost {
	if usage == nil {
		return nil
	}

	cost := &Cost{
		Input:  float64(usage.Input) / 1_000_000 * m.Pricing.InputPerMillion,
		Output: float64(usage.Output) / 1_000_000 * m.Pricing.OutputPerMillion,
	}

	if usage.Reasoning != nil && *usage.Reasoning > 0 {
		price := m.Pricing.OutputPerMillion
		if m.Pricing.ReasoningPerMillion != nil {
			price = *m.Pricing.ReasoningPerMillion
		}
		reasoning := float64(*usage.Reasoning) / 1_000_000 * price
		cost.Reasoning = &reasoning
	}

	cost.Total = cost.Input + cost.Output
	if cost.Reasoning != nil {
		cost.Total += *cost.Reasoning
	}

	return cost
}

// ConfigEcho is the subset of ModelConfig echoed back on a ModelResponse
type ConfigEcho struct {
	Capabilities ModelCapabilities `json:"capabilities"`
	Pricing      ModelPricing      `json:"pricing"`
}

// Echo returns the capabilities/pricing echo for responses
func (m *ModelConfig) Echo() *ConfigEcho {
	return &ConfigEcho{
		Capabilities: m.Capabilities,
		Pricing:      m.Pricing,
	}
}
