package llm

// TokenUsage counts tokens for one call
type TokenUsage struct {
	Input     int  `json:"input"`
	Output    int  `json:"output"`
	Reasoning *int `json:"reasoning,omitempty"`
}

// Clone returns a copy that shares no pointers with u
func (u *TokenUsage) Clone() *TokenUsage {
	if u == nil {
		return nil
	}
	out := *u
	if u.Reasoning != nil {
		reasoning := *u.Reasoning
		out.Reasoning = &reasoning
	}
	return &out
}

// Cost is USD spent on one call
type Cost struct {
	Input     float64  `json:"input"`
	Output    float64  `json:"output"`
	Reasoning *float64 `json:"reasoning,omitempty"`
	Total     float64  `json:"total"`
}

// Clone returns a copy that shares no pointers with c
func (c *Cost) Clone() *Cost {
	if c == nil {
		return nil
	}
	out := *c
	if c.Reasoning != nil {
		reasoning := *c.Reasoning
		out.Reasoning = &reasoning
	}
	return &out
}

// ModelResponse is the result of one non-streaming or completed-streaming call.
// Built once per call and never mutated after return.
type ModelResponse struct {
	Content      string      `json:"content"`
	Reasoning    string      `json:"reasoning,omitempty"`
	ResponseTime int64       `json:"responseTime"` // milliseconds
	TokenUsage   *TokenUsage `json:"tokenUsage,omitempty"`
	Cost         *Cost       `json:"cost,omitempty"`
	ModelConfig  *ConfigEcho `json:"modelConfig,omitempty"`
	ResponseID   string      `json:"responseId,omitempty"`
}

// Reasoning effort / summary / verbosity values accepted in CallOptions
const (
	ReasoningEffortMinimal = "minimal"
	ReasoningEffortLow     = "low"
	ReasoningEffortMedium  = "medium"
	ReasoningEffortHigh    = "high"

	ReasoningSummaryAuto     = "auto"
	ReasoningSummaryConcise  = "concise"
	ReasoningSummaryDetailed = "detailed"

	VerbosityLow    = "low"
	VerbosityMedium = "medium"
	VerbosityHigh   = "high"
)

// CallOptions are per-call knobs. Adapters apply what their vendor supports and ignore the rest.
//
// ReasoningSummary asks for visible reasoning. Anthropic turns it into an extended
// thinking budget (see ReasoningBudgetTokens). Chat-completions vendors have no
// summary parameter and only surface reasoning they return unprompted.
type CallOptions struct {
	Temperature        *float64 `json:"temperature,omitempty"`
	MaxTokens          *int     `json:"maxTokens,omitempty"`
	ReasoningEffort    string   `json:"reasoningEffort,omitempty"`
	ReasoningSummary   string   `json:"reasoningSummary,omitempty"`
	TextVerbosity      string   `json:"textVerbosity,omitempty"`
	PreviousResponseID string   `json:"previousResponseId,omitempty"`
}

// GetMaxTokens returns MaxTokens or the given default
func (o *CallOptions) GetMaxTokens(defaultValue int) int {
	if o == nil || o.MaxTokens == nil || *o.MaxTokens <= 0 {
		return defaultValue
	}
	return *o.MaxTokens
}

// ReasoningBudgetTokens maps the effort level to a thinking token budget.
// Without an effort, a requested reasoning summary picks the budget instead:
// concise thinks briefly, detailed thinks at the high budget.
// Returns 0 when reasoning was not requested.
func (o *CallOptions) ReasoningBudgetTokens() int {
	if o == nil {
		return 0
	}
	switch o.ReasoningEffort {
	case ReasoningEffortMinimal:
		return 1024
	case ReasoningEffortLow:
		return 2048
	case ReasoningEffortMedium:
		return 8192
	case ReasoningEffortHigh:
		return 16384
	}
	switch o.ReasoningSummary {
	case ReasoningSummaryConcise:
		return 2048
	case ReasoningSummaryAuto:
		return 8192
	case ReasoningSummaryDetailed:
		return 16384
	default:
		return 0
	}
}
