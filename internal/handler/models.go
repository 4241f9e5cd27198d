package handler

import (
	"log/slog"
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"golang.org/x/sync/errgroup"

	"llmarena/internal/config"
	"llmarena/internal/domain"
	llmModels "llmarena/internal/domain/models/llm"
	llmSvc "llmarena/internal/domain/services/llm"
	"llmarena/internal/httputil"
)

// ModelsHandler serves the model catalog and the non-streaming comparison path
type ModelsHandler struct {
	registry llmSvc.ProviderRegistry
	logger   *slog.Logger
}

// NewModelsHandler creates a new models handler
func NewModelsHandler(registry llmSvc.ProviderRegistry, logger *slog.Logger) *ModelsHandler {
	return &ModelsHandler{
		registry: registry,
		logger:   logger,
	}
}

// RespondRequest is the DTO for POST /api/models/respond
type RespondRequest struct {
	Prompt           string   `json:"prompt"`
	ModelID          string   `json:"modelId"`
	ReasoningEffort  string   `json:"reasoningEffort,omitempty"`
	ReasoningSummary string   `json:"reasoningSummary,omitempty"`
	TextVerbosity    string   `json:"textVerbosity,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	MaxTokens        *int     `json:"maxTokens,omitempty"`
}

// CompareRequest is the DTO for POST /api/models/compare
type CompareRequest struct {
	Prompt   string   `json:"prompt"`
	ModelIDs []string `json:"modelIds"`
}

// CompareResult is one model's outcome in a comparison.
// Exactly one of Response and Error is set.
type CompareResult struct {
	ModelID  string                   `json:"modelId"`
	Response *llmModels.ModelResponse `json:"response,omitempty"`
	Error    *httputil.ErrorBody      `json:"error,omitempty"`
}

// ListModels returns every callable model
// GET /api/models
func (h *ModelsHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"models": h.registry.GetAllModels(),
	})
}

// GetStatus returns the circuit breaker observation for each provider
// GET /api/models/status
func (h *ModelsHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"providers": h.registry.BreakerStatuses(),
	})
}

// Respond calls one model and returns its full response
// POST /api/models/respond
func (h *ModelsHandler) Respond(w http.ResponseWriter, r *http.Request) {
	var req RespondRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	req.ModelID = strings.TrimSpace(req.ModelID)
	if err := validateRespondRequest(&req); err != nil {
		handleError(w, r, h.logger, domain.NewValidationError(err))
		return
	}

	opts := &llmModels.CallOptions{
		Temperature:      req.Temperature,
		MaxTokens:        req.MaxTokens,
		ReasoningEffort:  req.ReasoningEffort,
		ReasoningSummary: req.ReasoningSummary,
		TextVerbosity:    req.TextVerbosity,
	}

	resp, err := h.registry.CallModel(r.Context(), req.ModelID, userPrompt(req.Prompt), opts)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, resp)
}

// Compare fans one prompt out to several models concurrently.
// Each model succeeds or fails on its own; the request itself only fails on bad input.
// POST /api/models/compare
func (h *ModelsHandler) Compare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	err := validation.ValidateStruct(&req,
		validation.Field(&req.Prompt, validation.Required, validation.Length(1, config.MaxPromptLength)),
		validation.Field(&req.ModelIDs,
			validation.Required,
			validation.Length(1, config.MaxCompareModels),
			validation.Each(validation.Required, validation.Length(1, config.MaxModelIDLength)),
		),
	)
	if err != nil {
		handleError(w, r, h.logger, domain.NewValidationError(err))
		return
	}

	messages := userPrompt(req.Prompt)
	results := make([]CompareResult, len(req.ModelIDs))

	var g errgroup.Group
	for i, modelID := range req.ModelIDs {
		g.Go(func() error {
			result := CompareResult{ModelID: modelID}
			resp, err := h.registry.CallModel(r.Context(), modelID, messages, nil)
			if err != nil {
				h.logger.Warn("compare call failed", "model_id", modelID, "error", err)
				body := httputil.NewErrorBody(domain.Describe(err))
				result.Error = &body
			} else {
				result.Response = resp
			}
			results[i] = result
			return nil
		})
	}
	_ = g.Wait()

	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
	})
}

func validateRespondRequest(req *RespondRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Prompt, validation.Required, validation.Length(1, config.MaxPromptLength)),
		validation.Field(&req.ModelID, validation.Required, validation.Length(1, config.MaxModelIDLength)),
		validation.Field(&req.ReasoningEffort, validation.In(
			llmModels.ReasoningEffortMinimal,
			llmModels.ReasoningEffortLow,
			llmModels.ReasoningEffortMedium,
			llmModels.ReasoningEffortHigh,
		)),
		validation.Field(&req.ReasoningSummary, validation.In(
			llmModels.ReasoningSummaryAuto,
			llmModels.ReasoningSummaryConcise,
			llmModels.ReasoningSummaryDetailed,
		)),
		validation.Field(&req.TextVerbosity, validation.In(
			llmModels.VerbosityLow,
			llmModels.VerbosityMedium,
			llmModels.VerbosityHigh,
		)),
		validation.Field(&req.Temperature, validation.Min(0.0), validation.Max(2.0)),
		validation.Field(&req.MaxTokens, validation.Min(1), validation.Max(config.MaxTokensCeiling)),
	)
}

func userPrompt(prompt string) []llmModels.ModelMessage {
	return []llmModels.ModelMessage{{Role: llmModels.RoleUser, Content: prompt}}
}
