package streaming

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"llmarena/internal/config"
	"llmarena/internal/domain"
	llmModels "llmarena/internal/domain/models/llm"
	llmSvc "llmarena/internal/domain/services/llm"
	"llmarena/internal/observability"
)

const defaultIntensity = 3

// Service implements llmSvc.StreamingService.
// Init resolves and validates a debate turn and stores it as a claim; Run streams it.
type Service struct {
	claims   *ClaimStore
	registry llmSvc.ProviderRegistry
	debate   llmSvc.DebateService
	maxTurns int
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewService creates the debate streaming service
func NewService(
	claims *ClaimStore,
	registry llmSvc.ProviderRegistry,
	debate llmSvc.DebateService,
	maxTurns int,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *Service {
	if maxTurns <= 0 {
		maxTurns = 20
	}
	return &Service{
		claims:   claims,
		registry: registry,
		debate:   debate,
		maxTurns: maxTurns,
		metrics:  metrics,
		logger:   logger,
	}
}

// Init validates the request, resolves (or creates) the debate session and stores a claim
func (s *Service) Init(ctx context.Context, req *llmSvc.StreamInitRequest) (*llmSvc.StreamInitResponse, error) {
	trimRequest(req)
	if err := s.validateInitRequest(req); err != nil {
		return nil, domain.NewValidationError(err)
	}

	if _, err := s.registry.GetModelByID(req.ModelID); err != nil {
		return nil, err
	}

	session, unsaved, err := s.resolveSession(ctx, req)
	if err != nil {
		return nil, err
	}

	role, err := s.debate.CheckTurn(ctx, session, req.ModelID, req.TurnNumber)
	if err != nil {
		return nil, err
	}
	if req.Role != "" && req.Role != role {
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("turn %d is spoken as %s, not %s", req.TurnNumber, role, req.Role),
			Field:   "role",
		}
	}

	// Implicit sessions are only stored once the turn is known to be valid
	if unsaved {
		if err := s.debate.SaveSession(ctx, session); err != nil {
			return nil, err
		}
	}

	// Fall back to the recorded history when the client omits the opponent's message
	opponent := req.OpponentMessage
	if opponent == "" && req.TurnNumber > 1 {
		if last := session.LastTurn(); last != nil {
			opponent = last.Content
		}
	}

	intensity := req.Intensity
	if intensity == 0 {
		intensity = session.AdversarialLevel
	}

	resp, err := s.claims.Create(ctx, &llmSvc.StreamParams{
		SessionID:       session.ID,
		ModelID:         req.ModelID,
		Role:            role,
		TurnNumber:      req.TurnNumber,
		Topic:           session.Topic,
		Intensity:       intensity,
		OpponentMessage: opponent,
		Options:         req.CallOptions(),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("debate stream initialized",
		"session_id", resp.SessionID,
		"task_id", resp.TaskID,
		"model_id", req.ModelID,
		"turn_number", req.TurnNumber,
	)
	return resp, nil
}

// resolveSession loads the referenced session, or builds an unsaved one when no id is given
func (s *Service) resolveSession(ctx context.Context, req *llmSvc.StreamInitRequest) (*llmModels.DebateSession, bool, error) {
	if req.SessionID != "" {
		session, err := s.debate.GetSession(ctx, req.SessionID)
		return session, false, err
	}

	model1, model2 := req.Model1ID, req.Model2ID
	if model1 == "" {
		model1 = req.ModelID
	}
	if model2 == "" {
		model2 = req.ModelID
	}
	intensity := req.Intensity
	if intensity == 0 {
		intensity = defaultIntensity
	}

	session, err := s.debate.NewSession(&llmSvc.CreateDebateRequest{
		Topic:            req.Topic,
		Model1ID:         model1,
		Model2ID:         model2,
		AdversarialLevel: intensity,
	})
	if err != nil {
		return nil, false, err
	}
	return session, true, nil
}

// Claim consumes the claim for a key triple
func (s *Service) Claim(ctx context.Context, taskID, modelKey, sessionID string) (*llmSvc.StreamParams, error) {
	params, err := s.claims.Claim(ctx, taskID, modelKey, sessionID)
	if s.metrics != nil {
		outcome := observability.OutcomeClaimed
		if err != nil {
			outcome = observability.OutcomeClaimMissing
		}
		s.metrics.ClaimOutcomes.WithLabelValues(outcome).Inc()
	}
	return params, err
}

// Run streams one claimed turn to the emitter and records it on success.
// A client disconnect ends the run without a terminal event.
func (s *Service) Run(ctx context.Context, params *llmSvc.StreamParams, emitter llmSvc.StreamEmitter) {
	emitter.Init(llmModels.StreamInitEvent{
		ModelID:    params.ModelID,
		TurnNumber: params.TurnNumber,
		Role:       params.Role,
	})

	messages := s.debate.BuildMessages(params)

	s.registry.CallModelStreaming(ctx, params.ModelID, messages, params.Options, llmSvc.StreamCallbacks{
		OnStatus: func(phase, message string) {
			emitter.Status(llmModels.StreamStatusEvent{Phase: phase, Message: message})
		},
		OnReasoningChunk: func(delta string) {
			emitter.Chunk(llmModels.StreamChunkEvent{Type: llmModels.ChunkReasoning, Delta: delta})
		},
		OnContentChunk: func(delta string) {
			emitter.Chunk(llmModels.StreamChunkEvent{Type: llmModels.ChunkText, Delta: delta})
		},
		OnJSONChunk: func(delta string) {
			emitter.Chunk(llmModels.StreamChunkEvent{Type: llmModels.ChunkJSON, Delta: delta})
		},
		OnComplete: func(completion *llmModels.StreamCompletion) {
			s.complete(ctx, params, completion, emitter)
		},
		OnError: func(err error) {
			if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
				s.logger.Info("debate stream cancelled by client",
					"task_id", params.TaskID,
					"session_id", params.SessionID,
				)
				return
			}
			s.logger.Warn("debate stream failed",
				"task_id", params.TaskID,
				"session_id", params.SessionID,
				"model_id", params.ModelID,
				"error", err,
			)
			emitter.Error(ErrorEvent(err))
		},
	})
}

// complete persists the finished turn, then emits stream.complete.
// A persistence failure is reported as stream.error and the turn is not recorded.
func (s *Service) complete(ctx context.Context, params *llmSvc.StreamParams, completion *llmModels.StreamCompletion, emitter llmSvc.StreamEmitter) {
	resp := completion.Response

	turn := &llmModels.DebateTurn{
		TurnNumber: params.TurnNumber,
		ModelID:    params.ModelID,
		Role:       params.Role,
		Content:    resp.Content,
		Reasoning:  resp.Reasoning,
		TokenUsage: completion.Usage,
		Cost:       completion.Cost,
		ResponseID: completion.ResponseID,
		CreatedAt:  time.Now().UTC(),
	}

	// Persist even if the client left mid-flight; the vendor already billed the turn
	if err := s.debate.RecordTurn(context.WithoutCancel(ctx), params.SessionID, turn); err != nil {
		s.logger.Error("failed to record debate turn",
			"session_id", params.SessionID,
			"turn_number", params.TurnNumber,
			"error", err,
		)
		emitter.Error(ErrorEvent(err))
		return
	}

	emitter.Complete(llmModels.StreamCompleteEvent{
		ResponseID:   completion.ResponseID,
		Content:      resp.Content,
		Reasoning:    resp.Reasoning,
		ResponseTime: resp.ResponseTime,
		TokenUsage:   completion.Usage,
		Cost:         completion.Cost,
		TurnNumber:   params.TurnNumber,
	})
}

// ErrorEvent converts an error into the stream.error payload
func ErrorEvent(err error) llmModels.StreamErrorEvent {
	detail := domain.Describe(err)
	return llmModels.StreamErrorEvent{
		Code:       detail.Code,
		Message:    detail.Message,
		Context:    detail.Context,
		RetryAfter: detail.RetryAfter,
	}
}

func (s *Service) validateInitRequest(req *llmSvc.StreamInitRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.ModelID, validation.Required, validation.Length(1, config.MaxModelIDLength)),
		validation.Field(&req.Topic,
			validation.When(req.SessionID == "", validation.Required),
			validation.Length(0, config.MaxTopicLength),
		),
		validation.Field(&req.Role, validation.In(llmModels.DebateRoleAffirmative, llmModels.DebateRoleNegative)),
		validation.Field(&req.Intensity, validation.Min(0), validation.Max(llmModels.MaxAdversarialLevel)),
		validation.Field(&req.TurnNumber, validation.Required, validation.Min(1), validation.Max(s.maxTurns)),
		validation.Field(&req.OpponentMessage, validation.Length(0, config.MaxOpponentMessageLength)),
		validation.Field(&req.Model1ID, validation.Length(0, config.MaxModelIDLength)),
		validation.Field(&req.Model2ID, validation.Length(0, config.MaxModelIDLength)),
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

// trimRequest normalizes whitespace on free-text fields before validation
func trimRequest(req *llmSvc.StreamInitRequest) {
	req.ModelID = strings.TrimSpace(req.ModelID)
	req.Topic = strings.TrimSpace(req.Topic)
	req.Role = strings.ToUpper(strings.TrimSpace(req.Role))
}
