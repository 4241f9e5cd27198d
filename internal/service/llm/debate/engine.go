// Package debate drives alternating turns between two models.
//
// Turn n is spoken by model1 (AFFIRMATIVE) when n is odd and by model2
// (NEGATIVE) when n is even. A turn is appended to the history only after its
// stream completes, so a failed turn leaves the history untouched and can be
// retried by the same speaker.
package debate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"llmarena/internal/config"
	"llmarena/internal/domain"
	llmModels "llmarena/internal/domain/models/llm"
	"llmarena/internal/domain/repositories"
	llmSvc "llmarena/internal/domain/services/llm"
)

// ModelResolver checks that a model id is callable
type ModelResolver interface {
	GetModelByID(id string) (*llmModels.ModelConfig, error)
}

// Engine implements llmSvc.DebateService
type Engine struct {
	repo     repositories.DebateRepository
	models   ModelResolver
	maxTurns int
	logger   *slog.Logger
	now      func() time.Time
}

// NewEngine creates a debate engine
func NewEngine(repo repositories.DebateRepository, models ModelResolver, maxTurns int, logger *slog.Logger) *Engine {
	return &Engine{
		repo:     repo,
		models:   models,
		maxTurns: maxTurns,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateSession validates and persists a new debate session
func (e *Engine) CreateSession(ctx context.Context, req *llmSvc.CreateDebateRequest) (*llmModels.DebateSession, error) {
	session, err := e.NewSession(req)
	if err != nil {
		return nil, err
	}
	if err := e.SaveSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// NewSession validates req and builds a session without persisting it
func (e *Engine) NewSession(req *llmSvc.CreateDebateRequest) (*llmModels.DebateSession, error) {
	req.Topic = strings.TrimSpace(req.Topic)

	err := validation.ValidateStruct(req,
		validation.Field(&req.Topic, validation.Required, validation.Length(1, config.MaxTopicLength)),
		validation.Field(&req.Model1ID, validation.Required, validation.Length(1, config.MaxModelIDLength)),
		validation.Field(&req.Model2ID, validation.Required, validation.Length(1, config.MaxModelIDLength)),
		validation.Field(&req.AdversarialLevel,
			validation.Required,
			validation.Min(llmModels.MinAdversarialLevel),
			validation.Max(llmModels.MaxAdversarialLevel),
		),
	)
	if err != nil {
		return nil, domain.NewValidationError(err)
	}

	for _, id := range []string{req.Model1ID, req.Model2ID} {
		if _, err := e.models.GetModelByID(id); err != nil {
			return nil, err
		}
	}

	now := e.now().UTC()
	return &llmModels.DebateSession{
		ID:               uuid.New().String(),
		Model1ID:         req.Model1ID,
		Model2ID:         req.Model2ID,
		Topic:            req.Topic,
		AdversarialLevel: req.AdversarialLevel,
		TurnHistory:      []llmModels.DebateTurn{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// SaveSession persists a session built by NewSession
func (e *Engine) SaveSession(ctx context.Context, session *llmModels.DebateSession) error {
	if err := e.repo.CreateSession(ctx, session); err != nil {
		return err
	}

	e.logger.Info("debate session created",
		"session_id", session.ID,
		"model1_id", session.Model1ID,
		"model2_id", session.Model2ID,
		"adversarial_level", session.AdversarialLevel,
	)
	return nil
}

// GetSession returns a session with its ordered turn history
func (e *Engine) GetSession(ctx context.Context, sessionID string) (*llmModels.DebateSession, error) {
	if sessionID == "" {
		return nil, &domain.ValidationError{Message: "sessionId is required", Field: "sessionId"}
	}
	return e.repo.GetSession(ctx, sessionID)
}

// CheckTurn validates turnNumber against the history and the turn limit,
// and that modelID is the expected speaker. Returns the speaker's role.
func (e *Engine) CheckTurn(ctx context.Context, session *llmModels.DebateSession, modelID string, turnNumber int) (string, error) {
	if turnNumber < 1 {
		return "", &domain.ValidationError{Message: "turnNumber must be >= 1", Field: "turnNumber"}
	}
	if e.maxTurns > 0 && turnNumber > e.maxTurns {
		return "", &domain.ValidationError{
			Message: fmt.Sprintf("debate is limited to %d turns", e.maxTurns),
			Field:   "turnNumber",
		}
	}

	if expected := session.NextTurnNumber(); turnNumber != expected {
		return "", &domain.ConflictError{
			Message: fmt.Sprintf("session %s expects turn %d, got %d", session.ID, expected, turnNumber),
		}
	}

	speaker, role := session.SpeakerFor(turnNumber)
	if modelID != speaker {
		return "", &domain.ValidationError{
			Message: fmt.Sprintf("turn %d belongs to model %s", turnNumber, speaker),
			Field:   "modelId",
		}
	}

	return role, nil
}

// BuildMessages builds one turn's prompt: the debate instructions as the system
// message, then the opponent's last message (or an opening cue on turn 1).
func (e *Engine) BuildMessages(params *llmSvc.StreamParams) []llmModels.ModelMessage {
	messages := []llmModels.ModelMessage{
		{
			Role:    llmModels.RoleSystem,
			Content: systemPrompt(params.Topic, params.Role, params.Intensity, params.TurnNumber),
		},
	}

	if params.TurnNumber <= 1 || strings.TrimSpace(params.OpponentMessage) == "" {
		messages = append(messages, llmModels.ModelMessage{
			Role:    llmModels.RoleUser,
			Content: openingPrompt(params.Topic),
		})
		return messages
	}

	return append(messages, llmModels.ModelMessage{
		Role:    llmModels.RoleUser,
		Content: rebuttalPrompt(params.OpponentMessage),
	})
}

// RecordTurn appends exactly one completed turn to the session's history
func (e *Engine) RecordTurn(ctx context.Context, sessionID string, turn *llmModels.DebateTurn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = e.now().UTC()
	}

	if err := e.repo.AppendTurn(ctx, sessionID, turn); err != nil {
		return err
	}

	e.logger.Info("debate turn recorded",
		"session_id", sessionID,
		"turn_number", turn.TurnNumber,
		"model_id", turn.ModelID,
		"response_id", turn.ResponseID,
	)
	return nil
}
