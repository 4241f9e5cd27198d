package llm

import (
	"context"

	"llmarena/internal/domain/models/llm"
)

// DebateService drives alternating turns between two models
type DebateService interface {
	// CreateSession validates and persists a new debate session
	CreateSession(ctx context.Context, req *CreateDebateRequest) (*llm.DebateSession, error)

	// NewSession validates req and builds a session in memory only.
	// Callers that must check a turn before committing pair it with SaveSession.
	NewSession(req *CreateDebateRequest) (*llm.DebateSession, error)

	// SaveSession persists a session built by NewSession
	SaveSession(ctx context.Context, session *llm.DebateSession) error

	// GetSession returns a session with its ordered turn history
	GetSession(ctx context.Context, sessionID string) (*llm.DebateSession, error)

	// CheckTurn validates that modelID is the expected speaker for turnNumber.
	// Returns the speaker's debate role.
	CheckTurn(ctx context.Context, session *llm.DebateSession, modelID string, turnNumber int) (string, error)

	// BuildMessages builds the prompt for one turn from the debate template
	// and the opponent's most recent message (empty on turn 1).
	BuildMessages(params *StreamParams) []llm.ModelMessage

	// RecordTurn appends exactly one completed turn to the session's history
	RecordTurn(ctx context.Context, sessionID string, turn *llm.DebateTurn) error
}

// CreateDebateRequest is the DTO for POST /api/debate/session
type CreateDebateRequest struct {
	Topic            string `json:"topic"`
	Model1ID         string `json:"model1Id"`
	Model2ID         string `json:"model2Id"`
	AdversarialLevel int    `json:"adversarialLevel"`
}
