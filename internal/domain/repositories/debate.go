package repositories

import (
	"context"

	"llmarena/internal/domain/models/llm"
)

// DebateRepository defines the interface for debate session persistence.
// Sessions are created once; turns are only ever appended.
type DebateRepository interface {
	// CreateSession persists a new session (TurnHistory is ignored)
	CreateSession(ctx context.Context, session *llm.DebateSession) error

	// GetSession returns the session with turns ordered by turn number.
	// Returns domain.ErrNotFound if not found.
	GetSession(ctx context.Context, sessionID string) (*llm.DebateSession, error)

	// AppendTurn appends a turn. turn.TurnNumber must equal the current history length + 1,
	// otherwise domain.ErrConflict is returned and nothing is written.
	AppendTurn(ctx context.Context, sessionID string, turn *llm.DebateTurn) error
}
