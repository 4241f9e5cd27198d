// Package memory holds in-process repositories used when no database is configured.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"llmarena/internal/domain"
	llmModels "llmarena/internal/domain/models/llm"
)

// DebateRepository implements repositories.DebateRepository in memory.
// Sessions and turns are cloned on the way in and out, so callers never
// share turn history, usage or cost with the store.
type DebateRepository struct {
	mu       sync.RWMutex
	sessions map[string]*llmModels.DebateSession
}

// NewDebateRepository creates an empty repository
func NewDebateRepository() *DebateRepository {
	return &DebateRepository{
		sessions: make(map[string]*llmModels.DebateSession),
	}
}

func (r *DebateRepository) CreateSession(ctx context.Context, session *llmModels.DebateSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.ID]; exists {
		return &domain.ConflictError{Message: fmt.Sprintf("debate session %s already exists", session.ID)}
	}

	stored := *session
	stored.TurnHistory = []llmModels.DebateTurn{}
	r.sessions[session.ID] = &stored
	return nil
}

func (r *DebateRepository) GetSession(ctx context.Context, sessionID string) (*llmModels.DebateSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.sessions[sessionID]
	if !ok {
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("debate session not found: %s", sessionID)}
	}

	return stored.Clone(), nil
}

func (r *DebateRepository) AppendTurn(ctx context.Context, sessionID string, turn *llmModels.DebateTurn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.sessions[sessionID]
	if !ok {
		return &domain.NotFoundError{Message: fmt.Sprintf("debate session not found: %s", sessionID)}
	}

	if expected := len(stored.TurnHistory) + 1; turn.TurnNumber != expected {
		return &domain.ConflictError{
			Message: fmt.Sprintf("turn %d already recorded or out of order (expected %d)", turn.TurnNumber, expected),
		}
	}

	stored.TurnHistory = append(stored.TurnHistory, turn.Clone())
	stored.UpdatedAt = time.Now().UTC()
	return nil
}
