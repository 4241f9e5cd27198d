package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"llmarena/internal/domain"
	llmModels "llmarena/internal/domain/models/llm"
)

// DebateRepository implements repositories.DebateRepository using PostgreSQL
type DebateRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	tx     *TransactionManager
	logger *slog.Logger
}

// NewDebateRepository creates a new DebateRepository
func NewDebateRepository(config *RepositoryConfig) *DebateRepository {
	return &DebateRepository{
		pool:   config.Pool,
		tables: config.Tables,
		tx:     NewTransactionManager(config.Pool, config.Logger),
		logger: config.Logger,
	}
}

// EnsureSchema creates the debate tables if they do not exist
func (r *DebateRepository) EnsureSchema(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id                TEXT PRIMARY KEY,
				model1_id         TEXT NOT NULL,
				model2_id         TEXT NOT NULL,
				topic             TEXT NOT NULL,
				adversarial_level INT NOT NULL,
				created_at        TIMESTAMPTZ NOT NULL,
				updated_at        TIMESTAMPTZ NOT NULL
			)`, r.tables.DebateSessions),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				session_id  TEXT NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
				turn_number INT NOT NULL,
				model_id    TEXT NOT NULL,
				role        TEXT NOT NULL,
				content     TEXT NOT NULL,
				reasoning   TEXT NOT NULL DEFAULT '',
				token_usage JSONB,
				cost        JSONB,
				response_id TEXT NOT NULL DEFAULT '',
				created_at  TIMESTAMPTZ NOT NULL,
				PRIMARY KEY (session_id, turn_number)
			)`, r.tables.DebateTurns, r.tables.DebateSessions),
	}

	for _, stmt := range statements {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return &domain.DatabaseError{Op: "ensure schema", Err: err}
		}
	}
	return nil
}

func (r *DebateRepository) CreateSession(ctx context.Context, session *llmModels.DebateSession) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, model1_id, model2_id, topic, adversarial_level, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, r.tables.DebateSessions)

	executor := GetExecutor(ctx, r.pool)
	_, err := executor.Exec(ctx, query,
		session.ID,
		session.Model1ID,
		session.Model2ID,
		session.Topic,
		session.AdversarialLevel,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		if IsPgDuplicateError(err) {
			return &domain.ConflictError{Message: fmt.Sprintf("debate session %s already exists", session.ID)}
		}
		return &domain.DatabaseError{Op: "create debate session", Err: err}
	}
	return nil
}

func (r *DebateRepository) GetSession(ctx context.Context, sessionID string) (*llmModels.DebateSession, error) {
	query := fmt.Sprintf(`
		SELECT id, model1_id, model2_id, topic, adversarial_level, created_at, updated_at
		FROM %s
		WHERE id = $1
	`, r.tables.DebateSessions)

	executor := GetExecutor(ctx, r.pool)

	var session llmModels.DebateSession
	err := executor.QueryRow(ctx, query, sessionID).Scan(
		&session.ID,
		&session.Model1ID,
		&session.Model2ID,
		&session.Topic,
		&session.AdversarialLevel,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, &domain.NotFoundError{Message: fmt.Sprintf("debate session not found: %s", sessionID)}
		}
		return nil, &domain.DatabaseError{Op: "get debate session", Err: err}
	}

	turns, err := r.listTurns(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	session.TurnHistory = turns
	return &session, nil
}

func (r *DebateRepository) listTurns(ctx context.Context, sessionID string) ([]llmModels.DebateTurn, error) {
	query := fmt.Sprintf(`
		SELECT turn_number, model_id, role, content, reasoning, token_usage, cost, response_id, created_at
		FROM %s
		WHERE session_id = $1
		ORDER BY turn_number
	`, r.tables.DebateTurns)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, sessionID)
	if err != nil {
		return nil, &domain.DatabaseError{Op: "list debate turns", Err: err}
	}
	defer rows.Close()

	turns := []llmModels.DebateTurn{}
	for rows.Next() {
		var turn llmModels.DebateTurn
		var usage, cost []byte
		if err := rows.Scan(
			&turn.TurnNumber,
			&turn.ModelID,
			&turn.Role,
			&turn.Content,
			&turn.Reasoning,
			&usage,
			&cost,
			&turn.ResponseID,
			&turn.CreatedAt,
		); err != nil {
			return nil, &domain.DatabaseError{Op: "scan debate turn", Err: err}
		}
		if turn.TokenUsage, err = decodeJSONB[llmModels.TokenUsage](usage); err != nil {
			return nil, &domain.DatabaseError{Op: "decode token usage", Err: err}
		}
		if turn.Cost, err = decodeJSONB[llmModels.Cost](cost); err != nil {
			return nil, &domain.DatabaseError{Op: "decode cost", Err: err}
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.DatabaseError{Op: "list debate turns", Err: err}
	}
	return turns, nil
}

// AppendTurn locks the session row, checks the turn number against the
// recorded count, and inserts. The (session_id, turn_number) key rejects any
// writer that slips past the check.
func (r *DebateRepository) AppendTurn(ctx context.Context, sessionID string, turn *llmModels.DebateTurn) error {
	return r.tx.ExecTx(ctx, func(txCtx context.Context) error {
		executor := GetExecutor(txCtx, r.pool)

		lock := fmt.Sprintf(`SELECT id FROM %s WHERE id = $1 FOR UPDATE`, r.tables.DebateSessions)
		var id string
		if err := executor.QueryRow(txCtx, lock, sessionID).Scan(&id); err != nil {
			if IsPgNoRowsError(err) {
				return &domain.NotFoundError{Message: fmt.Sprintf("debate session not found: %s", sessionID)}
			}
			return &domain.DatabaseError{Op: "lock debate session", Err: err}
		}

		count := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE session_id = $1`, r.tables.DebateTurns)
		var recorded int
		if err := executor.QueryRow(txCtx, count, sessionID).Scan(&recorded); err != nil {
			return &domain.DatabaseError{Op: "count debate turns", Err: err}
		}
		if expected := recorded + 1; turn.TurnNumber != expected {
			return &domain.ConflictError{
				Message: fmt.Sprintf("turn %d already recorded or out of order (expected %d)", turn.TurnNumber, expected),
			}
		}

		insert := fmt.Sprintf(`
			INSERT INTO %s (session_id, turn_number, model_id, role, content, reasoning, token_usage, cost, response_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, r.tables.DebateTurns)

		usage, err := encodeJSONB(turn.TokenUsage)
		if err != nil {
			return fmt.Errorf("encode token usage: %w", err)
		}
		cost, err := encodeJSONB(turn.Cost)
		if err != nil {
			return fmt.Errorf("encode cost: %w", err)
		}

		_, err = executor.Exec(txCtx, insert,
			sessionID,
			turn.TurnNumber,
			turn.ModelID,
			turn.Role,
			turn.Content,
			turn.Reasoning,
			usage,
			cost,
			turn.ResponseID,
			turn.CreatedAt,
		)
		if err != nil {
			if IsPgDuplicateError(err) || IsPgSerializationError(err) {
				return &domain.ConflictError{Message: fmt.Sprintf("turn %d already recorded", turn.TurnNumber)}
			}
			return &domain.DatabaseError{Op: "insert debate turn", Err: err}
		}

		touch := fmt.Sprintf(`UPDATE %s SET updated_at = $2 WHERE id = $1`, r.tables.DebateSessions)
		if _, err := executor.Exec(txCtx, touch, sessionID, time.Now().UTC()); err != nil {
			return &domain.DatabaseError{Op: "touch debate session", Err: err}
		}
		return nil
	})
}

// encodeJSONB marshals v for a JSONB column; nil pointers become NULL
func encodeJSONB[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func decodeJSONB[T any](raw []byte) (*T, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
