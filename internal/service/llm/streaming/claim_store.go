package streaming

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"llmarena/internal/domain"
	llmSvc "llmarena/internal/domain/services/llm"
)

const claimKeyPrefix = "claim/"

// claimRecord is the stored value: the resolved params plus an expiry checked on claim.
// Badger's own TTL evicts abandoned records; the expiry gives the claim an exact deadline.
type claimRecord struct {
	Params    *llmSvc.StreamParams `json:"params"`
	ExpiresAt time.Time            `json:"expiresAt"`
}

// ClaimStore holds short-lived, claim-once stream sessions in an in-memory badger DB.
//
// Create stores a record under a fresh key triple. Claim reads and deletes it
// in one transaction: of two racing claims, the loser fails with a conflict and
// is reported as not found.
type ClaimStore struct {
	db     *badger.DB
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// ClaimStoreOption configures a ClaimStore
type ClaimStoreOption func(*ClaimStore)

// WithClock overrides the clock used for expiry checks (tests)
func WithClock(now func() time.Time) ClaimStoreOption {
	return func(s *ClaimStore) { s.now = now }
}

// NewClaimStore opens an in-memory store whose records expire after ttl
func NewClaimStore(ttl time.Duration, logger *slog.Logger, opts ...ClaimStoreOption) (*ClaimStore, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("claim TTL must be positive")
	}

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open claim store: %w", err)
	}

	s := &ClaimStore{
		db:     db,
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create stores params under a new (taskId, modelKey, sessionId) triple.
// params.SessionID must already be set; TaskID and ModelKey are assigned here.
func (s *ClaimStore) Create(ctx context.Context, params *llmSvc.StreamParams) (*llmSvc.StreamInitResponse, error) {
	if params.SessionID == "" {
		return nil, fmt.Errorf("claim requires a session id")
	}

	stored := *params
	stored.TaskID = uuid.New().String()
	stored.ModelKey = ModelKey(params.ModelID, params.TurnNumber)

	value, err := json.Marshal(claimRecord{
		Params:    &stored,
		ExpiresAt: s.now().Add(s.ttl),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal claim: %w", err)
	}

	key := claimKey(stored.TaskID, stored.ModelKey, stored.SessionID)
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(key, value).WithTTL(s.ttl))
	})
	if err != nil {
		return nil, fmt.Errorf("store claim: %w", err)
	}

	s.logger.Debug("stream claim created",
		"task_id", stored.TaskID,
		"model_key", stored.ModelKey,
		"session_id", stored.SessionID,
	)

	return &llmSvc.StreamInitResponse{
		SessionID: stored.SessionID,
		TaskID:    stored.TaskID,
		ModelKey:  stored.ModelKey,
	}, nil
}

// Claim returns and removes the params stored under the triple.
// Returns a *domain.NotFoundError if the key is unknown, already claimed, or expired.
func (s *ClaimStore) Claim(ctx context.Context, taskID, modelKey, sessionID string) (*llmSvc.StreamParams, error) {
	notFound := &domain.NotFoundError{Message: "stream session not found or already consumed"}
	if taskID == "" || modelKey == "" || sessionID == "" {
		return nil, notFound
	}

	key := claimKey(taskID, modelKey, sessionID)
	var record claimRecord

	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(raw, &record); err != nil {
			return fmt.Errorf("decode claim: %w", err)
		}
		return txn.Delete(key)
	})

	switch {
	case errors.Is(err, badger.ErrKeyNotFound), errors.Is(err, badger.ErrConflict):
		return nil, notFound
	case err != nil:
		return nil, fmt.Errorf("claim stream session: %w", err)
	}

	if !s.now().Before(record.ExpiresAt) {
		s.logger.Debug("stream claim expired",
			"task_id", taskID,
			"session_id", sessionID,
		)
		return nil, notFound
	}

	return record.Params, nil
}

// Close releases the underlying database
func (s *ClaimStore) Close() error {
	return s.db.Close()
}

// ModelKey derives the URL-safe model key for one turn of one model
func ModelKey(modelID string, turnNumber int) string {
	safe := strings.NewReplacer("/", "_", ":", "_", " ", "_").Replace(modelID)
	return fmt.Sprintf("%s-t%d", safe, turnNumber)
}

func claimKey(taskID, modelKey, sessionID string) []byte {
	// NUL cannot appear in URL path segments, so the triple is unambiguous
	return []byte(claimKeyPrefix + taskID + "\x00" + modelKey + "\x00" + sessionID)
}
