package streaming

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"llmarena/internal/domain"
	llmSvc "llmarena/internal/domain/services/llm"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClaimStore(t *testing.T, opts ...ClaimStoreOption) *ClaimStore {
	t.Helper()
	store, err := NewClaimStore(5*time.Minute, discardLogger(), opts...)
	if err != nil {
		t.Fatalf("NewClaimStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestClaimStore_ClaimOnce(t *testing.T) {
	store := newTestClaimStore(t)
	ctx := context.Background()

	resp, err := store.Create(ctx, &llmSvc.StreamParams{
		SessionID:  "session-1",
		ModelID:    "openai/gpt-4o",
		TurnNumber: 3,
		Topic:      "tabs",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if resp.ModelKey != "openai_gpt-4o-t3" {
		t.Errorf("ModelKey = %q", resp.ModelKey)
	}
	if resp.TaskID == "" || resp.SessionID != "session-1" {
		t.Errorf("unexpected response: %+v", resp)
	}

	params, err := store.Claim(ctx, resp.TaskID, resp.ModelKey, resp.SessionID)
	if err != nil {
		t.Fatalf("first Claim: %v", err)
	}
	if params.Topic != "tabs" || params.TaskID != resp.TaskID {
		t.Errorf("unexpected params: %+v", params)
	}

	if _, err := store.Claim(ctx, resp.TaskID, resp.ModelKey, resp.SessionID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second Claim: expected ErrNotFound, got %v", err)
	}
}

func TestClaimStore_KeyMismatch(t *testing.T) {
	store := newTestClaimStore(t)
	ctx := context.Background()

	resp, err := store.Create(ctx, &llmSvc.StreamParams{SessionID: "s", ModelID: "m", TurnNumber: 1})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	tests := []struct {
		name                        string
		taskID, modelKey, sessionID string
	}{
		{name: "wrong task", taskID: "other", modelKey: resp.ModelKey, sessionID: resp.SessionID},
		{name: "wrong model key", taskID: resp.TaskID, modelKey: "m-t2", sessionID: resp.SessionID},
		{name: "wrong session", taskID: resp.TaskID, modelKey: resp.ModelKey, sessionID: "other"},
		{name: "empty segment", taskID: resp.TaskID, modelKey: "", sessionID: resp.SessionID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := store.Claim(ctx, tt.taskID, tt.modelKey, tt.sessionID); !errors.Is(err, domain.ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}

	// The genuine triple is still claimable after the misses
	if _, err := store.Claim(ctx, resp.TaskID, resp.ModelKey, resp.SessionID); err != nil {
		t.Errorf("Claim after misses: %v", err)
	}
}

func TestClaimStore_Expiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	store := newTestClaimStore(t, WithClock(clock))
	ctx := context.Background()

	resp, err := store.Create(ctx, &llmSvc.StreamParams{SessionID: "s", ModelID: "m", TurnNumber: 1})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	mu.Lock()
	now = now.Add(5 * time.Minute)
	mu.Unlock()

	if _, err := store.Claim(ctx, resp.TaskID, resp.ModelKey, resp.SessionID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected expired claim to be not found, got %v", err)
	}
}

func TestClaimStore_ConcurrentClaims(t *testing.T) {
	store := newTestClaimStore(t)
	ctx := context.Background()

	resp, err := store.Create(ctx, &llmSvc.StreamParams{SessionID: "s", ModelID: "m", TurnNumber: 1})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	const claimers = 16
	var wg sync.WaitGroup
	var won, missed, failed atomic.Int32

	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Claim(ctx, resp.TaskID, resp.ModelKey, resp.SessionID)
			switch {
			case err == nil:
				won.Add(1)
			case errors.Is(err, domain.ErrNotFound):
				missed.Add(1)
			default:
				failed.Add(1)
			}
		}()
	}
	wg.Wait()

	if won.Load() != 1 {
		t.Errorf("expected exactly one successful claim, got %d", won.Load())
	}
	if missed.Load() != claimers-1 || failed.Load() != 0 {
		t.Errorf("missed=%d failed=%d", missed.Load(), failed.Load())
	}
}

func TestClaimStore_RequiresSession(t *testing.T) {
	store := newTestClaimStore(t)
	if _, err := store.Create(context.Background(), &llmSvc.StreamParams{ModelID: "m", TurnNumber: 1}); err == nil {
		t.Error("expected error for missing session id")
	}
}

func TestModelKey(t *testing.T) {
	tests := []struct {
		modelID string
		turn    int
		want    string
	}{
		{"gpt-4o", 1, "gpt-4o-t1"},
		{"anthropic/claude-sonnet-4", 2, "anthropic_claude-sonnet-4-t2"},
		{"llama 3:70b", 10, "llama_3_70b-t10"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := ModelKey(tt.modelID, tt.turn); got != tt.want {
				t.Errorf("ModelKey(%q, %d) = %q, want %q", tt.modelID, tt.turn, got, tt.want)
			}
		})
	}
}
