package llm

import (
	"context"

	"llmarena/internal/domain/models/llm"
)

// StreamingService defines the init/claim/run lifecycle for debate turn streams.
// Init stores a claim; the SSE handler claims it exactly once and runs it.
type StreamingService interface {
	// Init validates the request, resolves the debate session and stores a claim.
	// Returns the key triple the client uses to open the SSE stream.
	Init(ctx context.Context, req *StreamInitRequest) (*StreamInitResponse, error)

	// Claim consumes the claim for a key triple.
	// Returns domain.ErrNotFound (matchable) if the key was already claimed or has expired.
	Claim(ctx context.Context, taskID, modelKey, sessionID string) (*StreamParams, error)

	// Run performs the claimed turn, relaying output to the emitter.
	// The emitter receives exactly one terminal event unless the client disconnects first.
	Run(ctx context.Context, params *StreamParams, emitter StreamEmitter)
}

// StreamEmitter is the relay surface the streaming service writes to (the SSE session)
type StreamEmitter interface {
	Init(event llm.StreamInitEvent)
	Status(event llm.StreamStatusEvent)
	Chunk(event llm.StreamChunkEvent)
	Error(event llm.StreamErrorEvent)
	Complete(event llm.StreamCompleteEvent)
}

// StreamInitRequest is the DTO for POST /api/debate/stream/init
type StreamInitRequest struct {
	ModelID            string   `json:"modelId"`
	Topic              string   `json:"topic"`
	Role               string   `json:"role"`
	Intensity          int      `json:"intensity"`
	OpponentMessage    string   `json:"opponentMessage"`
	PreviousResponseID string   `json:"previousResponseId"`
	TurnNumber         int      `json:"turnNumber"`
	SessionID          string   `json:"sessionId,omitempty"`
	Model1ID           string   `json:"model1Id,omitempty"`
	Model2ID           string   `json:"model2Id,omitempty"`
	ReasoningEffort    string   `json:"reasoningEffort,omitempty"`
	ReasoningSummary   string   `json:"reasoningSummary,omitempty"`
	TextVerbosity      string   `json:"textVerbosity,omitempty"`
	Temperature        *float64 `json:"temperature,omitempty"`
	MaxTokens          *int     `json:"maxTokens,omitempty"`
}

// CallOptions extracts per-call options from the request
func (r *StreamInitRequest) CallOptions() *llm.CallOptions {
	return &llm.CallOptions{
		Temperature:        r.Temperature,
		MaxTokens:          r.MaxTokens,
		ReasoningEffort:    r.ReasoningEffort,
		ReasoningSummary:   r.ReasoningSummary,
		TextVerbosity:      r.TextVerbosity,
		PreviousResponseID: r.PreviousResponseID,
	}
}

// StreamInitResponse is the key triple returned by init
type StreamInitResponse struct {
	SessionID string `json:"sessionId"`
	TaskID    string `json:"taskId"`
	ModelKey  string `json:"modelKey"`
}

// StreamParams are the resolved call parameters held by a claim
type StreamParams struct {
	TaskID          string           `json:"taskId"`
	ModelKey        string           `json:"modelKey"`
	SessionID       string           `json:"sessionId"`
	ModelID         string           `json:"modelId"`
	Role            string           `json:"role"`
	TurnNumber      int              `json:"turnNumber"`
	Topic           string           `json:"topic"`
	Intensity       int              `json:"intensity"`
	OpponentMessage string           `json:"opponentMessage"`
	Options         *llm.CallOptions `json:"options,omitempty"`
}
