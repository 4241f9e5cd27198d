package llm

import (
	"encoding/json"
	"fmt"
	"time"
)

// SSE event type constants
const (
	SSEEventInit      = "stream.init"      // Stream claimed, provider call starting
	SSEEventStatus    = "stream.status"    // Progress/status update
	SSEEventChunk     = "stream.chunk"     // Incremental reasoning/text/json output
	SSEEventError     = "stream.error"     // Terminal: stream failed
	SSEEventComplete  = "stream.complete"  // Terminal: stream finished successfully
	SSEEventKeepAlive = "stream.keepalive" // Heartbeat
)

// IsTerminalEvent reports whether the event ends a stream
func IsTerminalEvent(event string) bool {
	return event == SSEEventError || event == SSEEventComplete
}

// StreamMeta is stamped on every emitted event so clients can correlate frames
type StreamMeta struct {
	TaskID    string    `json:"taskId"`
	ModelKey  string    `json:"modelKey"`
	SessionID string    `json:"sessionId"`
	EmittedAt time.Time `json:"emittedAt"`
}

// StreamInitEvent is sent once the claim succeeds
type StreamInitEvent struct {
	ModelID    string `json:"modelId"`
	TurnNumber int    `json:"turnNumber,omitempty"`
	Role       string `json:"role,omitempty"`
}

// StreamStatusEvent carries a human-readable progress phase
type StreamStatusEvent struct {
	Phase   string `json:"phase"`
	Message string `json:"message,omitempty"`
}

// StreamChunkEvent carries one normalized chunk
type StreamChunkEvent struct {
	Type  ChunkKind `json:"type"`
	Delta string    `json:"delta"`
}

// StreamErrorEvent is the terminal failure event
type StreamErrorEvent struct {
	Code       string                 `json:"error"`
	Message    string                 `json:"message"`
	Context    map[string]interface{} `json:"context,omitempty"`
	RetryAfter int                    `json:"retryAfter,omitempty"`
}

// StreamCompleteEvent is the terminal success event
type StreamCompleteEvent struct {
	ResponseID   string      `json:"responseId"`
	Content      string      `json:"content"`
	Reasoning    string      `json:"reasoning,omitempty"`
	ResponseTime int64       `json:"responseTime"`
	TokenUsage   *TokenUsage `json:"tokenUsage,omitempty"`
	Cost         *Cost       `json:"cost,omitempty"`
	TurnNumber   int         `json:"turnNumber,omitempty"`
}

// StreamKeepAliveEvent is the heartbeat payload
type StreamKeepAliveEvent struct {
	Timestamp int64 `json:"timestamp"`
}

// FormatSSE formats an SSE event for transmission
// Returns a string in SSE format:
//
//	event: event_name
//	data: {"field": "value"}
func FormatSSE(event string, data interface{}) (string, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal SSE data: %w", err)
	}
	return fmt.Sprintf("event: %s\ndata: %s\n\n", event, payload), nil
}

// StampEvent merges the stream metadata into the event payload.
// Payloads that are not JSON objects are nested under "data".
func StampEvent(meta StreamMeta, data interface{}) (map[string]interface{}, error) {
	out := map[string]interface{}{}

	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal event payload: %w", err)
		}
		if err := json.Unmarshal(raw, &out); err != nil {
			out = map[string]interface{}{"data": json.RawMessage(raw)}
		}
	}

	out["taskId"] = meta.TaskID
	out["modelKey"] = meta.ModelKey
	out["sessionId"] = meta.SessionID
	out["emittedAt"] = meta.EmittedAt.UTC().Format(time.RFC3339Nano)

	return out, nil
}
