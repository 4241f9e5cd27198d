package llm

// ChunkKind tags a canonical stream chunk
type ChunkKind string

const (
	ChunkReasoning ChunkKind = "reasoning"
	ChunkText      ChunkKind = "text"
	ChunkJSON      ChunkKind = "json"
	ChunkStatus    ChunkKind = "status"
	ChunkError     ChunkKind = "error"
)

// Chunk is one normalized unit of streamed output.
// Vendor stream events are translated into chunks before they reach the relay layer.
type Chunk struct {
	Kind    ChunkKind `json:"type"`
	Payload string    `json:"delta"`
}

// IsContent reports whether the chunk carries model output (as opposed to status or error)
func (c Chunk) IsContent() bool {
	return c.Kind == ChunkReasoning || c.Kind == ChunkText || c.Kind == ChunkJSON
}

// StreamCompletion is delivered once when a stream finishes successfully
type StreamCompletion struct {
	ResponseID string         `json:"responseId"`
	Usage      *TokenUsage    `json:"tokenUsage,omitempty"`
	Cost       *Cost          `json:"cost,omitempty"`
	Response   *ModelResponse `json:"response"`
}
