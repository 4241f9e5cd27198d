package llm

import "strings"

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	// RoleContext is synthetic. Adapters without native support merge it into user content.
	RoleContext = "context"
)

// ModelMessage is one turn of conversation sent to a provider
type ModelMessage struct {
	Role     string                 `json:"role"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// MergeContextMessages folds context-role messages into the next user message.
// A trailing context message with no following user message becomes a user message.
func MergeContextMessages(messages []ModelMessage) []ModelMessage {
	result := make([]ModelMessage, 0, len(messages))
	var pending []string

	for _, msg := range messages {
		if msg.Role == RoleContext {
			pending = append(pending, msg.Content)
			continue
		}

		if msg.Role == RoleUser && len(pending) > 0 {
			pending = append(pending, msg.Content)
			msg.Content = strings.Join(pending, "\n\n")
			pending = nil
		}

		result = append(result, msg)
	}

	if len(pending) > 0 {
		result = append(result, ModelMessage{
			Role:    RoleUser,
			Content: strings.Join(pending, "\n\n"),
		})
	}

	return result
}

// SplitSystem separates system messages (joined) from the rest of the conversation.
// Used by vendors that take the system prompt out of band.
func SplitSystem(messages []ModelMessage) (string, []ModelMessage) {
	var system []string
	rest := make([]ModelMessage, 0, len(messages))

	for _, msg := range messages {
		if msg.Role == RoleSystem {
			system = append(system, msg.Content)
			continue
		}
		rest = append(rest, msg)
	}

	return strings.Join(system, "\n\n"), rest
}
