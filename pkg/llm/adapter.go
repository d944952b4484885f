package llm

import "context"

// Role labels a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat turn sent to the model.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Adapter streams completions from a language model. Stream returns a
// channel of text deltas that closes when the completion finishes or ctx
// is cancelled. Errors detected before any token arrives are returned
// synchronously.
type Adapter interface {
	Name() string
	Stream(ctx context.Context, messages []Message) (<-chan string, error)
}
