// Package llm defines the chat-completion client used for guardrail
// classification, SQL generation, result explanation and title
// generation. The client returns raw model text; payload parsing is
// the caller's concern.
package llm

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a chat-completion conversation.
type Message struct {
	Role    string
	Content string
}

type Client interface {
	// Complete sends a single system/user exchange and returns the
	// model's reply text.
	Complete(ctx context.Context, systemPrompt, userMessage string) (string, error)
	// ChatHistory sends a full conversation and returns the model's
	// reply text.
	ChatHistory(ctx context.Context, messages []Message) (string, error)
}
