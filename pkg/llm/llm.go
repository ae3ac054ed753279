// Package llm abstracts the language-model providers used for circuit
// generation.
//
// The pipeline talks to a [Provider] and never to a vendor SDK directly:
// every call site passes a full [Request] (system prompt, conversation,
// temperature) and receives plain text back. Providers normalize their
// vendor errors into the shared error taxonomy so the orchestrator can
// distinguish rate limiting and timeouts from hard failures.
package llm

import "context"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a model conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single model call.
type Request struct {
	// System is the system instruction, may be empty.
	System string
	// Messages is the conversation so far, oldest first. The last message
	// is the one being answered.
	Messages []Message
	// Temperature is the sampling temperature to use for this call.
	// Callers escalate it across retry attempts.
	Temperature float64
	// JSON asks the provider for a JSON-only reply where the backend
	// supports enforcing it.
	JSON bool
}

// Provider generates model completions.
type Provider interface {
	// Name identifies the provider and model for logs and metrics.
	Name() string

	// Generate answers the request with the model's full text reply.
	Generate(ctx context.Context, req Request) (string, error)

	// Close releases provider resources.
	Close() error
}

// UserMessage is shorthand for a single-turn request body.
func UserMessage(content string) []Message {
	return []Message{{Role: RoleUser, Content: content}}
}
