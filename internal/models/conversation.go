package models

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat message: a conversation turn or a prompt part.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Completion is the output of one generation provider round-trip.
type Completion struct {
	Text  string
	Audio []byte

	// Token usage, zero when the provider does not report it.
	InputTokens  int64
	OutputTokens int64
}
