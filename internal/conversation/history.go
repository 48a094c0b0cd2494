// Package conversation holds the per-session state of an advisory chat:
// the rolling message history sent to the model and the log of answered
// questions used for statistics and export.
package conversation

import (
	"github.com/raphaelgruber/agriassist/internal/models"
)

// MaxHistoryMessages caps the messages kept for the model (five turns).
const MaxHistoryMessages = 10

// History is the rolling window of user/assistant messages, oldest first.
// It is not safe for concurrent use; the owning session serializes access.
type History struct {
	messages []models.Message
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{messages: make([]models.Message, 0, MaxHistoryMessages+2)}
}

// Append records one completed turn and drops the oldest messages beyond
// MaxHistoryMessages.
func (h *History) Append(question, answer string) {
	h.messages = append(h.messages,
		models.Message{Role: models.RoleUser, Content: question},
		models.Message{Role: models.RoleAssistant, Content: answer},
	)
	if over := len(h.messages) - MaxHistoryMessages; over > 0 {
		h.messages = append(h.messages[:0], h.messages[over:]...)
	}
}

// Messages returns a copy of the history, oldest first.
func (h *History) Messages() []models.Message {
	out := make([]models.Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Len returns the number of messages held.
func (h *History) Len() int {
	return len(h.messages)
}

// Clear empties the history.
func (h *History) Clear() {
	h.messages = h.messages[:0]
}
