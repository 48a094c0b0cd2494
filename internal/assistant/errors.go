package assistant

import "errors"

var (
	// ErrEmptyQuestion is returned for blank questions.
	ErrEmptyQuestion = errors.New("empty question")

	// ErrNoTranscription is returned when spoken audio yields no text.
	ErrNoTranscription = errors.New("could not transcribe audio")

	// ErrSessionNotFound is returned for unknown session ids.
	ErrSessionNotFound = errors.New("session not found")

	// ErrTooManySessions is returned when the manager is at capacity.
	ErrTooManySessions = errors.New("too many sessions")
)

// Messages placed in AnswerResult.Error.
const (
	msgNoTranscription = "Could not transcribe audio. Please try again."
	msgGeneration      = "Sorry, I could not generate an answer right now. Please try again."
	msgEmptyQuestion   = "Please enter a question."
)
