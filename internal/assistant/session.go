// Package assistant orchestrates advisory sessions: retrieval, answer
// generation and per-session conversation state.
package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raphaelgruber/agriassist/internal/answer"
	"github.com/raphaelgruber/agriassist/internal/conversation"
	"github.com/raphaelgruber/agriassist/internal/metrics"
	"github.com/raphaelgruber/agriassist/internal/models"
)

// Retriever finds context documents for a question.
type Retriever interface {
	Search(ctx context.Context, query string, k int) []models.EncodedDocument
}

// Generator answers a question from context and history.
type Generator interface {
	Generate(ctx context.Context, question string, docs []models.EncodedDocument, history []models.Message, wantsAudio bool) (answer.Reply, error)
}

// Transcriber turns spoken audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Options configures a Session.
type Options struct {
	// TopK is the number of documents retrieved per question (0 uses the
	// retriever's default).
	TopK int

	// WantsAudio requests spoken answers from the generator.
	WantsAudio bool

	Metrics *metrics.Collector
	Logger  *slog.Logger

	// Now overrides the clock (tests).
	Now func() time.Time
}

// Session owns the conversation state of one user. Operations on a session
// are serialized so each turn sees and updates a consistent history.
type Session struct {
	id          string
	retriever   Retriever
	generator   Generator
	transcriber Transcriber
	opts        Options
	logger      *slog.Logger

	mu      sync.Mutex
	history *conversation.History
	log     *conversation.Log
	created time.Time

	// touched is the last activity in unix nanoseconds. It is read
	// without mu so idle checks never wait on an in-flight ask.
	touched atomic.Int64
}

// NewSession creates a Session. transcriber may be nil, in which case
// AskAudio always fails with ErrNoTranscription.
func NewSession(id string, retriever Retriever, generator Generator, transcriber Transcriber, opts Options) *Session {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if id != "" {
		logger = logger.With("session_id", id)
	}
	now := opts.Now()
	s := &Session{
		id:          id,
		retriever:   retriever,
		generator:   generator,
		transcriber: transcriber,
		opts:        opts,
		logger:      logger,
		history:     conversation.NewHistory(),
		log:         conversation.NewLog(),
		created:     now,
	}
	s.touched.Store(now.UnixNano())
	return s
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Ask answers a question. Grounded answers update the history and the
// session log; the fallback answer and failures leave both untouched.
// A generation failure returns a result with Error set together with an
// error wrapping answer.ErrGenerationProvider.
func (s *Session) Ask(ctx context.Context, question string) (models.AnswerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ask(ctx, question)
}

func (s *Session) ask(ctx context.Context, question string) (models.AnswerResult, error) {
	now := s.opts.Now()
	s.touched.Store(now.UnixNano())

	question = strings.TrimSpace(question)
	result := models.AnswerResult{
		Question:  question,
		Sources:   []models.EncodedDocument{},
		Timestamp: now,
	}
	if question == "" {
		result.Error = msgEmptyQuestion
		return result, ErrEmptyQuestion
	}
	s.count(metrics.CountQuestions)

	start := time.Now()
	docs := s.retriever.Search(ctx, question, s.opts.TopK)
	if docs == nil {
		docs = []models.EncodedDocument{}
	}
	result.Sources = docs
	result.SourceCount = len(docs)

	reply, err := s.generator.Generate(ctx, question, docs, s.history.Messages(), s.opts.WantsAudio)
	if err != nil {
		s.logger.Error("ask failed", "error", err, "source_count", len(docs))
		result.Error = msgGeneration
		return result, fmt.Errorf("ask: %w", err)
	}

	result.Answer = reply.Text
	result.Audio = reply.Audio

	if !reply.Grounded {
		s.count(metrics.CountNoContext)
		s.logger.Info("no context found", "question_len", len(question))
		return result, nil
	}

	s.history.Append(question, reply.Text)
	s.log.Add(models.SessionMemoryEntry{
		Timestamp:   now,
		Question:    question,
		Answer:      reply.Text,
		Sources:     docs,
		SourceCount: len(docs),
	})

	s.logger.Info("answered question",
		"source_count", len(docs),
		"sources", models.DocumentIDs(docs),
		"history_len", s.history.Len(),
		"duration_ms", time.Since(start).Milliseconds())
	return result, nil
}

// AskAudio transcribes a spoken question and answers it. Empty or failed
// transcriptions return a result with an empty answer and Error set, and
// wrap ErrNoTranscription; state is not modified.
func (s *Session) AskAudio(ctx context.Context, audio []byte) (models.AnswerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	failed := models.AnswerResult{
		Sources:   []models.EncodedDocument{},
		Timestamp: s.opts.Now(),
		Error:     msgNoTranscription,
	}
	if s.transcriber == nil {
		return failed, fmt.Errorf("%w: no transcription provider configured", ErrNoTranscription)
	}

	text, err := s.transcriber.Transcribe(ctx, audio)
	if err != nil {
		s.logger.Warn("transcription failed", "error", err, "audio_bytes", len(audio))
		return failed, fmt.Errorf("%w: %w", ErrNoTranscription, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		s.logger.Info("transcription empty", "audio_bytes", len(audio))
		return failed, ErrNoTranscription
	}

	result, err := s.ask(ctx, text)
	result.Transcription = text
	return result, err
}

// Clear empties the history and the session log together.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.Clear()
	s.log.Clear()
	s.logger.Info("session cleared")
}

// Statistics summarizes the session log.
func (s *Session) Statistics() models.Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.Statistics()
}

// History returns the conversation messages, oldest first.
func (s *Session) History() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Messages()
}

// Entries returns the session log, oldest first.
func (s *Session) Entries() []models.SessionMemoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.Entries()
}

// LastActive returns when the session last handled a question.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.touched.Load())
}

// ExportEntry is one exported log entry.
type ExportEntry struct {
	Timestamp   time.Time `json:"timestamp"`
	Question    string    `json:"question"`
	Answer      string    `json:"answer"`
	SourceIDs   []string  `json:"source_ids"`
	SourceCount int       `json:"source_count"`
}

// Export writes the session log to w as indented JSON.
func (s *Session) Export(w io.Writer) error {
	entries := s.Entries()
	out := make([]ExportEntry, len(entries))
	for i, e := range entries {
		out[i] = ExportEntry{
			Timestamp:   e.Timestamp,
			Question:    e.Question,
			Answer:      e.Answer,
			SourceIDs:   models.DocumentIDs(e.Sources),
			SourceCount: e.SourceCount,
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("export session: %w", err)
	}
	return nil
}

func (s *Session) count(name string) {
	if s.opts.Metrics != nil {
		s.opts.Metrics.Inc(name)
	}
}
