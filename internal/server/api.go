package server

import (
	"github.com/raphaelgruber/agriassist/internal/metrics"
	"github.com/raphaelgruber/agriassist/internal/models"
	"github.com/raphaelgruber/agriassist/internal/service"
)

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	Index         service.IndexInfo `json:"index"`
	Transcription bool              `json:"transcription"`
	Sessions      int               `json:"sessions"`
}

// MetricsResponse is returned by GET /metrics.
type MetricsResponse = metrics.Snapshot

// SessionResponse is returned by POST /sessions.
type SessionResponse struct {
	ID string `json:"id"`
}

// AskRequest is the body of POST /sessions/{id}/ask.
type AskRequest struct {
	Question string `json:"question"`
}

// HistoryResponse is returned by GET /sessions/{id}/history.
type HistoryResponse struct {
	Messages []models.Message            `json:"messages"`
	Entries  []models.SessionMemoryEntry `json:"entries"`
}

// ErrorResponse is the body of every non-2xx reply without a result.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Chat frame types.
const (
	FrameAsk      = "ask"
	FrameAskAudio = "ask_audio"
	FrameClear    = "clear"
	FrameStats    = "stats"

	FrameAnswer  = "answer"
	FrameCleared = "cleared"
	FrameError   = "error"
)

// ChatRequest is a client frame on the /ws chat connection.
type ChatRequest struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Question string `json:"question,omitempty"`
	Audio    []byte `json:"audio,omitempty"`
}

// ChatResponse is a server frame on the /ws chat connection. ID echoes the
// request it answers.
type ChatResponse struct {
	ID     string               `json:"id"`
	Type   string               `json:"type"`
	Result *models.AnswerResult `json:"result,omitempty"`
	Stats  *models.Statistics   `json:"stats,omitempty"`
	Error  string               `json:"error,omitempty"`
}
