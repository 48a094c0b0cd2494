package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/raphaelgruber/agriassist/internal/assistant"
	"github.com/raphaelgruber/agriassist/internal/models"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		Version:       s.version,
		Index:         s.rt.Info(),
		Transcription: s.rt.CanTranscribe(),
		Sessions:      s.rt.Sessions().Len(),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.rt.Metrics().Snapshot())
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.rt.Sessions().Create()
	if errors.Is(err, assistant.ErrTooManySessions) {
		writeError(w, http.StatusTooManyRequests, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, SessionResponse{ID: sess.ID()})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.rt.Sessions().Delete(r.PathValue("id")); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}

	result, err := sess.Ask(r.Context(), req.Question)
	writeResult(w, result, err)
}

func (s *Server) handleAskAudio(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	audio, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxAudioBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}

	result, err := sess.AskAudio(r.Context(), audio)
	writeResult(w, result, err)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Statistics())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{
		Messages: sess.History(),
		Entries:  sess.Entries(),
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := sess.Export(w); err != nil {
		s.logger.Error("export failed", "session_id", sess.ID(), "error", err)
	}
}

// session resolves the {id} path value, writing 404 when it is unknown.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*assistant.Session, bool) {
	sess, err := s.rt.Sessions().Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return nil, false
	}
	return sess, true
}

// writeResult maps an ask outcome to a status code. The result body is
// always sent so clients see the user-facing error text.
func writeResult(w http.ResponseWriter, result models.AnswerResult, err error) {
	status := http.StatusOK
	switch {
	case err == nil:
	case errors.Is(err, assistant.ErrEmptyQuestion):
		status = http.StatusBadRequest
	case errors.Is(err, assistant.ErrNoTranscription):
		status = http.StatusUnprocessableEntity
	default:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}
