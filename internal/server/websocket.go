package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/agriassist/internal/assistant"
	"github.com/raphaelgruber/agriassist/internal/models"
)

const (
	// pongWait is how long a chat connection may stay silent.
	pongWait = 60 * time.Second
	// pingPeriod must be shorter than pongWait.
	pingPeriod = 50 * time.Second
	writeWait  = 10 * time.Second
)

// handleChat upgrades to a WebSocket and serves one private session for
// the lifetime of the connection. Frames are handled in order.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sess := s.rt.NewSession(uuid.NewString())
	logger := s.logger.With("session_id", sess.ID())
	logger.Info("chat connected", "remote", r.RemoteAddr)

	conn.SetReadLimit(maxAudioBytes * 2)
	extend := func() error {
		return conn.SetReadDeadline(time.Now().Add(s.pongWait))
	}
	_ = extend()
	conn.SetPongHandler(func(string) error { return extend() })

	// gorilla/websocket supports one concurrent writer, so replies and
	// pings all go through this goroutine.
	frames := make(chan ChatResponse)
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(s.pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case resp := <-frames:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(resp); err != nil {
					logger.Warn("chat write failed", "error", err)
				}
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					logger.Debug("chat ping failed", "error", err)
				}
			case <-done:
				return
			}
		}
	}()
	defer close(done)

	ctx := r.Context()
	for {
		var req ChatRequest
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("chat read ended", "error", err)
			}
			logger.Info("chat disconnected")
			return
		}

		// Pongs are only processed while reading, so a long ask must not
		// count against the idle deadline.
		select {
		case frames <- s.chatFrame(ctx, sess, req):
		case <-ctx.Done():
			return
		}
		_ = extend()
	}
}

func (s *Server) chatFrame(ctx context.Context, sess *assistant.Session, req ChatRequest) ChatResponse {
	resp := ChatResponse{ID: req.ID}
	switch req.Type {
	case FrameAsk, FrameAskAudio:
		var result models.AnswerResult
		var err error
		if req.Type == FrameAsk {
			result, err = sess.Ask(ctx, req.Question)
		} else {
			result, err = sess.AskAudio(ctx, req.Audio)
		}
		resp.Type = FrameAnswer
		resp.Result = &result
		if err != nil {
			resp.Error = result.Error
		}
	case FrameClear:
		sess.Clear()
		resp.Type = FrameCleared
	case FrameStats:
		stats := sess.Statistics()
		resp.Type = FrameStats
		resp.Stats = &stats
	default:
		resp.Type = FrameError
		resp.Error = "unknown frame type: " + req.Type
	}
	return resp
}
