package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/agriassist/internal/answer"
	"github.com/raphaelgruber/agriassist/internal/config"
	"github.com/raphaelgruber/agriassist/internal/embedding"
	"github.com/raphaelgruber/agriassist/internal/encoder"
	"github.com/raphaelgruber/agriassist/internal/index"
	"github.com/raphaelgruber/agriassist/internal/llm"
	"github.com/raphaelgruber/agriassist/internal/metrics"
	"github.com/raphaelgruber/agriassist/internal/models"
	"github.com/raphaelgruber/agriassist/internal/retriever"
	"github.com/raphaelgruber/agriassist/internal/server"
	"github.com/raphaelgruber/agriassist/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms/fake"
)

// testLogger creates a logger that writes to stderr for test visibility.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type staticTranscriber struct {
	text string
	err  error
}

func (t staticTranscriber) Transcribe(context.Context, []byte) (string, error) {
	return t.text, t.err
}

func newTestServer(t *testing.T, transcriber staticTranscriber) *httptest.Server {
	t.Helper()

	embedder := embedding.NewHashingClient(4096)
	docs := encoder.EncodeAll([]models.AdvisoryRecord{
		{ID: "1", Topic: "Pest Management", Region: "Punjab", Question: "How to control aphids in mustard?", Answer: "Spray neem oil."},
		{ID: "2", Topic: "Fertilizers", Region: "Bihar", Question: "When to apply urea to wheat?", Answer: "Split doses at sowing."},
	})
	ix, err := index.Build(context.Background(), docs, embedder)
	require.NoError(t, err)

	mc := metrics.NewCollector()
	r := retriever.New(embedder, ix, retriever.WithMinScore(0.3), retriever.WithMetrics(mc))
	model := llm.NewModelFromLLM(fake.NewFakeLLM([]string{"Spray neem oil at 5 ml per litre."}), "fake", 0, 0)
	g := answer.NewGenerator(model, mc, nil)

	cfg := config.Config{TopK: 3, MaxSessions: 2}
	info := service.IndexInfo{Backend: config.BackendSnapshot, Model: ix.Model(), Dimension: ix.Dimension(), Documents: ix.Len()}
	rt := service.NewRuntimeFrom(cfg, info, r, g, transcriber, mc, testLogger())

	srv := httptest.NewServer(server.New(rt, "test-version", testLogger()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func createSession(t *testing.T, base string) string {
	t.Helper()
	var s server.SessionResponse
	require.Equal(t, http.StatusCreated, doJSON(t, http.MethodPost, base+"/sessions", nil, &s))
	require.NotEmpty(t, s.ID)
	return s.ID
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, staticTranscriber{text: "hi"})

	var h server.HealthResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/health", nil, &h))
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, "test-version", h.Version)
	assert.Equal(t, 2, h.Index.Documents)
	assert.True(t, h.Transcription)
}

func TestSessionLifecycle(t *testing.T) {
	srv := newTestServer(t, staticTranscriber{})
	id := createSession(t, srv.URL)

	var res models.AnswerResult
	status := doJSON(t, http.MethodPost, srv.URL+"/sessions/"+id+"/ask",
		server.AskRequest{Question: "How to control aphids in mustard?"}, &res)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Spray neem oil at 5 ml per litre.", res.Answer)
	require.NotEmpty(t, res.Sources)
	assert.Equal(t, "1", res.Sources[0].Metadata.ID)

	var stats models.Statistics
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/sessions/"+id+"/stats", nil, &stats))
	assert.Equal(t, 1, stats.TotalQuestions)
	assert.Equal(t, []string{"Pest Management"}, stats.CommonTopics[:1])

	var hist server.HistoryResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/sessions/"+id+"/history", nil, &hist))
	require.Len(t, hist.Messages, 2)
	assert.Equal(t, models.RoleUser, hist.Messages[0].Role)
	assert.Len(t, hist.Entries, 1)

	assert.Equal(t, http.StatusNoContent, doJSON(t, http.MethodPost, srv.URL+"/sessions/"+id+"/clear", nil, nil))
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/sessions/"+id+"/stats", nil, &stats))
	assert.Zero(t, stats.TotalQuestions)

	assert.Equal(t, http.StatusNoContent, doJSON(t, http.MethodDelete, srv.URL+"/sessions/"+id, nil, nil))

	var e server.ErrorResponse
	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodGet, srv.URL+"/sessions/"+id+"/stats", nil, &e))
	assert.Contains(t, e.Error, "session not found")
}

func TestAskErrors(t *testing.T) {
	srv := newTestServer(t, staticTranscriber{})
	id := createSession(t, srv.URL)

	var res models.AnswerResult
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodPost, srv.URL+"/sessions/"+id+"/ask",
		server.AskRequest{Question: "   "}, &res))
	assert.NotEmpty(t, res.Error)

	resp, err := http.Post(srv.URL+"/sessions/"+id+"/ask", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAskNoContext(t *testing.T) {
	srv := newTestServer(t, staticTranscriber{})
	id := createSession(t, srv.URL)

	var res models.AnswerResult
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, srv.URL+"/sessions/"+id+"/ask",
		server.AskRequest{Question: "quantum computing"}, &res))
	assert.Equal(t, answer.FallbackMessage, res.Answer)
	assert.Empty(t, res.Sources)
}

func TestAskAudio(t *testing.T) {
	t.Run("transcribed", func(t *testing.T) {
		srv := newTestServer(t, staticTranscriber{text: "How to control aphids in mustard?"})
		id := createSession(t, srv.URL)

		resp, err := http.Post(srv.URL+"/sessions/"+id+"/ask-audio", "audio/wav", bytes.NewReader([]byte("RIFF....")))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var res models.AnswerResult
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
		assert.Equal(t, "How to control aphids in mustard?", res.Transcription)
		assert.NotEmpty(t, res.Answer)
	})

	t.Run("silence", func(t *testing.T) {
		srv := newTestServer(t, staticTranscriber{err: errors.New("no speech")})
		id := createSession(t, srv.URL)

		resp, err := http.Post(srv.URL+"/sessions/"+id+"/ask-audio", "audio/wav", bytes.NewReader([]byte("RIFF")))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

		var res models.AnswerResult
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
		assert.Equal(t, "Could not transcribe audio. Please try again.", res.Error)
		assert.Empty(t, res.Answer)
	})
}

func TestSessionLimit(t *testing.T) {
	srv := newTestServer(t, staticTranscriber{})
	createSession(t, srv.URL)
	createSession(t, srv.URL)

	var e server.ErrorResponse
	assert.Equal(t, http.StatusTooManyRequests, doJSON(t, http.MethodPost, srv.URL+"/sessions", nil, &e))
}

func TestMetrics(t *testing.T) {
	srv := newTestServer(t, staticTranscriber{})
	id := createSession(t, srv.URL)
	doJSON(t, http.MethodPost, srv.URL+"/sessions/"+id+"/ask", server.AskRequest{Question: "When to apply urea to wheat?"}, nil)

	var snap metrics.Snapshot
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/metrics", nil, &snap))
	assert.Equal(t, int64(1), snap.Questions)
	require.NotNil(t, snap.Retrieval)
	assert.Equal(t, int64(1), snap.Retrieval.Count)
}

func TestChatWebSocket(t *testing.T) {
	srv := newTestServer(t, staticTranscriber{})
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	send := func(req server.ChatRequest) server.ChatResponse {
		t.Helper()
		require.NoError(t, conn.WriteJSON(req))
		var resp server.ChatResponse
		require.NoError(t, conn.ReadJSON(&resp))
		assert.Equal(t, req.ID, resp.ID)
		return resp
	}

	resp := send(server.ChatRequest{ID: "1", Type: server.FrameAsk, Question: "How to control aphids in mustard?"})
	assert.Equal(t, server.FrameAnswer, resp.Type)
	require.NotNil(t, resp.Result)
	assert.Equal(t, "Spray neem oil at 5 ml per litre.", resp.Result.Answer)
	assert.Empty(t, resp.Error)

	resp = send(server.ChatRequest{ID: "2", Type: server.FrameStats})
	assert.Equal(t, server.FrameStats, resp.Type)
	require.NotNil(t, resp.Stats)
	assert.Equal(t, 1, resp.Stats.TotalQuestions)

	resp = send(server.ChatRequest{ID: "3", Type: server.FrameAskAudio, Audio: []byte("RIFF")})
	assert.Equal(t, server.FrameAnswer, resp.Type)
	assert.Equal(t, "Could not transcribe audio. Please try again.", resp.Error)

	resp = send(server.ChatRequest{ID: "4", Type: server.FrameClear})
	assert.Equal(t, server.FrameCleared, resp.Type)

	resp = send(server.ChatRequest{ID: "5", Type: "dance"})
	assert.Equal(t, server.FrameError, resp.Type)
	assert.Contains(t, resp.Error, "dance")
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	h := server.LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/boom" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok?q="+strings.Repeat("x", 300), nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	out := buf.String()
	assert.Contains(t, out, "request completed")
	assert.Contains(t, out, "request failed")
	assert.Contains(t, out, "status=500")
	assert.Contains(t, out, "...")
	assert.NotContains(t, out, strings.Repeat("x", 250))
}
