// Package client provides a Go client for the agriassist server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/agriassist/internal/assistant"
	"github.com/raphaelgruber/agriassist/internal/metrics"
	"github.com/raphaelgruber/agriassist/internal/models"
	"github.com/raphaelgruber/agriassist/internal/server"
)

// DefaultURL is used when no server URL is configured.
const DefaultURL = "http://localhost:8585"

// Client talks to the agriassist HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new client.
// If baseURL is empty, uses AGRI_SERVER_URL env var or defaults to localhost:8585.
// Timeout can be configured via AGRI_CLIENT_TIMEOUT env var (default 2m for LLM answers).
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("AGRI_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = DefaultURL
	}

	timeout := 2 * time.Minute
	if t := os.Getenv("AGRI_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error: %d %s", e.StatusCode, e.Message)
}

// do sends a request and decodes a JSON response into result. Non-2xx
// responses return *APIError; when decodeOnError is set the body is still
// decoded into result.
func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, result any, decodeOnError bool) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if result != nil && len(data) > 0 && (ok || decodeOnError) {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	if ok {
		return nil
	}

	msg := strings.TrimSpace(string(data))
	var e server.ErrorResponse
	if json.Unmarshal(data, &e) == nil && e.Error != "" {
		msg = e.Error
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, result any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	return c.do(ctx, method, path, "application/json", body, result, false)
}

// Health returns server status and index information.
func (c *Client) Health(ctx context.Context) (*server.HealthResponse, error) {
	var out server.HealthResponse
	if err := c.doJSON(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Metrics returns the server's runtime metrics.
func (c *Client) Metrics(ctx context.Context) (*metrics.Snapshot, error) {
	var out metrics.Snapshot
	if err := c.doJSON(ctx, http.MethodGet, "/metrics", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateSession opens a server-side session and returns its id.
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	var out server.SessionResponse
	if err := c.doJSON(ctx, http.MethodPost, "/sessions", nil, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// DeleteSession closes a server-side session.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, sessionPath(id, ""), nil, nil)
}

// Ask asks a question in a session. On failure the returned result still
// carries the user-facing error text.
func (c *Client) Ask(ctx context.Context, sessionID, question string) (*models.AnswerResult, error) {
	data, err := json.Marshal(server.AskRequest{Question: question})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	var out models.AnswerResult
	err = c.do(ctx, http.MethodPost, sessionPath(sessionID, "/ask"), "application/json", bytes.NewReader(data), &out, true)
	return &out, err
}

// AskAudio uploads a spoken question.
func (c *Client) AskAudio(ctx context.Context, sessionID string, audio []byte) (*models.AnswerResult, error) {
	var out models.AnswerResult
	err := c.do(ctx, http.MethodPost, sessionPath(sessionID, "/ask-audio"), "application/octet-stream", bytes.NewReader(audio), &out, true)
	return &out, err
}

// Clear empties a session's history and log.
func (c *Client) Clear(ctx context.Context, sessionID string) error {
	return c.doJSON(ctx, http.MethodPost, sessionPath(sessionID, "/clear"), nil, nil)
}

// Statistics returns a session's statistics.
func (c *Client) Statistics(ctx context.Context, sessionID string) (*models.Statistics, error) {
	var out models.Statistics
	if err := c.doJSON(ctx, http.MethodGet, sessionPath(sessionID, "/stats"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// History returns a session's conversation and log.
func (c *Client) History(ctx context.Context, sessionID string) (*server.HistoryResponse, error) {
	var out server.HistoryResponse
	if err := c.doJSON(ctx, http.MethodGet, sessionPath(sessionID, "/history"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Export returns a session's exported log.
func (c *Client) Export(ctx context.Context, sessionID string) ([]assistant.ExportEntry, error) {
	var out []assistant.ExportEntry
	if err := c.doJSON(ctx, http.MethodGet, sessionPath(sessionID, "/export"), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func sessionPath(id, suffix string) string {
	return "/sessions/" + url.PathEscape(id) + suffix
}

// ChatConn is a WebSocket chat with a private server session.
// Calls are serialized; a ChatConn is safe for concurrent use.
type ChatConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// DialChat opens a chat connection.
func (c *Client) DialChat(ctx context.Context) (*ChatConn, error) {
	// Convert HTTP endpoint to WebSocket endpoint
	wsEndpoint := c.baseURL + "/ws"
	wsEndpoint = strings.Replace(wsEndpoint, "http://", "ws://", 1)
	wsEndpoint = strings.Replace(wsEndpoint, "https://", "wss://", 1)

	u, err := url.Parse(wsEndpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket connect: %w", err)
	}
	return &ChatConn{conn: conn}, nil
}

// Ask sends a question and waits for the answer frame.
func (cc *ChatConn) Ask(ctx context.Context, question string) (*server.ChatResponse, error) {
	return cc.roundTrip(ctx, server.ChatRequest{Type: server.FrameAsk, Question: question})
}

// AskAudio sends a spoken question and waits for the answer frame.
func (cc *ChatConn) AskAudio(ctx context.Context, audio []byte) (*server.ChatResponse, error) {
	return cc.roundTrip(ctx, server.ChatRequest{Type: server.FrameAskAudio, Audio: audio})
}

// Clear empties the connection's session.
func (cc *ChatConn) Clear(ctx context.Context) error {
	_, err := cc.roundTrip(ctx, server.ChatRequest{Type: server.FrameClear})
	return err
}

// Statistics returns the connection's session statistics.
func (cc *ChatConn) Statistics(ctx context.Context) (*models.Statistics, error) {
	resp, err := cc.roundTrip(ctx, server.ChatRequest{Type: server.FrameStats})
	if err != nil {
		return nil, err
	}
	if resp.Stats == nil {
		return nil, fmt.Errorf("stats frame without statistics")
	}
	return resp.Stats, nil
}

// Close closes the connection.
func (cc *ChatConn) Close() error {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	_ = cc.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return cc.conn.Close()
}

func (cc *ChatConn) roundTrip(ctx context.Context, req server.ChatRequest) (*server.ChatResponse, error) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	req.ID = uuid.NewString()
	_ = cc.conn.SetReadDeadline(time.Time{})

	// Unblock reads when the context ends
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = cc.conn.SetReadDeadline(time.Now())
		case <-done:
		}
	}()

	if err := cc.conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("send %s: %w", req.Type, err)
	}

	// Read frames until the reply to this request arrives
	for {
		var resp server.ChatResponse
		if err := cc.conn.ReadJSON(&resp); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("read message: %w", err)
		}
		if resp.ID != req.ID {
			continue
		}
		if resp.Type == server.FrameError {
			return nil, fmt.Errorf("chat error: %s", resp.Error)
		}
		return &resp, nil
	}
}
