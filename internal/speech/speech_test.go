package speech_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/raphaelgruber/agriassist/internal/metrics"
	"github.com/raphaelgruber/agriassist/internal/speech"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscribe(t *testing.T) {
	var gotModel, gotAuth string
	var gotAudio []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/audio/transcriptions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotModel = r.FormValue("model")
		f, _, err := r.FormFile("file")
		require.NoError(t, err)
		gotAudio, _ = io.ReadAll(f)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "  How do I control aphids?\n"})
	}))
	defer srv.Close()

	mc := metrics.NewCollector()
	tr := speech.NewTranscriber(speech.Config{BaseURL: srv.URL, APIKey: "gsk_test"}, mc, nil)

	text, err := tr.Transcribe(context.Background(), []byte("RIFFfakewav"))
	require.NoError(t, err)
	assert.Equal(t, "How do I control aphids?", text)
	assert.Equal(t, speech.DefaultTranscriptionModel, gotModel)
	assert.Equal(t, "Bearer gsk_test", gotAuth)
	assert.Equal(t, []byte("RIFFfakewav"), gotAudio)
	assert.NotNil(t, mc.Snapshot().Transcription)
}

func TestTranscribeSilence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":" "}`))
	}))
	defer srv.Close()

	tr := speech.NewTranscriber(speech.Config{BaseURL: srv.URL, APIKey: "k"}, nil, nil)
	text, err := tr.Transcribe(context.Background(), []byte("silence"))
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestTranscribeErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"model overloaded","type":"server_error"}}`))
	}))
	defer srv.Close()

	tr := speech.NewTranscriber(speech.Config{BaseURL: srv.URL, APIKey: "k"}, nil, nil)

	_, err := tr.Transcribe(context.Background(), nil)
	assert.ErrorIs(t, err, speech.ErrEmptyAudio)

	_, err = tr.Transcribe(context.Background(), []byte("audio"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transcribe")
}

func TestSynthesize(t *testing.T) {
	var req map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/audio/speech", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write([]byte("RIFF0000WAVE"))
	}))
	defer srv.Close()

	s := speech.NewSynthesizer(speech.Config{BaseURL: srv.URL, APIKey: "sk-test"})
	audio, err := s.Synthesize(context.Background(), "Spray neem oil.")
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFF0000WAVE"), audio)

	assert.Equal(t, "tts-1", req["model"])
	assert.Equal(t, "alloy", req["voice"])
	assert.Equal(t, "wav", req["response_format"])
	assert.Equal(t, "Spray neem oil.", req["input"])
}

func TestSynthesizeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	_, err := speech.NewSynthesizer(speech.Config{BaseURL: srv.URL, APIKey: "bad"}).Synthesize(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "synthesize")
}

func TestTranscribeAzure(t *testing.T) {
	var gotPath, gotVersion, gotKey, gotLanguage string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotVersion = r.URL.Query().Get("api-version")
		gotKey = r.Header.Get("api-key")
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotLanguage = r.FormValue("language")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"gehun mein kitna urea"}`))
	}))
	defer srv.Close()

	tr := speech.NewTranscriber(speech.Config{
		BaseURL:    srv.URL,
		APIKey:     "azure-key",
		Model:      "whisper-deploy",
		Azure:      true,
		APIVersion: "2024-06-01",
		Language:   "hi",
	}, nil, nil)

	text, err := tr.Transcribe(context.Background(), []byte("RIFFfakewav"))
	require.NoError(t, err)
	assert.Equal(t, "gehun mein kitna urea", text)
	assert.Equal(t, "/openai/deployments/whisper-deploy/audio/transcriptions", gotPath)
	assert.Equal(t, "2024-06-01", gotVersion)
	assert.Equal(t, "azure-key", gotKey)
	assert.Equal(t, "hi", gotLanguage)
}

func TestSynthesizeAzure(t *testing.T) {
	var gotPath, gotVersion, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotVersion = r.URL.Query().Get("api-version")
		gotKey = r.Header.Get("api-key")
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write([]byte("RIFF0000WAVE"))
	}))
	defer srv.Close()

	s := speech.NewSynthesizer(speech.Config{
		BaseURL:    srv.URL,
		APIKey:     "azure-key",
		Model:      "tts-deploy",
		Azure:      true,
		APIVersion: "2024-06-01",
	})
	audio, err := s.Synthesize(context.Background(), "Spray neem oil.")
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFF0000WAVE"), audio)
	assert.Equal(t, "/openai/deployments/tts-deploy/audio/speech", gotPath)
	assert.Equal(t, "2024-06-01", gotVersion)
	assert.Equal(t, "azure-key", gotKey)
}
