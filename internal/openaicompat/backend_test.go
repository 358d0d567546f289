package openaicompat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorenzotomasdiez/chatbot-clinic/internal/clinic"
)

const completion = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "local-model",
  "choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "hello there"}}]
}`

func TestGenerate(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completion))
	}))
	defer server.Close()

	b := New(Settings{APIKey: "secret", BaseURL: server.URL})
	text, err := b.Generate(context.Background(), clinic.Request{
		Model: "local-model",
		Parameters: map[string]any{
			"temperature":        0.7,
			"top_k":              40,
			"repetition_penalty": 1.15,
			"max_tokens":         200,
		},
		Messages: []clinic.Message{
			{Role: "system", Content: "You are A."},
			{Role: clinic.RoleAssistant, Content: "Hello, my friend."},
			{Role: clinic.RoleUser, Content: "hi"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello there", text)

	assert.Equal(t, "local-model", body["model"])
	assert.Equal(t, 0.7, body["temperature"])
	assert.Equal(t, float64(200), body["max_tokens"])
	assert.Equal(t, float64(40), body["top_k"], "unknown parameters are passed through")
	assert.Equal(t, 1.15, body["repetition_penalty"])

	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 3)
	roles := make([]string, len(msgs))
	for i, m := range msgs {
		roles[i], _ = m.(map[string]any)["role"].(string)
	}
	assert.Equal(t, []string{"system", "assistant", "user"}, roles)
}

func TestGenerateServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"model not loaded","type":"server_error"}}`))
	}))
	defer server.Close()

	_, err := New(Settings{BaseURL: server.URL}).Generate(context.Background(), clinic.Request{Model: "m"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "zero MaxRetries must not retry")
}

func TestGenerateRetriesServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After-Ms", "1")
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":{"message":"warming up","type":"server_error"}}`))
			return
		}
		w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"ready"}}]}`))
	}))
	defer server.Close()

	got, err := New(Settings{BaseURL: server.URL, MaxRetries: 2}).Generate(context.Background(), clinic.Request{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "ready", got)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGenerateEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","object":"chat.completion","created":0,"model":"m","choices":[]}`))
	}))
	defer server.Close()

	_, err := New(Settings{BaseURL: server.URL}).Generate(context.Background(), clinic.Request{Model: "m"})
	assert.ErrorIs(t, err, ErrEmptyChoices)
}
