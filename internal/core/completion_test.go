package core

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gwi.com/traegpt/internal/config"
)

func TestTogetherComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer together-key", r.Header.Get("Authorization"))

		var req completionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "moonshotai/kimi-k2-instruct", req.Model)
		assert.Equal(t, config.DefaultMaxTokens, req.MaxTokens)
		assert.InDelta(t, config.DefaultTemperature, req.Temperature, 1e-9)
		assert.False(t, req.Stream)
		assert.Equal(t, []ChatMessage{{Role: "system", Content: "sys"}, {Role: "user", Content: "Hello"}}, req.Messages)

		w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "  Hi there!  "}}]}`))
	}))
	defer srv.Close()

	client := NewTogetherClient("together-key", srv.URL, "moonshotai/kimi-k2-instruct", time.Second)
	reply, err := client.Complete(context.Background(), []ChatMessage{{Role: "system", Content: "sys"}, {Role: "user", Content: "Hello"}})
	require.NoError(t, err)
	assert.Equal(t, "Hi there!", reply)
}

func TestTogetherUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": "rate limited"}`))
	}))
	defer srv.Close()

	client := NewTogetherClient("k", srv.URL, "m", time.Second)
	_, err := client.Complete(context.Background(), []ChatMessage{{Role: "user", Content: "x"}})

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusTooManyRequests, upstream.Status)
	assert.Equal(t, `{"error": "rate limited"}`, upstream.Body)
}

func TestTogetherEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	_, err := NewTogetherClient("k", srv.URL, "m", time.Second).Complete(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestTogetherTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The server only notices the client hanging up once the body is consumed.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	_, err := NewTogetherClient("k", srv.URL, "m", 30*time.Millisecond).Complete(context.Background(), nil)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestTogetherNotConfigured(t *testing.T) {
	_, err := NewTogetherClient("", "http://unused", "m", time.Second).Raw(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestGeminiHistoryConversion(t *testing.T) {
	instruction, history := toGeminiHistory([]ChatMessage{
		{Role: "system", Content: "be nice"},
		{Role: "user", Content: "q"},
		{Role: "assistant", Content: "[WEB_SEARCH:q]"},
		{Role: "system", Content: "results"},
	})

	assert.Equal(t, "be nice", instruction)
	require.Len(t, history, 3)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "model", history[1].Role)
	assert.Equal(t, "user", history[2].Role)
}

func TestGeminiNotConfigured(t *testing.T) {
	svc, err := NewLLMService(context.Background(), "", "gemini-1.5-flash-latest", time.Second)
	require.NoError(t, err)
	defer svc.Close()

	_, err = svc.Complete(context.Background(), []ChatMessage{{Role: "user", Content: "x"}})
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = svc.DescribeImage(context.Background(), testImage)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
