package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewilliams-labs/moodmix/internal/core/domain"
	"github.com/ewilliams-labs/moodmix/internal/core/ports"
)

func newTestServer(t *testing.T, status int, body string, captured *chatCompletionRequest, auth *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if auth != nil {
			*auth = r.Header.Get("Authorization")
		}
		if captured != nil {
			if err := json.NewDecoder(r.Body).Decode(captured); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Complete_JSONMode(t *testing.T) {
	var got chatCompletionRequest
	var auth string
	srv := newTestServer(t, http.StatusOK,
		`{"choices":[{"message":{"content":" {\"energy\":0.8} "}}]}`, &got, &auth)

	c := NewClient(srv.URL, "sk-test", "gpt-test", time.Second)
	out, err := c.Complete(context.Background(), ports.CompletionRequest{
		System:      "sys",
		User:        "user",
		JSON:        true,
		Temperature: 0.5,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"energy":0.8}`, out)
	assert.Equal(t, "Bearer sk-test", auth)
	assert.Equal(t, "gpt-test", got.Model)
	assert.Equal(t, 0.5, got.Temperature)
	assert.Equal(t, "json_object", got.ResponseFormat["type"])
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "sys", got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)
}

func TestClient_Complete_TextMode(t *testing.T) {
	var got chatCompletionRequest
	srv := newTestServer(t, http.StatusOK,
		`{"choices":[{"message":{"content":"Warm and hazy."}}]}`, &got, nil)

	c := NewClient(srv.URL, "sk-test", "", time.Second)
	out, err := c.Complete(context.Background(), ports.CompletionRequest{System: "s", User: "u"})
	require.NoError(t, err)
	assert.Equal(t, "Warm and hazy.", out)
	assert.Nil(t, got.ResponseFormat)
	assert.Equal(t, defaultModel, got.Model)
}

func TestClient_Complete_Errors(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantTransport bool
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"error":{"message":"bad key"}}`, wantTransport: true},
		{name: "server error", status: http.StatusBadGateway, body: `oops`, wantTransport: true},
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`},
		{name: "empty content", status: http.StatusOK, body: `{"choices":[{"message":{"content":"  "}}]}`},
		{name: "error body", status: http.StatusOK, body: `{"error":{"message":"quota"}}`},
		{name: "not json", status: http.StatusOK, body: `<html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.status, tt.body, nil, nil)
			c := NewClient(srv.URL, "k", "m", time.Second)

			_, err := c.Complete(context.Background(), ports.CompletionRequest{User: "u"})
			require.Error(t, err)
			assert.Equal(t, tt.wantTransport, errors.Is(err, domain.ErrTransport))
		})
	}
}

func TestClient_Complete_Unreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "k", "m", 200*time.Millisecond)
	_, err := c.Complete(context.Background(), ports.CompletionRequest{User: "u"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransport)
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient("  https://llm.internal/v1/ ", " key ", "", 0)
	assert.Equal(t, "https://llm.internal/v1", c.baseURL)
	assert.Equal(t, "key", c.apiKey)
	assert.Equal(t, defaultModel, c.model)
	assert.Equal(t, 60*time.Second, c.httpClient.Timeout)

	assert.Equal(t, defaultBaseURL, NewClient("", "", "", 0).baseURL)
}
