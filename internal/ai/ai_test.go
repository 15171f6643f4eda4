package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddingClientOpenAIFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "text-embedding-3-small", body.Model)
		assert.Equal(t, []string{"a", "b"}, body.Input)

		// out-of-order indices must be placed by index
		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`))
	}))
	defer srv.Close()

	c, err := NewEmbeddingClient(EmbeddingConfig{BaseURL: srv.URL + "/v1/", APIKey: "sk-test", Model: "text-embedding-3-small"})
	require.NoError(t, err)

	vecs, err := c.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)
	assert.Equal(t, "text-embedding-3-small", c.Model())
}

func TestEmbeddingClientTEIFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[[0.5,0.5,0.5]]`))
	}))
	defer srv.Close()

	c, err := NewEmbeddingClient(EmbeddingConfig{BaseURL: srv.URL, Model: "bge", Format: FormatTEI})
	require.NoError(t, err)

	vecs, err := c.EmbedBatch(context.Background(), []string{"hello"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.5, 0.5, 0.5}}, vecs)
}

func TestEmbeddingClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[1]}]}`))
	}))
	defer srv.Close()

	c, err := NewEmbeddingClient(EmbeddingConfig{BaseURL: srv.URL, Model: "m", MaxRetries: 1})
	require.NoError(t, err)

	vecs, err := c.EmbedBatch(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Len(t, vecs, 1)
	assert.EqualValues(t, 2, calls.Load())
}

func TestEmbeddingClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, err := NewEmbeddingClient(EmbeddingConfig{BaseURL: srv.URL, Model: "m", MaxRetries: 3})
	require.NoError(t, err)

	_, err = c.EmbedBatch(context.Background(), []string{"x"})
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.EqualValues(t, 1, calls.Load())
}

func TestEmbeddingClientRejectsMalformedPayloads(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{"not json", `<html>`, ErrMalformedResponse},
		{"missing vectors", `{"data":[]}`, ErrEmptyEmbedding},
		{"empty vector", `{"data":[{"index":0,"embedding":[]}]}`, ErrEmptyEmbedding},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c, err := NewEmbeddingClient(EmbeddingConfig{BaseURL: srv.URL, Model: "m"})
			require.NoError(t, err)
			_, err = c.EmbedBatch(context.Background(), []string{"x"})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNewEmbeddingClientValidation(t *testing.T) {
	_, err := NewEmbeddingClient(EmbeddingConfig{})
	assert.Error(t, err)
	_, err = NewEmbeddingClient(EmbeddingConfig{BaseURL: "http://x", Format: "grpc"})
	assert.Error(t, err)
}

func TestChatComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		var body struct {
			Messages []ChatMessage `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Messages, 2)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Revenue rose [1]."}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAICompatibleClient(ChatConfig{BaseURL: srv.URL, APIKey: "k", Model: "gpt", Timeout: time.Second})
	out, err := c.Complete(context.Background(), []ChatMessage{{Role: "system", Content: "s"}, {Role: "user", Content: "u"}})
	require.NoError(t, err)
	assert.Equal(t, "Revenue rose [1].", out)
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 200*time.Millisecond, backoff(0, nil))
	assert.Equal(t, 800*time.Millisecond, backoff(2, nil))
	assert.Equal(t, 5*time.Second, backoff(10, nil))

	ra := &retryAfterError{StatusError: &StatusError{StatusCode: 429}, after: 2 * time.Second}
	assert.Equal(t, 2*time.Second, backoff(0, ra))
	assert.Equal(t, 3*time.Second, parseRetryAfter("3"))
	assert.Zero(t, parseRetryAfter("soon"))
}
