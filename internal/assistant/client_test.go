package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"maternity-companion-server/internal/config"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestGenerator(baseURL, apiKey string) *HTTPGenerator {
	return NewHTTPGenerator(config.AssistantConfig{
		BaseURL:        baseURL,
		APIKey:         apiKey,
		Model:          "test-model",
		TimeoutSeconds: 5,
	}, zap.NewNop())
}

func TestHTTPGenerator_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		if assert.NotNil(t, req.ResponseFormat) {
			assert.Equal(t, "json_object", req.ResponseFormat.Type)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"ok\":true}"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	gen := newTestGenerator(server.URL+"/v1/", "sk-test")
	out, err := gen.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, true)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
}

func TestHTTPGenerator_NotConfigured(t *testing.T) {
	gen := newTestGenerator("http://127.0.0.1:1", "")
	_, err := gen.Complete(context.Background(), nil, false)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestHTTPGenerator_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	gen := newTestGenerator(server.URL, "sk-test")
	_, err := gen.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, false)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "overloaded")
}

func TestHTTPGenerator_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	gen := newTestGenerator(server.URL, "sk-test")
	_, err := gen.Complete(context.Background(), nil, false)
	assert.ErrorIs(t, err, ErrInvalidOutput)
}

func TestHTTPGenerator_BreakerOpensAfterFailures(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	gen := newTestGenerator(server.URL, "sk-test")
	for i := 0; i < 8; i++ {
		_, err := gen.Complete(context.Background(), nil, false)
		assert.ErrorIs(t, err, ErrUnavailable)
	}
	// Five consecutive failures trip the breaker; later calls never reach the server.
	assert.Equal(t, int32(5), hits.Load())
}

func TestHTTPGenerator_CallerTimeoutsDoNotTripBreaker(t *testing.T) {
	var slow atomic.Bool
	slow.Store(true)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if slow.Load() {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello"}}]}`))
	}))
	defer server.Close()

	gen := newTestGenerator(server.URL, "sk-test")
	for i := 0; i < 6; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		_, err := gen.Complete(ctx, nil, false)
		cancel()
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	}
	assert.Equal(t, gobreaker.StateClosed, gen.breaker.State())

	slow.Store(false)
	out, err := gen.Complete(context.Background(), nil, false)
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestHTTPGenerator_ClientErrorsDoNotTripBreaker(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, `{"error":"context_length_exceeded"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	gen := newTestGenerator(server.URL, "sk-test")
	for i := 0; i < 7; i++ {
		_, err := gen.Complete(context.Background(), nil, false)
		assert.ErrorIs(t, err, ErrUnavailable)
		var status *StatusError
		require.ErrorAs(t, err, &status)
		assert.Equal(t, http.StatusBadRequest, status.Code)
	}
	assert.Equal(t, int32(7), hits.Load())
	assert.Equal(t, gobreaker.StateClosed, gen.breaker.State())
}

func TestCountsAsFailure(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", fmt.Errorf("%w: %w", ErrUnavailable, context.Canceled), false},
		{"deadline", fmt.Errorf("%w: %w", ErrUnavailable, context.DeadlineExceeded), false},
		{"bad request", fmt.Errorf("%w: %w", ErrUnavailable, &StatusError{Code: 400}), false},
		{"unauthorized", &StatusError{Code: 401}, false},
		{"throttled", &StatusError{Code: 429}, true},
		{"server error", &StatusError{Code: 502}, true},
		{"transport", fmt.Errorf("%w: connection refused", ErrUnavailable), true},
		{"garbled body", fmt.Errorf("%w: no choices returned", ErrInvalidOutput), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, countsAsFailure(tc.err))
		})
	}
}
