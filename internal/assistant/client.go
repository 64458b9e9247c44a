// Package assistant runs the AI prompts behind baby updates, health tips,
// the dashboard tip and the health chatbot.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"maternity-companion-server/internal/config"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	ErrNotConfigured     = errors.New("assistant provider not configured")
	ErrUnavailable       = errors.New("assistant provider unavailable")
	ErrInvalidOutput     = errors.New("assistant returned invalid output")
	ErrIncompleteProfile = errors.New("pregnancy profile incomplete")
)

// StatusError is a non-200 reply from the provider.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, e.Body)
}

// countsAsFailure reports whether err says the provider is unhealthy.
// Callers giving up and requests the provider rejects (4xx other than 429)
// leave the breaker alone.
func countsAsFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var status *StatusError
	if errors.As(err, &status) && status.Code >= 400 && status.Code < 500 {
		return status.Code == http.StatusTooManyRequests
	}
	return true
}

// Message is a single chat turn sent to the provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generator executes a prompt and returns the model's text.
type Generator interface {
	Complete(ctx context.Context, messages []Message, jsonOutput bool) (string, error)
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
}

// HTTPGenerator talks to an OpenAI-compatible /chat/completions endpoint.
type HTTPGenerator struct {
	cfg     config.AssistantConfig
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[string]
	logger  *zap.Logger
}

// NewHTTPGenerator creates a provider client. Calls are paced by the
// configured requests-per-minute and short-circuited after repeated failures.
func NewHTTPGenerator(cfg config.AssistantConfig, logger *zap.Logger) *HTTPGenerator {
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 60
	}

	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(cfg.RequestsPerMinute) / 60.0)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	g := &HTTPGenerator{
		cfg:     cfg,
		client:  &http.Client{Timeout: time.Duration(timeout) * time.Second},
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
	g.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "assistant",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return !countsAsFailure(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return g
}

// Complete sends messages and returns the first choice's content.
func (g *HTTPGenerator) Complete(ctx context.Context, messages []Message, jsonOutput bool) (string, error) {
	if g.cfg.APIKey == "" {
		return "", ErrNotConfigured
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	out, err := g.breaker.Execute(func() (string, error) {
		return g.send(ctx, messages, jsonOutput)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out, err
}

func (g *HTTPGenerator) send(ctx context.Context, messages []Message, jsonOutput bool) (string, error) {
	req := chatRequest{
		Model:       g.cfg.Model,
		Messages:    messages,
		Temperature: 0.7,
	}
	if jsonOutput {
		req.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimRight(g.cfg.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)

	start := time.Now()
	resp, err := g.client.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%w: %w", ErrUnavailable, ctxErr)
		}
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: %w", ErrUnavailable, &StatusError{Code: resp.StatusCode, Body: string(bodyBytes)})
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%w: %w", ErrUnavailable, ctxErr)
		}
		return "", fmt.Errorf("%w: failed to decode response: %v", ErrInvalidOutput, err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrInvalidOutput)
	}

	g.logger.Debug("Assistant completion",
		zap.String("model", g.cfg.Model),
		zap.Int("messages", len(messages)),
		zap.Duration("latency", time.Since(start)),
		zap.String("finish_reason", result.Choices[0].FinishReason),
	)
	return result.Choices[0].Message.Content, nil
}
