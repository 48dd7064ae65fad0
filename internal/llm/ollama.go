package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"ragkb/internal/domain"
)

// Ollama generates chat completions through an Ollama chat endpoint,
// with the same retry discipline as the remote embedding provider.
type Ollama struct {
	url        string
	model      string
	maxTokens  int
	maxRetries int
	retryDelay time.Duration
	client     *http.Client
	logger     *logrus.Logger
}

// OllamaConfig configures the remote generation provider.
type OllamaConfig struct {
	URL        string
	Model      string
	MaxTokens  int
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// NewOllama creates a remote generation provider.
func NewOllama(cfg OllamaConfig, logger *logrus.Logger) *Ollama {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.Model == "" {
		cfg.Model = "llama3.2"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 192
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 300 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	return &Ollama{
		url:        cfg.URL,
		model:      cfg.Model,
		maxTokens:  cfg.MaxTokens,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		client:     &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// Chat returns a completion for the given messages. Transient transport
// failures are retried with exponential backoff; HTTP-status and
// malformed-response errors surface immediately.
func (o *Ollama) Chat(ctx context.Context, messages []domain.Message) (string, error) {
	var lastErr error
	for attempt := 0; attempt < o.maxRetries; attempt++ {
		answer, err := o.callChat(ctx, messages)
		if err == nil {
			return answer, nil
		}
		var terminal *terminalError
		if errors.As(err, &terminal) {
			return "", err
		}
		lastErr = err
		if attempt < o.maxRetries-1 {
			wait := o.retryDelay * (1 << attempt)
			o.logger.WithError(err).Warnf(
				"chat request failed (attempt %d/%d), retrying in %s",
				attempt+1, o.maxRetries, wait)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}
	return "", fmt.Errorf("failed to get chat response after %d attempts: %w", o.maxRetries, lastErr)
}

func (o *Ollama) callChat(ctx context.Context, messages []domain.Message) (string, error) {
	payload := map[string]any{
		"model":    o.model,
		"messages": messages,
		"stream":   false,
		"options":  map[string]any{"num_predict": o.maxTokens},
	}
	data, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &terminalError{fmt.Errorf("ollama chat: status %d: %s", resp.StatusCode, string(body))}
	}
	var out struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &terminalError{fmt.Errorf("ollama chat: malformed response: %w", err)}
	}
	if out.Message.Content == "" {
		return "", &terminalError{fmt.Errorf("ollama chat: empty message content in response")}
	}
	return out.Message.Content, nil
}

// terminalError marks failures that must not be retried.
type terminalError struct{ err error }

func (e *terminalError) Error() string { return e.err.Error() }
func (e *terminalError) Unwrap() error { return e.err }
