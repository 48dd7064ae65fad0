package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Ollama embeds text batches through an Ollama embeddings endpoint.
// Requests of one batch are dispatched across a small bounded worker pool;
// output order is reassembled by index.
type Ollama struct {
	url        string
	model      string
	maxRetries int
	retryDelay time.Duration
	client     *http.Client
	logger     *logrus.Logger

	mu  sync.Mutex
	dim int
}

// OllamaConfig configures the remote embedding provider.
type OllamaConfig struct {
	URL        string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// NewOllama creates a remote embedding provider.
func NewOllama(cfg OllamaConfig, logger *logrus.Logger) *Ollama {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.Model == "" {
		cfg.Model = "nomic-embed-text"
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
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		client:     &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// Dimension returns the vector dimension observed on the first successful
// embed, or 0 before any call completed.
func (o *Ollama) Dimension() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dim
}

// Embed returns one vector per input text, order preserved. The batch is
// fanned out over at most min(8, max(2, len/8)) workers; each text is
// retried independently on transient failures.
func (o *Ollama) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	workers := poolSize(len(texts))
	o.logger.WithFields(logrus.Fields{"texts": len(texts), "workers": workers}).
		Debug("dispatching embedding batch")

	type job struct{ idx int }
	jobs := make(chan job)
	results := make([][]float64, len(texts))
	errs := make([]error, len(texts))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				vec, err := o.embedWithRetry(ctx, texts[j.idx])
				results[j.idx] = vec
				errs[j.idx] = err
			}
		}()
	}
	for i := range texts {
		jobs <- job{idx: i}
	}
	close(jobs)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("embedding batch failed at text %d: %w", i, err)
		}
	}
	o.mu.Lock()
	if o.dim == 0 && len(results[0]) > 0 {
		o.dim = len(results[0])
	}
	o.mu.Unlock()
	return results, nil
}

// embedWithRetry retries transient transport failures with exponential
// backoff. HTTP-status and malformed-response errors are terminal.
func (o *Ollama) embedWithRetry(ctx context.Context, text string) ([]float64, error) {
	var lastErr error
	for attempt := 0; attempt < o.maxRetries; attempt++ {
		vec, err := o.callEmbeddings(ctx, text)
		if err == nil {
			return vec, nil
		}
		var terminal *terminalError
		if errors.As(err, &terminal) {
			return nil, err
		}
		lastErr = err
		if attempt < o.maxRetries-1 {
			wait := o.retryDelay * (1 << attempt)
			o.logger.WithError(err).Warnf(
				"embedding request failed (attempt %d/%d), retrying in %s",
				attempt+1, o.maxRetries, wait)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("failed to get embedding after %d attempts: %w", o.maxRetries, lastErr)
}

func (o *Ollama) callEmbeddings(ctx context.Context, text string) ([]float64, error) {
	payload := map[string]any{"model": o.model, "prompt": text}
	data, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url+"/api/embeddings", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &terminalError{fmt.Errorf("ollama embeddings: status %d: %s", resp.StatusCode, string(body))}
	}
	var out struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &terminalError{fmt.Errorf("ollama embeddings: malformed response: %w", err)}
	}
	if len(out.Embedding) == 0 {
		return nil, &terminalError{fmt.Errorf("ollama embeddings: empty embedding in response")}
	}
	return out.Embedding, nil
}

// poolSize caps worker count low to avoid overloading the backend while
// still scaling with batch size.
func poolSize(n int) int {
	w := n / 8
	if w < 2 {
		w = 2
	}
	if w > 8 {
		w = 8
	}
	if w > n {
		w = n
	}
	return w
}

// terminalError marks failures that must not be retried.
type terminalError struct{ err error }

func (e *terminalError) Error() string { return e.err.Error() }
func (e *terminalError) Unwrap() error { return e.err }
