package embeddingapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultCloudBaseURL = "https://api.openai.com"
	defaultCloudModel   = "text-embedding-3-small"
	defaultCloudTimeout = 30 * time.Second
	defaultCloudRetries = 3
	defaultCloudBackoff = 1 * time.Second
	defaultCloudRate    = 50.0 / 60.0 // ~0.83 req/s, matches the teacher's LLM client limits
	defaultCloudBurst   = 5
)

// CloudConfig configures an OpenAI-compatible hosted embedding/generation
// backend. APIKey is required; BaseURL defaults to OpenAI's own endpoint
// but any OpenAI-wire-compatible provider can be pointed to instead.
type CloudConfig struct {
	BaseURL    string
	Model      string
	APIKey     string
	Dimensions int
}

func (c CloudConfig) validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("%w: API key required", ErrInvalidConfig)
	}
	if c.Dimensions <= 0 {
		return fmt.Errorf("%w: dimensions must be positive", ErrInvalidConfig)
	}
	return nil
}

type cloudEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type cloudEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

type cloudErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// cloudBackend implements EmbeddingBackend against a hosted OpenAI-wire-
// compatible endpoint, with client-side rate limiting and exponential
// backoff on retryable failures — grounded on the same shape contextd uses
// for its Anthropic/OpenAI summarizer clients.
type cloudBackend struct {
	cfg        CloudConfig
	client     *http.Client
	limiter    *rate.Limiter
	maxRetries int
	metrics    *Metrics
}

// NewCloudBackend constructs the "cloud" EmbeddingBackend.
func NewCloudBackend(cfg CloudConfig, logger *zap.Logger) (EmbeddingBackend, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultCloudBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultCloudModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &cloudBackend{
		cfg:        cfg,
		client:     &http.Client{Timeout: defaultCloudTimeout},
		limiter:    rate.NewLimiter(rate.Limit(defaultCloudRate), defaultCloudBurst),
		maxRetries: defaultCloudRetries,
		metrics:    NewMetrics(logger),
	}, nil
}

func (b *cloudBackend) Dimensions() int { return b.cfg.Dimensions }

func (b *cloudBackend) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	var genErr error
	defer func() {
		b.metrics.RecordGeneration(ctx, b.cfg.Model, "embed", time.Since(start), len(texts), genErr)
	}()

	if len(texts) == 0 {
		genErr = fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
		return nil, genErr
	}

	var vectors [][]float32
	for attempt := 0; attempt <= b.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := defaultCloudBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				genErr = ctx.Err()
				return nil, genErr
			case <-time.After(backoff):
			}
		}

		if err := b.limiter.Wait(ctx); err != nil {
			genErr = err
			return nil, genErr
		}

		var err error
		vectors, err = b.doEmbed(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		genErr = err
		if !isRetryable(err) {
			return nil, genErr
		}
	}

	return nil, genErr
}

func (b *cloudBackend) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(cloudEmbedRequest{Model: b.cfg.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.BaseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+b.cfg.APIKey)

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, &retryableError{err: fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var cloudErr cloudErrorResponse
		_ = json.Unmarshal(respBody, &cloudErr)
		wrapped := fmt.Errorf("%w: status %d: %s", ErrEmbeddingFailed, resp.StatusCode, cloudErr.Error.Message)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, &retryableError{err: wrapped}
		}
		return nil, wrapped
	}

	var parsed cloudEmbedResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	vectors := make([][]float32, len(parsed.Data))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", ErrEmbeddingFailed, d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// retryableError marks an error as safe to retry with backoff.
type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	_, ok := err.(*retryableError)
	return ok
}
