package embeddingapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("embeddingapi: empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("embeddingapi: invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("embeddingapi: embedding generation failed")
)

// LocalConfig configures a TEI (Text Embeddings Inference) HTTP backend —
// the engine's default "local" embedding backend, pointed at a
// self-hosted TEI server.
type LocalConfig struct {
	BaseURL    string
	Model      string
	Dimensions int
}

// LocalConfigFromEnv builds a LocalConfig from MATRIC_INFERENCE__* env vars
// already loaded into config.Config; kept separate so callers that only
// need the embedding side don't have to import the full config package.
func LocalConfigFromEnv() LocalConfig {
	baseURL := os.Getenv("MATRIC_INFERENCE__BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	model := os.Getenv("MATRIC_INFERENCE__EMBEDDING_MODEL")
	if model == "" {
		model = "BAAI/bge-small-en-v1.5"
	}
	return LocalConfig{BaseURL: baseURL, Model: model, Dimensions: 384}
}

func (c LocalConfig) validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if c.Dimensions <= 0 {
		return fmt.Errorf("%w: dimensions must be positive", ErrInvalidConfig)
	}
	return nil
}

// teiRequest is the request body for a TEI /embed call.
type teiRequest struct {
	Inputs   interface{} `json:"inputs"`
	Truncate bool        `json:"truncate"`
}

// localBackend implements EmbeddingBackend against a TEI-compatible HTTP
// server, reached over the loopback/private network (no API key needed).
type localBackend struct {
	cfg     LocalConfig
	client  *http.Client
	metrics *Metrics
}

// NewLocalBackend constructs the default TEI-backed EmbeddingBackend.
func NewLocalBackend(cfg LocalConfig, logger *zap.Logger) (EmbeddingBackend, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &localBackend{
		cfg:     cfg,
		client:  &http.Client{Timeout: 30 * time.Second},
		metrics: NewMetrics(logger),
	}, nil
}

func (b *localBackend) Dimensions() int { return b.cfg.Dimensions }

func (b *localBackend) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	var genErr error
	defer func() {
		b.metrics.RecordGeneration(ctx, b.cfg.Model, "embed", time.Since(start), len(texts), genErr)
	}()

	if len(texts) == 0 {
		genErr = fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
		return nil, genErr
	}

	body, err := json.Marshal(teiRequest{Inputs: texts, Truncate: true})
	if err != nil {
		genErr = fmt.Errorf("marshaling request: %w", err)
		return nil, genErr
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.BaseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		genErr = fmt.Errorf("creating request: %w", err)
		return nil, genErr
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		genErr = fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
		return nil, genErr
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		genErr = fmt.Errorf("%w: status %d: %s", ErrEmbeddingFailed, resp.StatusCode, string(respBody))
		return nil, genErr
	}

	var vectors [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		genErr = fmt.Errorf("decoding response: %w", err)
		return nil, genErr
	}

	return vectors, nil
}
