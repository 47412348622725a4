package embeddingapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultGenerationModel = "gpt-4o-mini"

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// cloudGenerationBackend implements GenerationBackend against an
// OpenAI-wire-compatible chat completions endpoint using `stream: true`
// and the `data: {...}` / `data: [DONE]` SSE framing spec.md describes as
// an external-adapter wire concern, not a core one.
type cloudGenerationBackend struct {
	cfg    CloudConfig
	client *http.Client
}

// NewCloudGenerationBackend constructs a streaming GenerationBackend.
func NewCloudGenerationBackend(cfg CloudConfig) (GenerationBackend, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultCloudBaseURL
	}
	return &cloudGenerationBackend{
		cfg:    cfg,
		client: &http.Client{Timeout: defaultCloudTimeout},
	}, nil
}

func (b *cloudGenerationBackend) Stream(ctx context.Context, prompt string) (func() (GenerationChunk, bool, error), error) {
	model := b.cfg.Model
	if model == "" {
		model = defaultGenerationModel
	}

	body, err := json.Marshal(chatRequest{
		Model:    model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
		Stream:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+b.cfg.APIKey)

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d: %s", ErrEmbeddingFailed, resp.StatusCode, string(respBody))
	}

	scanner := bufio.NewScanner(resp.Body)
	closed := false

	next := func() (GenerationChunk, bool, error) {
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "[DONE]" {
				closed = true
				resp.Body.Close()
				return GenerationChunk{Done: true}, true, nil
			}
			var chunk chatStreamChunk
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				resp.Body.Close()
				return GenerationChunk{}, false, fmt.Errorf("decoding stream chunk: %w", err)
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			text := chunk.Choices[0].Delta.Content
			done := chunk.Choices[0].FinishReason != nil
			if done {
				closed = true
				resp.Body.Close()
			}
			return GenerationChunk{Text: text, Done: done}, true, nil
		}
		if !closed {
			resp.Body.Close()
		}
		if err := scanner.Err(); err != nil {
			return GenerationChunk{}, false, err
		}
		return GenerationChunk{}, false, nil
	}

	return next, nil
}
