package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	FormatOpenAI = "openai"
	FormatTEI    = "tei"
)

// ErrEmptyEmbedding is returned when the upstream answers with fewer vectors
// than inputs or with an empty vector.
var ErrEmptyEmbedding = errors.New("empty embedding in response")

type EmbeddingConfig struct {
	BaseURL       string
	APIKey        string
	Model         string
	Format        string
	Timeout       time.Duration
	MaxRetries    int
	RatePerSecond float64
}

// EmbeddingClient calls either an OpenAI-compatible /embeddings endpoint or
// a text-embeddings-inference /embed endpoint.
type EmbeddingClient struct {
	cfg EmbeddingConfig
	req *requester
}

func NewEmbeddingClient(cfg EmbeddingConfig) (*EmbeddingClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("embedding base url is required")
	}
	switch cfg.Format {
	case "":
		cfg.Format = FormatOpenAI
	case FormatOpenAI, FormatTEI:
	default:
		return nil, fmt.Errorf("unknown embedding format %q", cfg.Format)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &EmbeddingClient{
		cfg: cfg,
		req: newRequester(cfg.Timeout, cfg.RatePerSecond, cfg.MaxRetries, cfg.APIKey),
	}, nil
}

func (c *EmbeddingClient) Model() string {
	return c.cfg.Model
}

// EmbedBatch returns one vector per input text, in input order.
func (c *EmbeddingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, fmt.Errorf("embedding input %d is empty", i)
		}
	}

	base := strings.TrimRight(c.cfg.BaseURL, "/")
	var vectors [][]float32
	switch c.cfg.Format {
	case FormatTEI:
		var parsed [][]float32
		if err := c.req.postJSON(ctx, base+"/embed", map[string]interface{}{
			"inputs":   texts,
			"truncate": true,
		}, &parsed); err != nil {
			return nil, fmt.Errorf("tei embedding request failed: %w", err)
		}
		vectors = parsed
	default:
		var parsed struct {
			Data []struct {
				Index     int       `json:"index"`
				Embedding []float32 `json:"embedding"`
			} `json:"data"`
		}
		if err := c.req.postJSON(ctx, base+"/embeddings", map[string]interface{}{
			"model": c.cfg.Model,
			"input": texts,
		}, &parsed); err != nil {
			return nil, fmt.Errorf("embedding request failed: %w", err)
		}
		vectors = make([][]float32, len(parsed.Data))
		for i, d := range parsed.Data {
			idx := d.Index
			if idx < 0 || idx >= len(vectors) {
				idx = i
			}
			vectors[idx] = d.Embedding
		}
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d inputs", ErrEmptyEmbedding, len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: input %d", ErrEmptyEmbedding, i)
		}
	}
	return vectors, nil
}
