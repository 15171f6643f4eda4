package embedding

import (
	"context"

	"finrag/internal/ai"
)

// RemoteBackend embeds through an HTTP inference service.
type RemoteBackend struct {
	client *ai.EmbeddingClient
	model  string
}

// NewRemoteBackend builds a backend for one endpoint. Endpoints that do not
// name a model (TEI serves a single one) are identified by format and URL.
func NewRemoteBackend(cfg ai.EmbeddingConfig) (*RemoteBackend, error) {
	client, err := ai.NewEmbeddingClient(cfg)
	if err != nil {
		return nil, err
	}
	model := cfg.Model
	if model == "" {
		format := cfg.Format
		if format == "" {
			format = ai.FormatOpenAI
		}
		model = format + "@" + cfg.BaseURL
	}
	return &RemoteBackend{client: client, model: model}, nil
}

func (b *RemoteBackend) Model() string {
	return b.model
}

func (b *RemoteBackend) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return b.client.EmbedBatch(ctx, texts)
}
