//go:build cgo

package embedding

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	fastembed "github.com/anush008/fastembed-go"
)

// LocalConfig selects the ONNX model run in-process by fastembed.
type LocalConfig struct {
	Model     string
	CacheDir  string
	MaxLength int
}

var localModels = map[string]fastembed.EmbeddingModel{
	"BAAI/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"BAAI/bge-small-en":                      fastembed.BGESmallEN,
	"BAAI/bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
	"BAAI/bge-base-en":                       fastembed.BGEBaseEN,
	"sentence-transformers/all-MiniLM-L6-v2": fastembed.AllMiniLML6V2,
}

// LocalBackend runs a fastembed model. The model is loaded once by
// NewLocalBackend and released by Close; calls are serialized because the
// ONNX session is not safe for concurrent use.
type LocalBackend struct {
	mu    sync.Mutex
	model *fastembed.FlagEmbedding
	name  string
}

func NewLocalBackend(cfg LocalConfig) (*LocalBackend, error) {
	model, ok := localModels[cfg.Model]
	if !ok {
		return nil, fmt.Errorf("unsupported local embedding model %q", cfg.Model)
	}
	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(".", "local_cache")
	}
	maxLength := cfg.MaxLength
	if maxLength == 0 {
		maxLength = 512
	}
	showProgress := false

	flagEmbed, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                model,
		CacheDir:             cacheDir,
		MaxLength:            maxLength,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize fastembed model %s failed: %w", cfg.Model, err)
	}
	return &LocalBackend{model: flagEmbed, name: "local:" + cfg.Model}, nil
}

func (b *LocalBackend) Model() string {
	return b.name
}

func (b *LocalBackend) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.model == nil {
		return nil, ErrLocalUnavailable
	}
	vectors, err := b.model.PassageEmbed(texts, len(texts))
	if err != nil {
		return nil, fmt.Errorf("fastembed passage embed failed: %w", err)
	}
	return vectors, nil
}

func (b *LocalBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.model == nil {
		return nil
	}
	err := b.model.Destroy()
	b.model = nil
	return err
}
