//go:build !cgo

package embedding

import "context"

// LocalConfig selects the ONNX model run in-process by fastembed.
type LocalConfig struct {
	Model     string
	CacheDir  string
	MaxLength int
}

// LocalBackend is unavailable in binaries built without cgo.
type LocalBackend struct{}

func NewLocalBackend(LocalConfig) (*LocalBackend, error) {
	return nil, ErrLocalUnavailable
}

func (b *LocalBackend) Model() string { return "local:unavailable" }

func (b *LocalBackend) Embed(context.Context, []string) ([][]float32, error) {
	return nil, ErrLocalUnavailable
}

func (b *LocalBackend) Close() error { return nil }
