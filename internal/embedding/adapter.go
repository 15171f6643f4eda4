// Package embedding turns text into fixed-length vectors through an ordered
// chain of backends.
//
// Dimension policy: a backend vector shorter than the target dimension is
// padded with trailing zeros; a longer one keeps its first dimension
// components. Every result records the backend model and its native
// dimension, and vectors produced by different models are never compared.
//
// When every backend fails the adapter returns the zero vector with
// Fallback set. Callers must branch on Fallback, not on the vector contents.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Backend produces embeddings for a batch of texts.
type Backend interface {
	// Model identifies the vectors this backend produces.
	Model() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Result is one embedding. Fallback results carry a zero vector and an empty
// Model and must not be used for similarity scoring.
type Result struct {
	Vector    []float32
	Model     string
	NativeDim int
	Fallback  bool
}

// Cache stores query embeddings across requests.
type Cache interface {
	Get(ctx context.Context, key string) (Result, bool, error)
	Set(ctx context.Context, key string, res Result) error
}

// Observer is notified about backend outcomes.
type Observer interface {
	BackendFailed(model string)
	FallbackUsed(count int)
}

type Adapter struct {
	backends  []Backend
	dimension int
	timeout   time.Duration
	cache     Cache
	observer  Observer
	logger    *zap.Logger
}

type Option func(*Adapter)

func WithCache(c Cache) Option {
	return func(a *Adapter) { a.cache = c }
}

func WithObserver(o Observer) Option {
	return func(a *Adapter) { a.observer = o }
}

func WithLogger(l *zap.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithTimeout bounds each backend call.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) { a.timeout = d }
}

// NewAdapter tries backends in the given order. An empty chain is allowed and
// always yields fallback results.
func NewAdapter(dimension int, backends []Backend, opts ...Option) (*Adapter, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", dimension)
	}
	a := &Adapter{
		backends:  backends,
		dimension: dimension,
		timeout:   30 * time.Second,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *Adapter) Dimension() int {
	return a.dimension
}

// Models lists the backend models in fallback order.
func (a *Adapter) Models() []string {
	out := make([]string, len(a.backends))
	for i, b := range a.backends {
		out[i] = b.Model()
	}
	return out
}

// EmbedBatch embeds texts with the first backend that succeeds for the whole
// batch. The returned slice always has len(texts) entries.
func (a *Adapter) EmbedBatch(ctx context.Context, texts []string) []Result {
	if len(texts) == 0 {
		return nil
	}

	for _, b := range a.backends {
		vectors, err := a.call(ctx, b, texts)
		if err != nil {
			a.logger.Warn("embedding backend failed",
				zap.String("model", b.Model()),
				zap.Int("texts", len(texts)),
				zap.Error(err))
			if a.observer != nil {
				a.observer.BackendFailed(b.Model())
			}
			continue
		}
		results := make([]Result, len(vectors))
		for i, v := range vectors {
			results[i] = Result{
				Vector:    Fit(v, a.dimension),
				Model:     b.Model(),
				NativeDim: len(v),
			}
		}
		return results
	}

	if len(a.backends) > 0 {
		a.logger.Warn("all embedding backends failed, returning fallback vectors", zap.Int("texts", len(texts)))
	}
	if a.observer != nil {
		a.observer.FallbackUsed(len(texts))
	}
	results := make([]Result, len(texts))
	for i := range results {
		results[i] = a.fallback()
	}
	return results
}

// EmbedQuery embeds a single search query, consulting the cache first.
// Fallback results are never cached.
func (a *Adapter) EmbedQuery(ctx context.Context, text string) Result {
	text = strings.TrimSpace(text)
	if text == "" {
		return a.fallback()
	}

	key := a.cacheKey(text)
	if a.cache != nil {
		if res, ok, err := a.cache.Get(ctx, key); err != nil {
			a.logger.Warn("query embedding cache read failed", zap.Error(err))
		} else if ok && len(res.Vector) == a.dimension {
			return res
		}
	}

	res := a.EmbedBatch(ctx, []string{text})[0]
	if a.cache != nil && !res.Fallback {
		if err := a.cache.Set(ctx, key, res); err != nil {
			a.logger.Warn("query embedding cache write failed", zap.Error(err))
		}
	}
	return res
}

// Close releases backends that hold resources, such as a loaded local model.
func (a *Adapter) Close() error {
	var errs []error
	for _, b := range a.backends {
		if c, ok := b.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", b.Model(), err))
			}
		}
	}
	return errors.Join(errs...)
}

func (a *Adapter) call(ctx context.Context, b Backend, texts []string) ([][]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	vectors, err := b.Embed(callCtx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("backend returned %d vectors for %d texts", len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("backend returned an empty vector for text %d", i)
		}
	}
	return vectors, nil
}

func (a *Adapter) fallback() Result {
	return Result{Vector: make([]float32, a.dimension), Fallback: true}
}

func (a *Adapter) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%s:%d:%s", strings.Join(a.Models(), ","), a.dimension, hex.EncodeToString(sum[:]))
}

// Fit pads v with trailing zeros or truncates it to dim components. The
// input slice is never modified.
func Fit(v []float32, dim int) []float32 {
	out := make([]float32, dim)
	copy(out, v)
	return out
}
