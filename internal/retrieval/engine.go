// Package retrieval ranks stored chunks for a query in lexical, vector or
// hybrid mode.
package retrieval

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"finrag/internal/apperr"
	"finrag/internal/embedding"
	"finrag/internal/repository"
)

type Mode string

const (
	ModeLexical Mode = "lexical"
	ModeVector  Mode = "vector"
	ModeHybrid  Mode = "hybrid"
)

// ParseMode maps an empty string to def and rejects unknown modes.
func ParseMode(s string, def Mode) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return def, nil
	case ModeLexical:
		return ModeLexical, nil
	case ModeVector:
		return ModeVector, nil
	case ModeHybrid:
		return ModeHybrid, nil
	default:
		return "", apperr.Validation("invalid_mode", "mode must be one of lexical, vector, hybrid")
	}
}

// Reasons reported when a search falls back to lexical ranking.
const (
	ReasonEmbeddingUnavailable = "embedding_unavailable"
	ReasonVectorSearchFailed   = "vector_search_failed"
)

// ChunkSearcher is the store side of retrieval.
type ChunkSearcher interface {
	SearchLexical(ctx context.Context, query string, limit int) ([]repository.ScoredChunk, error)
	SearchVector(ctx context.Context, vec []float32, embeddingModel string, limit int) ([]repository.ScoredChunk, error)
}

type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) embedding.Result
}

// DocumentCounter lets the engine skip all work on an empty store.
type DocumentCounter interface {
	Count(ctx context.Context) (int64, error)
}

type Options struct {
	DefaultMode         Mode
	DefaultLimit        int
	MaxLimit            int
	Strategy            Strategy
	VectorWeight        float64
	LexicalWeight       float64
	RRFK                int
	CandidateMultiplier int
}

type Query struct {
	Text  string
	Mode  Mode
	Limit int
}

type Result struct {
	ChunkID           string
	DocumentID        string
	DocumentTitle     string
	DocumentCreatedAt time.Time
	ChunkIndex        int
	Content           string
	Score             float64
	Mode              Mode
}

// Outcome carries the ranked results and how they were produced. ModeUsed
// differs from Mode only when the search degraded to lexical.
type Outcome struct {
	Results        []Result
	Mode           Mode
	ModeUsed       Mode
	Degraded       bool
	DegradedReason string
	// QueryEmbedding is the real query vector, nil for lexical or degraded searches.
	QueryEmbedding *embedding.Result
}

type Engine struct {
	chunks   ChunkSearcher
	embedder QueryEmbedder
	docs     DocumentCounter
	opts     Options
	logger   *zap.Logger
}

func NewEngine(chunks ChunkSearcher, embedder QueryEmbedder, docs DocumentCounter, opts Options, logger *zap.Logger) *Engine {
	if opts.DefaultMode == "" {
		opts.DefaultMode = ModeHybrid
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 5
	}
	if opts.MaxLimit < opts.DefaultLimit {
		opts.MaxLimit = opts.DefaultLimit
	}
	if opts.Strategy == "" {
		opts.Strategy = StrategyWeighted
	}
	if opts.VectorWeight == 0 && opts.LexicalWeight == 0 {
		opts.VectorWeight, opts.LexicalWeight = 0.7, 0.3
	}
	if opts.RRFK <= 0 {
		opts.RRFK = 60
	}
	if opts.CandidateMultiplier <= 0 {
		opts.CandidateMultiplier = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{chunks: chunks, embedder: embedder, docs: docs, opts: opts, logger: logger}
}

func (e *Engine) DefaultMode() Mode {
	return e.opts.DefaultMode
}

// Search runs q. An empty query or an empty store yields no results and no
// error. Vector failures degrade to lexical; a lexical failure is returned.
func (e *Engine) Search(ctx context.Context, q Query) (Outcome, error) {
	mode := q.Mode
	if mode == "" {
		mode = e.opts.DefaultMode
	}
	if _, err := ParseMode(string(mode), e.opts.DefaultMode); err != nil {
		return Outcome{}, err
	}
	limit, err := e.limit(q.Limit)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{Results: []Result{}, Mode: mode, ModeUsed: mode}
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return out, nil
	}
	if e.docs != nil {
		n, err := e.docs.Count(ctx)
		if err != nil {
			return Outcome{}, err
		}
		if n == 0 {
			return out, nil
		}
	}

	if mode == ModeLexical {
		return e.lexicalOnly(ctx, text, limit, out)
	}

	qe := e.embedder.EmbedQuery(ctx, text)
	if qe.Fallback {
		e.logger.Warn("query embedding unavailable, serving lexical results", zap.String("mode", string(mode)))
		return e.degrade(ctx, text, limit, out, ReasonEmbeddingUnavailable)
	}

	candidates := limit
	if mode == ModeHybrid {
		candidates = limit * e.opts.CandidateMultiplier
	}
	vector, err := e.chunks.SearchVector(ctx, qe.Vector, qe.Model, candidates)
	if err != nil {
		e.logger.Warn("vector search failed, serving lexical results", zap.Error(err))
		return e.degrade(ctx, text, limit, out, ReasonVectorSearchFailed)
	}
	out.QueryEmbedding = &qe

	if mode == ModeVector {
		out.Results = toResults(vector, ModeVector)
		return out, nil
	}

	lexical, err := e.chunks.SearchLexical(ctx, text, candidates)
	if err != nil {
		return Outcome{}, err
	}
	fused := Fuse(e.opts.Strategy, vector, lexical, e.opts.VectorWeight, e.opts.LexicalWeight, e.opts.RRFK)
	if len(fused) > limit {
		fused = fused[:limit]
	}
	out.Results = toResults(fused, ModeHybrid)
	return out, nil
}

func (e *Engine) limit(requested int) (int, error) {
	switch {
	case requested < 0:
		return 0, apperr.Validation("invalid_limit", "limit must not be negative")
	case requested == 0:
		return e.opts.DefaultLimit, nil
	case requested > e.opts.MaxLimit:
		return e.opts.MaxLimit, nil
	default:
		return requested, nil
	}
}

func (e *Engine) lexicalOnly(ctx context.Context, text string, limit int, out Outcome) (Outcome, error) {
	rows, err := e.chunks.SearchLexical(ctx, text, limit)
	if err != nil {
		return Outcome{}, err
	}
	out.ModeUsed = ModeLexical
	out.Results = toResults(rows, ModeLexical)
	return out, nil
}

func (e *Engine) degrade(ctx context.Context, text string, limit int, out Outcome, reason string) (Outcome, error) {
	out.Degraded = true
	out.DegradedReason = reason
	return e.lexicalOnly(ctx, text, limit, out)
}

func toResults(rows []repository.ScoredChunk, mode Mode) []Result {
	out := make([]Result, len(rows))
	for i, r := range rows {
		out[i] = Result{
			ChunkID:           r.ChunkID,
			DocumentID:        r.DocumentID,
			DocumentTitle:     r.DocumentTitle,
			DocumentCreatedAt: r.DocumentCreatedAt,
			ChunkIndex:        r.ChunkIndex,
			Content:           r.Content,
			Score:             r.Score,
			Mode:              mode,
		}
	}
	return out
}
