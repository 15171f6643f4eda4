package app

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"finrag/internal/answer"
	"finrag/internal/apperr"
	"finrag/internal/metrics"
	"finrag/internal/model"
	"finrag/internal/retrieval"
)

const maxQueryLength = 2000

// QueryLogger stores search history. The RabbitMQ publisher and the search
// log repository both satisfy it.
type QueryLogger interface {
	Record(ctx context.Context, entry *model.SearchQueryLog) error
}

type SearchService struct {
	engine      *retrieval.Engine
	synthesizer *answer.Synthesizer
	queryLog    QueryLogger
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewSearchService accepts a nil synthesizer (answers disabled) and a nil
// queryLog (history disabled).
func NewSearchService(engine *retrieval.Engine, synthesizer *answer.Synthesizer, queryLog QueryLogger, m *metrics.Metrics, logger *zap.Logger) *SearchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchService{
		engine:      engine,
		synthesizer: synthesizer,
		queryLog:    queryLog,
		metrics:     m,
		logger:      logger,
	}
}

type SearchInput struct {
	Query string
	Mode  string
	Limit int
	// IncludeAnswer defaults to true when answers are enabled.
	IncludeAnswer *bool
}

type SearchOutput struct {
	Answer         *answer.Answer
	Sources        []retrieval.Result
	SearchType     retrieval.Mode
	ModeUsed       retrieval.Mode
	ResultsCount   int
	ResponseTimeMs int64
	Degraded       bool
	DegradedReason string
}

func (s *SearchService) AnswersEnabled() bool {
	return s.synthesizer.Enabled()
}

func (s *SearchService) Search(ctx context.Context, in SearchInput) (*SearchOutput, error) {
	started := time.Now()

	if utf8.RuneCountInString(in.Query) > maxQueryLength {
		return nil, apperr.Validation("query_too_long", "query must be at most 2000 characters")
	}
	mode, err := retrieval.ParseMode(in.Mode, s.engine.DefaultMode())
	if err != nil {
		return nil, err
	}

	outcome, err := s.engine.Search(ctx, retrieval.Query{Text: in.Query, Mode: mode, Limit: in.Limit})
	if err != nil {
		return nil, err
	}

	out := &SearchOutput{
		Sources:        outcome.Results,
		SearchType:     outcome.Mode,
		ModeUsed:       outcome.ModeUsed,
		ResultsCount:   len(outcome.Results),
		Degraded:       outcome.Degraded,
		DegradedReason: outcome.DegradedReason,
	}

	query := strings.TrimSpace(in.Query)
	wantAnswer := s.AnswersEnabled() && (in.IncludeAnswer == nil || *in.IncludeAnswer)
	if wantAnswer && query != "" {
		a := s.synthesizer.Answer(ctx, query, outcome.Results)
		out.Answer = &a
		switch {
		case a.Fallback:
			s.metrics.AnswerSynthesized("local")
		case a.Model != "":
			s.metrics.AnswerSynthesized("model")
		default:
			s.metrics.AnswerSynthesized("empty")
		}
	}

	took := time.Since(started)
	out.ResponseTimeMs = took.Milliseconds()
	s.metrics.SearchServed(string(outcome.Mode), string(outcome.ModeUsed), outcome.Degraded, took)

	if query != "" {
		s.record(ctx, query, outcome, out)
	}
	return out, nil
}

// record stores the search in history. Failures are logged and never fail
// the request.
func (s *SearchService) record(ctx context.Context, query string, outcome retrieval.Outcome, out *SearchOutput) {
	if s.queryLog == nil {
		return
	}
	entry := &model.SearchQueryLog{
		Query:          query,
		SearchType:     string(outcome.Mode),
		ResultsCount:   out.ResultsCount,
		ResponseTimeMs: out.ResponseTimeMs,
		Degraded:       out.Degraded,
		CreatedAt:      time.Now().UTC(),
	}
	if qe := outcome.QueryEmbedding; qe != nil {
		v := pgvector.NewVector(qe.Vector)
		entry.Embedding = &v
		entry.EmbeddingModel = qe.Model
	}
	if err := s.queryLog.Record(ctx, entry); err != nil {
		s.logger.Warn("record search history failed", zap.Error(err))
	}
}
