package rabbitmq

import (
	"time"

	"github.com/pgvector/pgvector-go"

	"finrag/internal/model"
)

// QueryLogMessage is the queue payload for one search log record.
type QueryLogMessage struct {
	Query          string    `json:"query"`
	SearchType     string    `json:"searchType"`
	EmbeddingModel string    `json:"embeddingModel,omitempty"`
	Embedding      []float32 `json:"embedding,omitempty"`
	ResultsCount   int       `json:"resultsCount"`
	ResponseTimeMs int64     `json:"responseTimeMs"`
	Degraded       bool      `json:"degraded"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ToModel converts the payload back into a row.
func (m QueryLogMessage) ToModel() *model.SearchQueryLog {
	entry := &model.SearchQueryLog{
		Query:          m.Query,
		SearchType:     m.SearchType,
		EmbeddingModel: m.EmbeddingModel,
		ResultsCount:   m.ResultsCount,
		ResponseTimeMs: m.ResponseTimeMs,
		Degraded:       m.Degraded,
		CreatedAt:      m.CreatedAt,
	}
	if len(m.Embedding) > 0 {
		v := pgvector.NewVector(m.Embedding)
		entry.Embedding = &v
	}
	return entry
}
