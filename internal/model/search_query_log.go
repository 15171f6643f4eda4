package model

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// SearchQueryLog is an append-only record of one search request.
type SearchQueryLog struct {
	ID             uint             `gorm:"primaryKey" json:"id"`
	Query          string           `gorm:"type:text;not null" json:"query"`
	SearchType     string           `gorm:"size:16;not null;index" json:"searchType"`
	EmbeddingModel string           `gorm:"size:128" json:"embeddingModel,omitempty"`
	Embedding      *pgvector.Vector `gorm:"type:vector" json:"-"`
	ResultsCount   int              `gorm:"not null" json:"resultsCount"`
	ResponseTimeMs int64            `gorm:"not null" json:"responseTimeMs"`
	Degraded       bool             `gorm:"not null;default:false" json:"degraded"`
	CreatedAt      time.Time        `gorm:"index" json:"createdAt"`
}

func (SearchQueryLog) TableName() string {
	return "search_history"
}
