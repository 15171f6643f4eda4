package model

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

const (
	EmbeddingPending  = "pending"
	EmbeddingEmbedded = "embedded"
	// EmbeddingFallback marks a chunk whose embedding backends all failed.
	// Its Embedding stays NULL so it never takes part in vector scoring.
	EmbeddingFallback = "fallback"
)

// DocumentChunk is a contiguous window of a document's text.
// (DocumentID, ChunkIndex) is unique.
type DocumentChunk struct {
	ID                 string           `gorm:"type:varchar(36);primaryKey" json:"id"`
	DocumentID         string           `gorm:"type:varchar(36);not null;uniqueIndex:idx_chunk_document_ordinal,priority:1" json:"documentId"`
	ChunkIndex         int              `gorm:"not null;uniqueIndex:idx_chunk_document_ordinal,priority:2" json:"chunkIndex"`
	Content            string           `gorm:"type:text;not null" json:"content"`
	Embedding          *pgvector.Vector `gorm:"type:vector" json:"-"`
	EmbeddingState     string           `gorm:"size:16;not null;default:pending;index" json:"embeddingState"`
	EmbeddingModel     string           `gorm:"size:128" json:"embeddingModel,omitempty"`
	EmbeddingNativeDim int              `json:"embeddingNativeDim,omitempty"`
	StartOffset        int              `json:"startOffset"`
	EndOffset          int              `json:"endOffset"`
	TokenCount         int              `json:"tokenCount"`
	CreatedAt          time.Time        `json:"createdAt"`
	UpdatedAt          time.Time        `json:"updatedAt"`
}

func (DocumentChunk) TableName() string {
	return "document_chunks"
}

// Vector returns the stored embedding, or nil when none is stored.
func (c *DocumentChunk) Vector() []float32 {
	if c.Embedding == nil {
		return nil
	}
	return c.Embedding.Slice()
}

// SetVector stores vec as the chunk embedding; an empty vec clears it.
func (c *DocumentChunk) SetVector(vec []float32) {
	if len(vec) == 0 {
		c.Embedding = nil
		return
	}
	v := pgvector.NewVector(vec)
	c.Embedding = &v
}
