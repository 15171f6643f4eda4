package migrations

import (
	"time"

	"gorm.io/datatypes"
)

// Table snapshots as first created. Do not edit; add a new migration instead.

type documentV1 struct {
	ID        string `gorm:"type:varchar(36);primaryKey"`
	Title     string `gorm:"size:512;not null"`
	FileName  string `gorm:"size:512"`
	FileType  string `gorm:"size:16;not null"`
	SizeBytes int64  `gorm:"not null"`
	Metadata  datatypes.JSONMap
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

func (documentV1) TableName() string { return "documents" }

type documentChunkV1 struct {
	ID                 string     `gorm:"type:varchar(36);primaryKey"`
	DocumentID         string     `gorm:"type:varchar(36);not null;uniqueIndex:idx_chunk_document_ordinal,priority:1"`
	Document           documentV1 `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE"`
	ChunkIndex         int        `gorm:"not null;uniqueIndex:idx_chunk_document_ordinal,priority:2"`
	Content            string     `gorm:"type:text;not null"`
	Embedding          *string    `gorm:"type:vector"`
	EmbeddingState     string     `gorm:"size:16;not null;default:pending;index"`
	EmbeddingModel     string     `gorm:"size:128"`
	EmbeddingNativeDim int
	StartOffset        int
	EndOffset          int
	TokenCount         int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (documentChunkV1) TableName() string { return "document_chunks" }

type processingStatusV1 struct {
	DocumentID      string     `gorm:"type:varchar(36);primaryKey"`
	Document        documentV1 `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE"`
	State           string     `gorm:"size:16;not null;index"`
	ChunksProcessed int        `gorm:"not null;default:0"`
	TotalChunks     int        `gorm:"not null;default:0"`
	Degraded        bool       `gorm:"not null;default:false"`
	ErrorMessage    string     `gorm:"type:text"`
	StartedAt       time.Time
	CompletedAt     *time.Time
}

func (processingStatusV1) TableName() string { return "document_processing_status" }

type searchHistoryV1 struct {
	ID             uint      `gorm:"primaryKey"`
	Query          string    `gorm:"type:text;not null"`
	SearchType     string    `gorm:"size:16;not null;index"`
	EmbeddingModel string    `gorm:"size:128"`
	Embedding      *string   `gorm:"type:vector"`
	ResultsCount   int       `gorm:"not null"`
	ResponseTimeMs int64     `gorm:"not null"`
	Degraded       bool      `gorm:"not null;default:false"`
	CreatedAt      time.Time `gorm:"index"`
}

func (searchHistoryV1) TableName() string { return "search_history" }
