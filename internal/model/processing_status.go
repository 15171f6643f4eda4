package model

import "time"

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// ProcessingStatus tracks ingestion of a single document.
type ProcessingStatus struct {
	DocumentID      string     `gorm:"type:varchar(36);primaryKey" json:"documentId"`
	State           string     `gorm:"size:16;not null;index" json:"state"`
	ChunksProcessed int        `gorm:"not null;default:0" json:"chunksProcessed"`
	TotalChunks     int        `gorm:"not null;default:0" json:"totalChunks"`
	Degraded        bool       `gorm:"not null;default:false" json:"degraded"`
	ErrorMessage    string     `gorm:"type:text" json:"errorMessage,omitempty"`
	StartedAt       time.Time  `json:"startedAt"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
}

func (ProcessingStatus) TableName() string {
	return "document_processing_status"
}

// Terminal reports whether ingestion has finished, successfully or not.
func (s *ProcessingStatus) Terminal() bool {
	return s.State == StatusCompleted || s.State == StatusFailed
}
