package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"finrag/internal/apperr"
	"finrag/internal/model"
)

type StatusRepository struct {
	db *gorm.DB
}

func NewStatusRepository(db *gorm.DB) *StatusRepository {
	return &StatusRepository{db: db}
}

// Start (re)initializes the status of a document as processing.
func (r *StatusRepository) Start(ctx context.Context, documentID string, totalChunks int) error {
	status := model.ProcessingStatus{
		DocumentID:  documentID,
		State:       model.StatusProcessing,
		TotalChunks: totalChunks,
		StartedAt:   time.Now().UTC(),
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "document_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"state", "chunks_processed", "total_chunks", "degraded", "error_message", "started_at", "completed_at",
		}),
	}).Create(&status).Error
	if err != nil {
		return apperr.Storage("start processing status failed", err)
	}
	return nil
}

// Advance adds processed to the processed-chunk counter.
func (r *StatusRepository) Advance(ctx context.Context, documentID string, processed int, degraded bool) error {
	updates := map[string]interface{}{
		"chunks_processed": gorm.Expr("chunks_processed + ?", processed),
	}
	if degraded {
		updates["degraded"] = true
	}
	err := withRetry(ctx, func() error {
		return r.db.WithContext(ctx).Model(&model.ProcessingStatus{}).
			Where("document_id = ?", documentID).
			Updates(updates).Error
	})
	if err != nil {
		return apperr.Storage("advance processing status failed", err)
	}
	return nil
}

func (r *StatusRepository) Complete(ctx context.Context, documentID string, degraded bool, message string) error {
	now := time.Now().UTC()
	return r.finish(ctx, documentID, map[string]interface{}{
		"state":         model.StatusCompleted,
		"degraded":      degraded,
		"error_message": message,
		"completed_at":  &now,
	})
}

func (r *StatusRepository) Fail(ctx context.Context, documentID string, message string) error {
	now := time.Now().UTC()
	return r.finish(ctx, documentID, map[string]interface{}{
		"state":         model.StatusFailed,
		"error_message": message,
		"completed_at":  &now,
	})
}

func (r *StatusRepository) finish(ctx context.Context, documentID string, updates map[string]interface{}) error {
	err := withRetry(ctx, func() error {
		return r.db.WithContext(ctx).Model(&model.ProcessingStatus{}).
			Where("document_id = ?", documentID).
			Updates(updates).Error
	})
	if err != nil {
		return apperr.Storage("finish processing status failed", err)
	}
	return nil
}

// Get returns nil, nil when no status exists for the document.
func (r *StatusRepository) Get(ctx context.Context, documentID string) (*model.ProcessingStatus, error) {
	var status model.ProcessingStatus
	if err := r.db.WithContext(ctx).Where("document_id = ?", documentID).First(&status).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperr.Storage("get processing status failed", err)
	}
	return &status, nil
}
