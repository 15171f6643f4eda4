package repository

import (
	"context"

	"gorm.io/gorm"

	"finrag/internal/apperr"
	"finrag/internal/model"
)

type SearchLogRepository struct {
	db *gorm.DB
}

func NewSearchLogRepository(db *gorm.DB) *SearchLogRepository {
	return &SearchLogRepository{db: db}
}

// Record appends entry to the search history.
func (r *SearchLogRepository) Record(ctx context.Context, entry *model.SearchQueryLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return apperr.Storage("create search log failed", err)
	}
	return nil
}

// Recent returns the newest entries first.
func (r *SearchLogRepository) Recent(ctx context.Context, limit int) ([]model.SearchQueryLog, error) {
	var list []model.SearchQueryLog
	if err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit).Find(&list).Error; err != nil {
		return nil, apperr.Storage("list search logs failed", err)
	}
	return list, nil
}
