package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"finrag/internal/apperr"
	"finrag/internal/model"
)

// DocumentSummary is a document with its chunk count and ingestion status.
type DocumentSummary struct {
	model.Document
	ChunkCount int                     `json:"chunkCount"`
	Status     *model.ProcessingStatus `json:"status,omitempty"`
}

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create inserts doc. A document with the same id is a client error.
func (r *DocumentRepository) Create(ctx context.Context, doc *model.Document) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Document{}).Where("id = ?", doc.ID).Count(&count).Error; err != nil {
		return apperr.Storage("check document id failed", err)
	}
	if count > 0 {
		return apperr.Validation("duplicate_document", "document "+doc.ID+" already exists")
	}
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		return apperr.Storage("create document failed", err)
	}
	return nil
}

// GetByID returns nil, nil when the document does not exist.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*model.Document, error) {
	var doc model.Document
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperr.Storage("get document failed", err)
	}
	return &doc, nil
}

// Summaries loads chunk counts and statuses for docs, preserving their order.
func (r *DocumentRepository) Summaries(ctx context.Context, docs []model.Document) ([]DocumentSummary, error) {
	if len(docs) == 0 {
		return []DocumentSummary{}, nil
	}
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}

	type countRow struct {
		DocumentID string
		Count      int
	}
	var counts []countRow
	if err := r.db.WithContext(ctx).
		Model(&model.DocumentChunk{}).
		Select("document_id, count(*) AS count").
		Where("document_id IN ?", ids).
		Group("document_id").
		Scan(&counts).Error; err != nil {
		return nil, apperr.Storage("count chunks failed", err)
	}
	countByDoc := make(map[string]int, len(counts))
	for _, c := range counts {
		countByDoc[c.DocumentID] = c.Count
	}

	var statuses []model.ProcessingStatus
	if err := r.db.WithContext(ctx).Where("document_id IN ?", ids).Find(&statuses).Error; err != nil {
		return nil, apperr.Storage("list processing status failed", err)
	}
	statusByDoc := make(map[string]*model.ProcessingStatus, len(statuses))
	for i := range statuses {
		statusByDoc[statuses[i].DocumentID] = &statuses[i]
	}

	out := make([]DocumentSummary, len(docs))
	for i, d := range docs {
		out[i] = DocumentSummary{Document: d, ChunkCount: countByDoc[d.ID], Status: statusByDoc[d.ID]}
	}
	return out, nil
}

// List returns one page of documents, newest first, plus the total count.
func (r *DocumentRepository) List(ctx context.Context, page, pageSize int) ([]DocumentSummary, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Document{}).Count(&total).Error; err != nil {
		return nil, 0, apperr.Storage("count documents failed", err)
	}

	var docs []model.Document
	if err := r.db.WithContext(ctx).
		Order("created_at DESC, id ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&docs).Error; err != nil {
		return nil, 0, apperr.Storage("list documents failed", err)
	}

	summaries, err := r.Summaries(ctx, docs)
	if err != nil {
		return nil, 0, err
	}
	return summaries, total, nil
}

// MergeMetadata applies patch on top of the stored metadata. Keys with a nil
// value are removed.
func (r *DocumentRepository) MergeMetadata(ctx context.Context, id string, patch map[string]interface{}) (*model.Document, error) {
	var updated *model.Document
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doc model.Document
		if err := tx.Where("id = ?", id).First(&doc).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("document_not_found", "document "+id+" not found")
			}
			return apperr.Storage("get document failed", err)
		}
		if doc.Metadata == nil {
			doc.Metadata = map[string]interface{}{}
		}
		for k, v := range patch {
			if v == nil {
				delete(doc.Metadata, k)
				continue
			}
			doc.Metadata[k] = v
		}
		if err := tx.Model(&doc).Update("metadata", doc.Metadata).Error; err != nil {
			return apperr.Storage("update document metadata failed", err)
		}
		updated = &doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the document with its chunks and status.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("document_id = ?", id).Delete(&model.DocumentChunk{})
		if res.Error != nil {
			return apperr.Storage("delete document chunks failed", res.Error)
		}
		if err := tx.Where("document_id = ?", id).Delete(&model.ProcessingStatus{}).Error; err != nil {
			return apperr.Storage("delete processing status failed", err)
		}
		res = tx.Where("id = ?", id).Delete(&model.Document{})
		if res.Error != nil {
			return apperr.Storage("delete document failed", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("document_not_found", "document "+id+" not found")
		}
		return nil
	})
}

func (r *DocumentRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Document{}).Count(&total).Error; err != nil {
		return 0, apperr.Storage("count documents failed", err)
	}
	return total, nil
}
