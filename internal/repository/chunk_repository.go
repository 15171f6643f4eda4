package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"finrag/internal/apperr"
	"finrag/internal/model"
)

const chunkWriteBatchSize = 100

var chunkUpsert = clause.OnConflict{
	Columns: []clause.Column{{Name: "document_id"}, {Name: "chunk_index"}},
	DoUpdates: clause.AssignmentColumns([]string{
		"content",
		"embedding",
		"embedding_state",
		"embedding_model",
		"embedding_native_dim",
		"start_offset",
		"end_offset",
		"token_count",
		"updated_at",
	}),
}

type ChunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// WriteChunks upserts chunks keyed on (document_id, chunk_index). Re-running
// it with the same chunks leaves one row per ordinal. A transient failure is
// retried once; a final failure names the ordinals that were not written.
func (r *ChunkRepository) WriteChunks(ctx context.Context, documentID string, chunks []model.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Document{}).Where("id = ?", documentID).Count(&count).Error; err != nil {
		return apperr.Storage("check document failed", err)
	}
	if count == 0 {
		return apperr.NotFound("document_not_found", "document "+documentID+" not found")
	}

	for i := range chunks {
		if chunks[i].DocumentID != documentID {
			return apperr.Validation("chunk_document_mismatch",
				fmt.Sprintf("chunk %d belongs to document %q", chunks[i].ChunkIndex, chunks[i].DocumentID))
		}
	}

	err := withRetry(ctx, func() error {
		return r.db.WithContext(ctx).Clauses(chunkUpsert).CreateInBatches(&chunks, chunkWriteBatchSize).Error
	})
	if err != nil {
		return apperr.Storage(fmt.Sprintf("write chunks %s for document %s failed", ordinalRange(chunks), documentID), err)
	}
	return nil
}

// TrimFrom deletes ordinals >= count so a shorter re-ingestion stays contiguous.
func (r *ChunkRepository) TrimFrom(ctx context.Context, documentID string, count int) error {
	err := withRetry(ctx, func() error {
		return r.db.WithContext(ctx).
			Where("document_id = ? AND chunk_index >= ?", documentID, count).
			Delete(&model.DocumentChunk{}).Error
	})
	if err != nil {
		return apperr.Storage("trim document chunks failed", err)
	}
	return nil
}

// ListByDocument returns the chunks of a document ordered by ordinal.
func (r *ChunkRepository) ListByDocument(ctx context.Context, documentID string) ([]model.DocumentChunk, error) {
	var chunks []model.DocumentChunk
	if err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("chunk_index ASC").
		Find(&chunks).Error; err != nil {
		return nil, apperr.Storage("list document chunks failed", err)
	}
	return chunks, nil
}

// ListUnembedded returns chunks whose embedding is pending or a fallback.
func (r *ChunkRepository) ListUnembedded(ctx context.Context, documentID string) ([]model.DocumentChunk, error) {
	var chunks []model.DocumentChunk
	if err := r.db.WithContext(ctx).
		Where("document_id = ? AND embedding_state <> ?", documentID, model.EmbeddingEmbedded).
		Order("chunk_index ASC").
		Find(&chunks).Error; err != nil {
		return nil, apperr.Storage("list unembedded chunks failed", err)
	}
	return chunks, nil
}

// ChunkStats aggregates chunk counts across all documents.
type ChunkStats struct {
	TotalChunks     int64
	TotalEmbeddings int64
}

func (r *ChunkRepository) Stats(ctx context.Context) (ChunkStats, error) {
	var stats ChunkStats
	if err := r.db.WithContext(ctx).Model(&model.DocumentChunk{}).Count(&stats.TotalChunks).Error; err != nil {
		return stats, apperr.Storage("count chunks failed", err)
	}
	if err := r.db.WithContext(ctx).
		Model(&model.DocumentChunk{}).
		Where("embedding_state = ?", model.EmbeddingEmbedded).
		Count(&stats.TotalEmbeddings).Error; err != nil {
		return stats, apperr.Storage("count embeddings failed", err)
	}
	return stats, nil
}

func ordinalRange(chunks []model.DocumentChunk) string {
	lo, hi := chunks[0].ChunkIndex, chunks[0].ChunkIndex
	for _, c := range chunks[1:] {
		if c.ChunkIndex < lo {
			lo = c.ChunkIndex
		}
		if c.ChunkIndex > hi {
			hi = c.ChunkIndex
		}
	}
	if lo == hi {
		return fmt.Sprintf("[%d]", lo)
	}
	return fmt.Sprintf("[%d-%d]", lo, hi)
}
