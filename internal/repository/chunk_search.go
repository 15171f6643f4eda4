package repository

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"finrag/internal/apperr"
	"finrag/internal/model"
)

const maxQueryTerms = 16

// ScoredChunk is a chunk matched by a search with its parent document.
type ScoredChunk struct {
	ChunkID           string
	DocumentID        string
	DocumentTitle     string
	DocumentCreatedAt time.Time
	ChunkIndex        int
	Content           string
	Score             float64
}

const pgLexicalSQL = `
SELECT c.id AS chunk_id, c.document_id, d.title AS document_title, d.created_at AS document_created_at,
       c.chunk_index, c.content,
       ts_rank(c.content_tsv, plainto_tsquery('english', @query))
         + CASE WHEN strpos(lower(c.content), lower(@query)) > 0 THEN 1 ELSE 0 END AS score
FROM document_chunks c
JOIN documents d ON d.id = c.document_id
WHERE c.content_tsv @@ plainto_tsquery('english', @query)
   OR strpos(lower(c.content), lower(@query)) > 0
ORDER BY score DESC, d.created_at DESC, c.chunk_index ASC
LIMIT @limit`

const pgVectorSQL = `
SELECT c.id AS chunk_id, c.document_id, d.title AS document_title, d.created_at AS document_created_at,
       c.chunk_index, c.content,
       1 - (c.embedding <=> CAST(@vector AS vector)) AS score
FROM document_chunks c
JOIN documents d ON d.id = c.document_id
WHERE c.embedding_state = @state AND c.embedding_model = @model AND c.embedding IS NOT NULL
ORDER BY c.embedding <=> CAST(@vector AS vector), d.created_at DESC, c.chunk_index ASC
LIMIT @limit`

// SearchLexical ranks chunks by full-text relevance. Postgres uses its
// ts_rank; other dialects score query-term coverage. A chunk containing the
// whole query verbatim gets a +1 boost in both.
func (r *ChunkRepository) SearchLexical(ctx context.Context, query string, limit int) ([]ScoredChunk, error) {
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return []ScoredChunk{}, nil
	}

	if r.db.Dialector.Name() == "postgres" {
		var rows []ScoredChunk
		err := r.db.WithContext(ctx).Raw(pgLexicalSQL, map[string]interface{}{
			"query": query,
			"limit": limit,
		}).Scan(&rows).Error
		if err != nil {
			return nil, apperr.Storage("lexical search failed", err)
		}
		return rows, nil
	}
	return r.searchLexicalPortable(ctx, query, limit)
}

// SearchVector ranks chunks embedded by model by cosine similarity to vec.
// Chunks without a real embedding, or embedded by another model, are never
// compared.
func (r *ChunkRepository) SearchVector(ctx context.Context, vec []float32, embeddingModel string, limit int) ([]ScoredChunk, error) {
	if len(vec) == 0 || embeddingModel == "" || limit <= 0 {
		return []ScoredChunk{}, nil
	}

	if r.db.Dialector.Name() == "postgres" {
		var rows []ScoredChunk
		err := r.db.WithContext(ctx).Raw(pgVectorSQL, map[string]interface{}{
			"vector": pgvector.NewVector(vec),
			"state":  model.EmbeddingEmbedded,
			"model":  embeddingModel,
			"limit":  limit,
		}).Scan(&rows).Error
		if err != nil {
			return nil, apperr.Storage("vector search failed", err)
		}
		return rows, nil
	}
	return r.searchVectorPortable(ctx, vec, embeddingModel, limit)
}

type candidateRow struct {
	ScoredChunk
	Embedding *pgvector.Vector
}

func (r *ChunkRepository) candidates(ctx context.Context, withEmbedding bool) *gorm.DB {
	cols := "c.id AS chunk_id, c.document_id, d.title AS document_title, d.created_at AS document_created_at, c.chunk_index, c.content"
	if withEmbedding {
		cols += ", c.embedding"
	}
	return r.db.WithContext(ctx).
		Table("document_chunks AS c").
		Select(cols).
		Joins("JOIN documents d ON d.id = c.document_id")
}

func (r *ChunkRepository) searchLexicalPortable(ctx context.Context, query string, limit int) ([]ScoredChunk, error) {
	phrase := strings.ToLower(query)
	terms := queryTerms(query)

	conds := []string{"instr(lower(c.content), ?) > 0"}
	args := []interface{}{phrase}
	for _, term := range terms {
		conds = append(conds, "instr(lower(c.content), ?) > 0")
		args = append(args, term)
	}

	var rows []candidateRow
	if err := r.candidates(ctx, false).Where(strings.Join(conds, " OR "), args...).Scan(&rows).Error; err != nil {
		return nil, apperr.Storage("lexical search failed", err)
	}

	out := make([]ScoredChunk, 0, len(rows))
	for _, row := range rows {
		content := strings.ToLower(row.Content)
		score := 0.0
		if len(terms) > 0 {
			matched := 0
			for _, term := range terms {
				if strings.Contains(content, term) {
					matched++
				}
			}
			score = float64(matched) / float64(len(terms))
		}
		if strings.Contains(content, phrase) {
			score++
		}
		if score == 0 {
			continue
		}
		row.Score = score
		out = append(out, row.ScoredChunk)
	}
	return topScored(out, limit), nil
}

func (r *ChunkRepository) searchVectorPortable(ctx context.Context, vec []float32, embeddingModel string, limit int) ([]ScoredChunk, error) {
	var rows []candidateRow
	if err := r.candidates(ctx, true).
		Where("c.embedding_state = ? AND c.embedding_model = ? AND c.embedding IS NOT NULL", model.EmbeddingEmbedded, embeddingModel).
		Scan(&rows).Error; err != nil {
		return nil, apperr.Storage("vector search failed", err)
	}

	out := make([]ScoredChunk, 0, len(rows))
	for _, row := range rows {
		if row.Embedding == nil {
			continue
		}
		stored := row.Embedding.Slice()
		if len(stored) != len(vec) {
			continue
		}
		row.Score = cosineSimilarity(vec, stored)
		out = append(out, row.ScoredChunk)
	}
	return topScored(out, limit), nil
}

func topScored(rows []ScoredChunk, limit int) []ScoredChunk {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		if !rows[i].DocumentCreatedAt.Equal(rows[j].DocumentCreatedAt) {
			return rows[i].DocumentCreatedAt.After(rows[j].DocumentCreatedAt)
		}
		if rows[i].DocumentID != rows[j].DocumentID {
			return rows[i].DocumentID < rows[j].DocumentID
		}
		return rows[i].ChunkIndex < rows[j].ChunkIndex
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

// queryTerms lowercases query and splits it on anything that is not a letter
// or digit, dropping one-character and repeated terms.
func queryTerms(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(fields))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < 2 {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		terms = append(terms, f)
		if len(terms) == maxQueryTerms {
			break
		}
	}
	return terms
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
