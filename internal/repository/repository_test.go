package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"finrag/internal/apperr"
	"finrag/internal/model"
	"finrag/internal/repository"
	"finrag/internal/testutil"
)

type stores struct {
	db       *gorm.DB
	docs     *repository.DocumentRepository
	chunks   *repository.ChunkRepository
	statuses *repository.StatusRepository
	logs     *repository.SearchLogRepository
}

func newStores(t *testing.T) stores {
	db := testutil.NewDB(t, 4)
	return stores{
		db:       db,
		docs:     repository.NewDocumentRepository(db),
		chunks:   repository.NewChunkRepository(db),
		statuses: repository.NewStatusRepository(db),
		logs:     repository.NewSearchLogRepository(db),
	}
}

func createDoc(t *testing.T, s stores, title string, createdAt time.Time) *model.Document {
	t.Helper()
	doc := &model.Document{
		ID:        uuid.NewString(),
		Title:     title,
		FileType:  model.FileTypeText,
		SizeBytes: 42,
		Metadata:  map[string]interface{}{"source": "test"},
		CreatedAt: createdAt,
	}
	require.NoError(t, s.docs.Create(context.Background(), doc))
	return doc
}

func chunk(docID string, index int, content string) model.DocumentChunk {
	return model.DocumentChunk{
		ID:             uuid.NewString(),
		DocumentID:     docID,
		ChunkIndex:     index,
		Content:        content,
		EmbeddingState: model.EmbeddingPending,
	}
}

func embedded(c model.DocumentChunk, modelName string, vec []float32) model.DocumentChunk {
	c.SetVector(vec)
	c.EmbeddingState = model.EmbeddingEmbedded
	c.EmbeddingModel = modelName
	c.EmbeddingNativeDim = len(vec)
	return c
}

func TestDocumentCreateRejectsDuplicateID(t *testing.T) {
	s := newStores(t)
	doc := createDoc(t, s, "10-K", time.Now())

	err := s.docs.Create(context.Background(), &model.Document{ID: doc.ID, Title: "again", FileType: "txt"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, "duplicate_document", apperr.CodeOf(err))
}

func TestDocumentGetMissingReturnsNil(t *testing.T) {
	s := newStores(t)
	doc, err := s.docs.GetByID(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestWriteChunksUnknownDocument(t *testing.T) {
	s := newStores(t)
	err := s.chunks.WriteChunks(context.Background(), "missing", []model.DocumentChunk{chunk("missing", 0, "x")})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestWriteChunksUpsertIsIdempotent(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	doc := createDoc(t, s, "Annual report", time.Now())

	first := []model.DocumentChunk{chunk(doc.ID, 0, "alpha"), chunk(doc.ID, 1, "beta"), chunk(doc.ID, 2, "gamma")}
	require.NoError(t, s.chunks.WriteChunks(ctx, doc.ID, first))

	second := []model.DocumentChunk{chunk(doc.ID, 0, "alpha"), chunk(doc.ID, 1, "beta"), chunk(doc.ID, 2, "gamma")}
	second[1] = embedded(second[1], "m1", []float32{1, 0, 0, 0})
	require.NoError(t, s.chunks.WriteChunks(ctx, doc.ID, second))

	stored, err := s.chunks.ListByDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	for i, c := range stored {
		assert.Equal(t, i, c.ChunkIndex)
		assert.Equal(t, first[i].ID, c.ID, "upsert keeps the original row")
	}
	assert.Equal(t, model.EmbeddingEmbedded, stored[1].EmbeddingState)
	assert.Equal(t, []float32{1, 0, 0, 0}, stored[1].Vector())
	assert.Nil(t, stored[0].Vector())
}

func TestTrimFromKeepsOrdinalsContiguous(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	doc := createDoc(t, s, "Report", time.Now())

	var chunks []model.DocumentChunk
	for i := 0; i < 5; i++ {
		chunks = append(chunks, chunk(doc.ID, i, fmt.Sprintf("part %d", i)))
	}
	require.NoError(t, s.chunks.WriteChunks(ctx, doc.ID, chunks))
	require.NoError(t, s.chunks.TrimFrom(ctx, doc.ID, 3))

	stored, err := s.chunks.ListByDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.Equal(t, 2, stored[2].ChunkIndex)
}

func TestDeleteCascadesChunksAndStatus(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	doc := createDoc(t, s, "Report", time.Now())
	require.NoError(t, s.chunks.WriteChunks(ctx, doc.ID, []model.DocumentChunk{chunk(doc.ID, 0, "cash flow")}))
	require.NoError(t, s.statuses.Start(ctx, doc.ID, 1))

	require.NoError(t, s.docs.Delete(ctx, doc.ID))

	stats, err := s.chunks.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalChunks)
	status, err := s.statuses.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Nil(t, status)

	err = s.docs.Delete(ctx, doc.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestListReturnsCountsAndStatusNewestFirst(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	older := createDoc(t, s, "older", base)
	newer := createDoc(t, s, "newer", base.Add(time.Hour))
	require.NoError(t, s.chunks.WriteChunks(ctx, older.ID, []model.DocumentChunk{chunk(older.ID, 0, "a"), chunk(older.ID, 1, "b")}))
	require.NoError(t, s.statuses.Start(ctx, older.ID, 2))
	require.NoError(t, s.statuses.Complete(ctx, older.ID, false, ""))

	page, total, err := s.docs.List(ctx, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, page, 2)
	assert.Equal(t, newer.ID, page[0].ID)
	assert.Equal(t, 0, page[0].ChunkCount)
	assert.Nil(t, page[0].Status)
	assert.Equal(t, 2, page[1].ChunkCount)
	require.NotNil(t, page[1].Status)
	assert.Equal(t, model.StatusCompleted, page[1].Status.State)

	second, _, err := s.docs.List(ctx, 2, 1)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, older.ID, second[0].ID)
}

func TestMergeMetadata(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	doc := createDoc(t, s, "Report", time.Now())

	updated, err := s.docs.MergeMetadata(ctx, doc.ID, map[string]interface{}{"ticker": "ACME", "source": nil})
	require.NoError(t, err)
	assert.Equal(t, "ACME", updated.Metadata["ticker"])
	assert.NotContains(t, updated.Metadata, "source")

	reloaded, err := s.docs.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "ACME", reloaded.Metadata["ticker"])

	_, err = s.docs.MergeMetadata(ctx, "missing", map[string]interface{}{"a": 1})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestStatusLifecycle(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	doc := createDoc(t, s, "Report", time.Now())

	require.NoError(t, s.statuses.Start(ctx, doc.ID, 4))
	require.NoError(t, s.statuses.Advance(ctx, doc.ID, 2, false))
	require.NoError(t, s.statuses.Advance(ctx, doc.ID, 2, true))
	require.NoError(t, s.statuses.Complete(ctx, doc.ID, true, "2 chunks embedded with fallback"))

	status, err := s.statuses.Get(ctx, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, 4, status.ChunksProcessed)
	assert.True(t, status.Degraded)
	assert.True(t, status.Terminal())
	assert.NotNil(t, status.CompletedAt)

	require.NoError(t, s.statuses.Start(ctx, doc.ID, 4))
	status, err = s.statuses.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, status.State)
	assert.Zero(t, status.ChunksProcessed)
	assert.Nil(t, status.CompletedAt)
}

func TestSearchLexicalVerbatimChunkFirst(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	doc := createDoc(t, s, "Q3 filing", time.Now())
	require.NoError(t, s.chunks.WriteChunks(ctx, doc.ID, []model.DocumentChunk{
		chunk(doc.ID, 0, "Revenue grew in the quarter while operating margin fell."),
		chunk(doc.ID, 1, "Operating margin expanded to 31 percent on lower input costs."),
		chunk(doc.ID, 2, "The board approved a dividend."),
	}))

	results, err := s.chunks.SearchLexical(ctx, "margin expanded to 31 percent", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, 1, results[0].ChunkIndex)
	assert.Equal(t, "Q3 filing", results[0].DocumentTitle)
	for _, r := range results {
		assert.NotEqual(t, 2, r.ChunkIndex)
	}

	empty, err := s.chunks.SearchLexical(ctx, "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSearchVectorComparesOnlySameModelRealEmbeddings(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	doc := createDoc(t, s, "Report", time.Now())

	fallback := chunk(doc.ID, 2, "fallback")
	fallback.EmbeddingState = model.EmbeddingFallback

	require.NoError(t, s.chunks.WriteChunks(ctx, doc.ID, []model.DocumentChunk{
		embedded(chunk(doc.ID, 0, "close"), "model-a", []float32{1, 0, 0, 0}),
		embedded(chunk(doc.ID, 1, "far"), "model-a", []float32{0, 1, 0, 0}),
		fallback,
		embedded(chunk(doc.ID, 3, "other model"), "model-b", []float32{1, 0, 0, 0}),
	}))

	results, err := s.chunks.SearchVector(ctx, []float32{0.9, 0.1, 0, 0}, "model-a", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 0, results[0].ChunkIndex)
	assert.Equal(t, 1, results[1].ChunkIndex)
	assert.Greater(t, results[0].Score, results[1].Score)

	none, err := s.chunks.SearchVector(ctx, []float32{1, 0, 0, 0}, "model-c", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSearchTieBreaksByDocumentRecency(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	older := createDoc(t, s, "older", base)
	newer := createDoc(t, s, "newer", base.Add(24*time.Hour))
	require.NoError(t, s.chunks.WriteChunks(ctx, older.ID, []model.DocumentChunk{chunk(older.ID, 0, "guidance raised")}))
	require.NoError(t, s.chunks.WriteChunks(ctx, newer.ID, []model.DocumentChunk{chunk(newer.ID, 0, "guidance raised")}))

	results, err := s.chunks.SearchLexical(ctx, "guidance raised", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, newer.ID, results[0].DocumentID)
}

func TestSearchLogRecord(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()

	entry := &model.SearchQueryLog{Query: "net income", SearchType: "lexical", ResultsCount: 3, ResponseTimeMs: 12}
	require.NoError(t, s.logs.Record(ctx, entry))
	assert.NotZero(t, entry.ID)

	recent, err := s.logs.Recent(ctx, 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "net income", recent[0].Query)
}
