package app

import (
	"context"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"finrag/internal/apperr"
	"finrag/internal/chunker"
	"finrag/internal/embedding"
	"finrag/internal/logging"
	"finrag/internal/metrics"
	"finrag/internal/model"
	"finrag/internal/pkg/textextract"
	"finrag/internal/repository"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxDocumentID   = 36
)

// ChunkEmbedder embeds chunk texts; it never fails, marking fallbacks instead.
type ChunkEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) []embedding.Result
}

type DocumentOptions struct {
	ChunkSize      int
	ChunkOverlap   int
	MaxUploadBytes int64
	// Concurrency caps in-flight embedding batches per document.
	Concurrency   int
	BatchSize     int
	IngestTimeout time.Duration
}

type DocumentService struct {
	docs     *repository.DocumentRepository
	chunks   *repository.ChunkRepository
	statuses *repository.StatusRepository
	embedder ChunkEmbedder
	metrics  *metrics.Metrics
	opts     DocumentOptions
	logger   *zap.Logger
}

func NewDocumentService(
	docs *repository.DocumentRepository,
	chunks *repository.ChunkRepository,
	statuses *repository.StatusRepository,
	embedder ChunkEmbedder,
	m *metrics.Metrics,
	opts DocumentOptions,
	logger *zap.Logger,
) *DocumentService {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = chunker.DefaultSize
	}
	if opts.ChunkOverlap < 0 {
		opts.ChunkOverlap = 0
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 16
	}
	if opts.IngestTimeout <= 0 {
		opts.IngestTimeout = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{
		docs:     docs,
		chunks:   chunks,
		statuses: statuses,
		embedder: embedder,
		metrics:  m,
		opts:     opts,
		logger:   logger,
	}
}

// UploadInput describes one uploaded file. Zero ChunkSize and nil
// ChunkOverlap select the configured defaults.
type UploadInput struct {
	ID           string
	Title        string
	FileName     string
	Size         int64
	Content      io.Reader
	ChunkSize    int
	ChunkOverlap *int
	Metadata     map[string]interface{}
}

type UploadResult struct {
	DocumentID    string `json:"documentId"`
	ChunksCreated int    `json:"chunksCreated"`
	FileSize      int64  `json:"fileSize"`
	FileType      string `json:"fileType"`
	Degraded      bool   `json:"degraded"`
	Status        string `json:"status"`
}

// Upload validates the file, stores the document and ingests its text.
// Ingestion runs on a context detached from ctx so a client disconnect does
// not abandon embeddings already in flight.
func (s *DocumentService) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	if in.Content == nil || in.Size == 0 {
		return nil, apperr.Validation("empty_file", "uploaded file is empty")
	}
	if in.Size > s.opts.MaxUploadBytes {
		return nil, apperr.Validation("file_too_large",
			fmt.Sprintf("file exceeds the %s upload limit", humanize.IBytes(uint64(s.opts.MaxUploadBytes))))
	}
	fileType, err := textextract.DetectType(in.FileName)
	if err != nil {
		return nil, apperr.Validation("unsupported_file_type", "only pdf, txt and md files are accepted")
	}

	size, overlap := s.opts.ChunkSize, s.opts.ChunkOverlap
	if in.ChunkSize > 0 {
		size = in.ChunkSize
	}
	if in.ChunkOverlap != nil {
		overlap = *in.ChunkOverlap
	}
	ck, err := chunker.New(size, overlap)
	if err != nil {
		return nil, apperr.Validation("invalid_chunking", err.Error())
	}

	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = uuid.NewString()
	} else if len(id) > maxDocumentID {
		return nil, apperr.Validation("invalid_document_id", "document id must be at most 36 characters")
	}

	text, err := textextract.Extract(fileType, in.Content)
	if err != nil {
		return nil, apperr.Validation("extraction_failed", "could not extract text from file")
	}
	if strings.TrimSpace(text) == "" {
		return nil, apperr.Validation("empty_document", "file contains no extractable text")
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(in.FileName), filepath.Ext(in.FileName))
		if title == "" {
			title = "Untitled"
		}
	}
	meta := make(map[string]interface{}, len(in.Metadata)+3)
	for k, v := range in.Metadata {
		meta[k] = v
	}
	meta["originalName"] = in.FileName
	meta["fileSizeHuman"] = humanize.Bytes(uint64(in.Size))
	meta["chunking"] = map[string]interface{}{"size": ck.Size(), "overlap": ck.Overlap()}

	doc := &model.Document{
		ID:        id,
		Title:     title,
		FileName:  in.FileName,
		FileType:  fileType,
		SizeBytes: in.Size,
		Metadata:  meta,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, err
	}

	ingestCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.IngestTimeout)
	defer cancel()

	res, err := s.ingest(ingestCtx, doc.ID, text, ck)
	if err != nil {
		return nil, err
	}
	res.FileSize = in.Size
	res.FileType = fileType
	return res, nil
}

// ingest chunks text and writes every chunk before embedding any of them,
// so a run cut short leaves pending chunks that Reindex can finish. Running
// it again for the same document rewrites the same ordinals.
func (s *DocumentService) ingest(ctx context.Context, documentID, text string, ck *chunker.Chunker) (*UploadResult, error) {
	log := logging.FromContext(ctx, s.logger).With(zap.String("document_id", documentID))
	pieces := ck.Split(text)

	if err := s.statuses.Start(ctx, documentID, len(pieces)); err != nil {
		return nil, err
	}

	rows := make([]model.DocumentChunk, len(pieces))
	for i, p := range pieces {
		rows[i] = model.DocumentChunk{
			ID:             chunkID(documentID, p.Index),
			DocumentID:     documentID,
			ChunkIndex:     p.Index,
			Content:        p.Content,
			EmbeddingState: model.EmbeddingPending,
			StartOffset:    p.Start,
			EndOffset:      p.End,
			TokenCount:     p.TokenCount,
		}
	}
	if err := s.chunks.WriteChunks(ctx, documentID, rows); err != nil {
		return nil, s.fail(ctx, documentID, err)
	}
	if err := s.chunks.TrimFrom(ctx, documentID, len(rows)); err != nil {
		return nil, s.fail(ctx, documentID, err)
	}
	s.metrics.ChunksWritten(len(rows))

	degraded, err := s.embed(ctx, documentID, rows)
	if err != nil {
		return nil, s.fail(ctx, documentID, err)
	}
	if err := s.complete(ctx, documentID, degraded); err != nil {
		return nil, err
	}

	log.Info("document ingested", zap.Int("chunks", len(rows)), zap.Bool("degraded", degraded))
	return &UploadResult{
		DocumentID:    documentID,
		ChunksCreated: len(rows),
		Degraded:      degraded,
		Status:        model.StatusCompleted,
	}, nil
}

// embed fills in embeddings batch by batch with at most Concurrency batches
// in flight. Each batch touches only its own ordinals, so completion order
// does not matter.
func (s *DocumentService) embed(ctx context.Context, documentID string, rows []model.DocumentChunk) (bool, error) {
	var degraded atomic.Bool
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)

	for start := 0; start < len(rows); start += s.opts.BatchSize {
		end := min(start+s.opts.BatchSize, len(rows))
		batch := rows[start:end]

		g.Go(func() error {
			texts := make([]string, len(batch))
			for i := range batch {
				texts[i] = batch[i].Content
			}
			results := s.embedder.EmbedBatch(gctx, texts)
			if len(results) != len(batch) {
				return fmt.Errorf("embedder returned %d results for %d chunks", len(results), len(batch))
			}

			batchDegraded := false
			for i, r := range results {
				applyEmbedding(&batch[i], r)
				if r.Fallback {
					batchDegraded = true
				}
			}
			if err := s.chunks.WriteChunks(gctx, documentID, batch); err != nil {
				return err
			}
			if batchDegraded {
				degraded.Store(true)
			}
			return s.statuses.Advance(gctx, documentID, len(batch), batchDegraded)
		})
	}

	if err := g.Wait(); err != nil {
		return degraded.Load(), err
	}
	return degraded.Load(), nil
}

func applyEmbedding(c *model.DocumentChunk, r embedding.Result) {
	if r.Fallback {
		c.SetVector(nil)
		c.EmbeddingState = model.EmbeddingFallback
		c.EmbeddingModel = ""
		c.EmbeddingNativeDim = 0
		return
	}
	c.SetVector(r.Vector)
	c.EmbeddingState = model.EmbeddingEmbedded
	c.EmbeddingModel = r.Model
	c.EmbeddingNativeDim = r.NativeDim
}

func (s *DocumentService) complete(ctx context.Context, documentID string, degraded bool) error {
	msg := ""
	outcome := "complete"
	if degraded {
		msg = "some chunks received fallback embeddings; reindex to retry"
		outcome = "degraded"
	}
	if err := s.statuses.Complete(ctx, documentID, degraded, msg); err != nil {
		return err
	}
	s.metrics.DocumentIngested(outcome)
	return nil
}

// fail records err on the processing status and returns it.
func (s *DocumentService) fail(ctx context.Context, documentID string, err error) error {
	s.metrics.DocumentIngested("failed")
	if statusErr := s.statuses.Fail(ctx, documentID, err.Error()); statusErr != nil {
		s.logger.Error("record ingestion failure failed",
			zap.String("document_id", documentID),
			zap.Error(statusErr))
	}
	return err
}

// chunkID is stable per ordinal so re-ingestion keeps chunk ids.
func chunkID(documentID string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s/%d", documentID, index))).String()
}

type ReindexResult struct {
	DocumentID      string `json:"documentId"`
	ChunksReindexed int    `json:"chunksReindexed"`
	Degraded        bool   `json:"degraded"`
	Status          string `json:"status"`
}

// Reindex re-embeds chunks that are pending or hold a fallback, or every
// chunk when force is set.
func (s *DocumentService) Reindex(ctx context.Context, documentID string, force bool) (*ReindexResult, error) {
	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, documentNotFound(documentID)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.IngestTimeout)
	defer cancel()

	var rows []model.DocumentChunk
	if force {
		rows, err = s.chunks.ListByDocument(ctx, documentID)
	} else {
		rows, err = s.chunks.ListUnembedded(ctx, documentID)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &ReindexResult{DocumentID: documentID, Status: model.StatusCompleted}, nil
	}

	if err := s.statuses.Start(ctx, documentID, len(rows)); err != nil {
		return nil, err
	}
	degraded, err := s.embed(ctx, documentID, rows)
	if err != nil {
		return nil, s.fail(ctx, documentID, err)
	}
	if err := s.complete(ctx, documentID, degraded); err != nil {
		return nil, err
	}
	return &ReindexResult{
		DocumentID:      documentID,
		ChunksReindexed: len(rows),
		Degraded:        degraded,
		Status:          model.StatusCompleted,
	}, nil
}

func (s *DocumentService) Get(ctx context.Context, documentID string) (*repository.DocumentSummary, error) {
	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, documentNotFound(documentID)
	}
	summaries, err := s.docs.Summaries(ctx, []model.Document{*doc})
	if err != nil {
		return nil, err
	}
	return &summaries[0], nil
}

type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

type DocumentList struct {
	Documents  []repository.DocumentSummary `json:"documents"`
	Pagination Pagination                   `json:"pagination"`
}

// List pages documents newest first. Zero page and pageSize select defaults.
func (s *DocumentService) List(ctx context.Context, page, pageSize int) (*DocumentList, error) {
	if page < 0 || pageSize < 0 {
		return nil, apperr.Validation("invalid_pagination", "page and pageSize must be positive")
	}
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		return nil, apperr.Validation("invalid_pagination", fmt.Sprintf("pageSize must be at most %d", maxPageSize))
	}

	docs, total, err := s.docs.List(ctx, page, pageSize)
	if err != nil {
		return nil, err
	}
	return &DocumentList{
		Documents: docs,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
		},
	}, nil
}

func (s *DocumentService) PatchMetadata(ctx context.Context, documentID string, patch map[string]interface{}) (*repository.DocumentSummary, error) {
	if len(patch) == 0 {
		return nil, apperr.Validation("empty_patch", "metadata patch must not be empty")
	}
	if _, err := s.docs.MergeMetadata(ctx, documentID, patch); err != nil {
		return nil, err
	}
	return s.Get(ctx, documentID)
}

func (s *DocumentService) Delete(ctx context.Context, documentID string) error {
	if err := s.docs.Delete(ctx, documentID); err != nil {
		return err
	}
	s.logger.Info("document deleted", zap.String("document_id", documentID))
	return nil
}

type Stats struct {
	TotalDocuments       int64   `json:"totalDocuments"`
	TotalChunks          int64   `json:"totalChunks"`
	AvgChunksPerDocument float64 `json:"avgChunksPerDocument"`
	TotalEmbeddings      int64   `json:"totalEmbeddings"`
}

func (s *DocumentService) Stats(ctx context.Context) (*Stats, error) {
	docs, err := s.docs.Count(ctx)
	if err != nil {
		return nil, err
	}
	chunkStats, err := s.chunks.Stats(ctx)
	if err != nil {
		return nil, err
	}
	out := &Stats{
		TotalDocuments:  docs,
		TotalChunks:     chunkStats.TotalChunks,
		TotalEmbeddings: chunkStats.TotalEmbeddings,
	}
	if docs > 0 {
		out.AvgChunksPerDocument = math.Round(float64(chunkStats.TotalChunks)/float64(docs)*100) / 100
	}
	return out, nil
}

func documentNotFound(id string) error {
	return apperr.NotFound("document_not_found", "document "+id+" not found")
}

