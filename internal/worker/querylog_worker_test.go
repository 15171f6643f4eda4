package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finrag/internal/model"
	"finrag/internal/platform/rabbitmq"
	"finrag/internal/repository"
	"finrag/internal/testutil"
)

type failingStore struct{}

func (failingStore) Record(context.Context, *model.SearchQueryLog) error {
	return errors.New("database is locked")
}

func TestHandlePersistsMessage(t *testing.T) {
	db := testutil.NewDB(t, 3)
	repo := repository.NewSearchLogRepository(db)
	w := NewQueryLogWorker(nil, repo, "rag.search.log", 0, nil)

	body, err := json.Marshal(rabbitmq.QueryLogMessage{
		Query:          "free cash flow 2023",
		SearchType:     "hybrid",
		EmbeddingModel: "m1",
		Embedding:      []float32{0.1, 0.2, 0.3},
		ResultsCount:   4,
		ResponseTimeMs: 87,
		CreatedAt:      time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NoError(t, w.handle(context.Background(), body))

	recent, err := repo.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "free cash flow 2023", recent[0].Query)
	assert.Equal(t, 4, recent[0].ResultsCount)
	require.NotNil(t, recent[0].Embedding)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, recent[0].Embedding.Slice())
}

func TestHandleRejectsMalformedMessages(t *testing.T) {
	w := NewQueryLogWorker(nil, failingStore{}, "q", 0, nil)

	assert.ErrorIs(t, w.handle(context.Background(), []byte("{not json")), errMalformed)
	assert.ErrorIs(t, w.handle(context.Background(), []byte(`{"searchType":"lexical"}`)), errMalformed)

	err := w.handle(context.Background(), []byte(`{"query":"q","searchType":"lexical"}`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, errMalformed)
}
