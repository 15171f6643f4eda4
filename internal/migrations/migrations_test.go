package migrations_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finrag/internal/migrations"
	"finrag/internal/testutil"
)

func TestRunCreatesTables(t *testing.T) {
	db := testutil.NewDB(t, 8)

	for _, table := range []string{"documents", "document_chunks", "document_processing_status", "search_history", "migrations"} {
		assert.True(t, db.Migrator().HasTable(table), "missing table %s", table)
	}
	assert.True(t, db.Migrator().HasIndex("document_chunks", "idx_chunk_document_ordinal"))

	var applied []string
	require.NoError(t, db.Table("migrations").Order("id").Pluck("id", &applied).Error)
	assert.Equal(t, migrations.IDs(), applied)
}

func TestRunIsIdempotent(t *testing.T) {
	db := testutil.NewDB(t, 8)
	require.NoError(t, migrations.Run(db, migrations.Options{Dimension: 8}))
}

func TestRunRejectsInvalidDimension(t *testing.T) {
	db := testutil.NewDB(t, 8)
	assert.Error(t, migrations.Run(db, migrations.Options{Dimension: 0}))
}

func TestRollbackLast(t *testing.T) {
	db := testutil.NewDB(t, 8)

	require.NoError(t, migrations.RollbackLast(db, migrations.Options{Dimension: 8}))
	require.NoError(t, migrations.RollbackLast(db, migrations.Options{Dimension: 8}))
	assert.False(t, db.Migrator().HasTable("search_history"))
	assert.True(t, db.Migrator().HasTable("document_chunks"))
}
