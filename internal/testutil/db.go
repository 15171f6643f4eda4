// Package testutil provides fixtures shared by package tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"finrag/internal/migrations"
)

var dbSeq atomic.Int64

// NewDB opens an in-memory SQLite database with every migration applied.
// The pool holds a single connection so the memory database is shared by
// all statements of the test.
func NewDB(t testing.TB, dimension int) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:finrag_test_%d?mode=memory&_pragma=foreign_keys(1)", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, migrations.Run(db, migrations.Options{Dimension: dimension}))
	return db
}
