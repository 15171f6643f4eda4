// Package migrations holds the versioned schema history. Each migration
// declares its own table snapshot so later model changes never rewrite an
// applied step.
package migrations

import (
	"fmt"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

type Options struct {
	// Dimension is the canonical embedding dimension of the deployment.
	Dimension int
}

// Run applies every pending migration in order.
func Run(db *gorm.DB, opts Options) error {
	if opts.Dimension <= 0 {
		return fmt.Errorf("migrations: embedding dimension must be positive, got %d", opts.Dimension)
	}
	m := gormigrate.New(db, gormigrate.DefaultOptions, all(opts))
	if err := m.Migrate(); err != nil {
		return fmt.Errorf("apply migrations failed: %w", err)
	}
	return nil
}

// RollbackLast reverts the most recently applied migration.
func RollbackLast(db *gorm.DB, opts Options) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, all(opts))
	if err := m.RollbackLast(); err != nil {
		return fmt.Errorf("rollback migration failed: %w", err)
	}
	return nil
}

// IDs lists migration identifiers in application order.
func IDs() []string {
	list := all(Options{Dimension: 1})
	ids := make([]string, len(list))
	for i, m := range list {
		ids[i] = m.ID
	}
	return ids
}

func isPostgres(tx *gorm.DB) bool {
	return tx.Dialector.Name() == "postgres"
}

func all(opts Options) []*gormigrate.Migration {
	return []*gormigrate.Migration{
		{
			ID: "202601010001_create_documents",
			Migrate: func(tx *gorm.DB) error {
				if isPostgres(tx) {
					if err := tx.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
						return fmt.Errorf("enable pgvector: %w", err)
					}
				}
				return tx.AutoMigrate(&documentV1{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(documentV1{}.TableName())
			},
		},
		{
			ID: "202601010002_create_document_chunks",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&documentChunkV1{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(documentChunkV1{}.TableName())
			},
		},
		{
			ID: "202601010003_create_processing_status",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&processingStatusV1{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(processingStatusV1{}.TableName())
			},
		},
		{
			ID: "202601010004_create_search_history",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&searchHistoryV1{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(searchHistoryV1{}.TableName())
			},
		},
		{
			ID: "202601010005_postgres_search_indexes",
			Migrate: func(tx *gorm.DB) error {
				if !isPostgres(tx) {
					return nil
				}
				return execAll(tx, []string{
					fmt.Sprintf("ALTER TABLE document_chunks ALTER COLUMN embedding TYPE vector(%d)", opts.Dimension),
					fmt.Sprintf("ALTER TABLE search_history ALTER COLUMN embedding TYPE vector(%d)", opts.Dimension),
					"ALTER TABLE document_chunks ADD COLUMN IF NOT EXISTS content_tsv tsvector GENERATED ALWAYS AS (to_tsvector('english', content)) STORED",
					"CREATE INDEX IF NOT EXISTS idx_document_chunks_content_tsv ON document_chunks USING GIN (content_tsv)",
					"CREATE INDEX IF NOT EXISTS idx_document_chunks_embedding ON document_chunks USING hnsw (embedding vector_cosine_ops)",
				})
			},
			Rollback: func(tx *gorm.DB) error {
				if !isPostgres(tx) {
					return nil
				}
				return execAll(tx, []string{
					"DROP INDEX IF EXISTS idx_document_chunks_embedding",
					"DROP INDEX IF EXISTS idx_document_chunks_content_tsv",
					"ALTER TABLE document_chunks DROP COLUMN IF EXISTS content_tsv",
				})
			},
		},
	}
}

func execAll(tx *gorm.DB, stmts []string) error {
	for _, stmt := range stmts {
		if err := tx.Exec(stmt).Error; err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}
	return nil
}
