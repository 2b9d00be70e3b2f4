package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/antonkh/filings-qa/internal/core/domain"
)

// PassageRepository reads chunked report pages out of Postgres. The ingestion
// pipeline that fills the table lives outside this service; this side only
// needs document-ordered reads to feed the lexical index.
type PassageRepository struct {
	db *sql.DB
}

func NewPassageRepository(db *sql.DB) *PassageRepository {
	return &PassageRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *PassageRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS passages (
	document_id TEXT NOT NULL,
	page_index INTEGER NOT NULL,
	chunk_index INTEGER NOT NULL,
	text TEXT NOT NULL,
	PRIMARY KEY (document_id, page_index, chunk_index)
);

CREATE INDEX IF NOT EXISTS idx_passages_document ON passages(document_id);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// FetchByDocument returns every passage of one document in page then chunk
// order, the order the lexical index and page aggregation rely on.
func (r *PassageRepository) FetchByDocument(ctx context.Context, documentID string) ([]domain.Passage, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT text, page_index
FROM passages
WHERE document_id = $1
ORDER BY page_index, chunk_index
`, documentID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "postgres.FetchByDocument", err)
	}
	defer rows.Close()

	var passages []domain.Passage
	for rows.Next() {
		passage := domain.Passage{DocumentID: documentID}
		if err := rows.Scan(&passage.Text, &passage.PageIndex); err != nil {
			return nil, domain.WrapError(domain.ErrTemporary, "postgres.FetchByDocument", fmt.Errorf("scan passage: %w", err))
		}
		passages = append(passages, passage)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "postgres.FetchByDocument", err)
	}
	return passages, nil
}
