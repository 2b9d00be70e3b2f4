package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/antonkh/filings-qa/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*PassageRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &PassageRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestFetchByDocumentOrdersByPageThenChunk(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"text", "page_index"}).
		AddRow("revenue overview", 1).
		AddRow("revenue detail", 1).
		AddRow("outlook", 2)
	mock.ExpectQuery("SELECT text, page_index").
		WithArgs("doc-1").
		WillReturnRows(rows)

	passages, err := repo.FetchByDocument(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("FetchByDocument: %v", err)
	}
	if len(passages) != 3 {
		t.Fatalf("passages = %d, want 3", len(passages))
	}
	want := []domain.Passage{
		{Text: "revenue overview", DocumentID: "doc-1", PageIndex: 1},
		{Text: "revenue detail", DocumentID: "doc-1", PageIndex: 1},
		{Text: "outlook", DocumentID: "doc-1", PageIndex: 2},
	}
	for i := range want {
		if passages[i] != want[i] {
			t.Errorf("passage[%d] = %+v, want %+v", i, passages[i], want[i])
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFetchByDocumentEmptyDocument(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT text, page_index").
		WithArgs("empty").
		WillReturnRows(sqlmock.NewRows([]string{"text", "page_index"}))

	passages, err := repo.FetchByDocument(context.Background(), "empty")
	if err != nil {
		t.Fatalf("FetchByDocument: %v", err)
	}
	if len(passages) != 0 {
		t.Fatalf("passages = %v, want none", passages)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFetchByDocumentQueryErrorIsTemporary(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT text, page_index").
		WithArgs("doc-1").
		WillReturnError(errors.New("connection reset"))

	_, err := repo.FetchByDocument(context.Background(), "doc-1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
