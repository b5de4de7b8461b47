package index

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siteharvest/internal/crawler"
)

func TestInsertPage(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	idx, err := NewWithPool(mock, "pages")
	require.NoError(t, err)

	rec := crawler.PageRecord{
		CrawlID:      "c1",
		URL:          "http://a.com/page",
		FetchedAt:    time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		DocumentPath: "output/pages/abc.html",
		ContentHash:  "deadbeef",
		Rendered:     true,
		Metadata:     map[string]string{"title": "A Page"},
	}

	mock.ExpectExec("INSERT INTO pages").
		WithArgs(rec.CrawlID, rec.URL, rec.FetchedAt, rec.DocumentPath, rec.ContentHash, rec.Rendered, "A Page").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, idx.InsertPage(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertPageMissingTitle(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	idx, err := NewWithPool(mock, "")
	require.NoError(t, err)

	rec := crawler.PageRecord{CrawlID: "c1", URL: "http://a.com/"}
	mock.ExpectExec("INSERT INTO pages").
		WithArgs(rec.CrawlID, rec.URL, rec.FetchedAt, rec.DocumentPath, rec.ContentHash, rec.Rendered, "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, idx.InsertPage(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewWithPoolRejectsBadTable(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(mock, "pages; DROP TABLE pages")
	assert.Error(t, err)
}

func TestNewRequiresDSN(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)
}
