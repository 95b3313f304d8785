package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/fieldserve/evidence-api/internal/models"
)

func TestExportRecordRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExportRecordRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO export_records")).
		WithArgs(sqlmock.AnyArg(), "ticket-1", "pdf", "Acme_2026-08-31.pdf", "exports/rec.pdf", int64(2048), "tech-7", "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec := &models.ExportRecord{
		TicketID:    "ticket-1",
		Kind:        models.ExportKindPDF,
		FileName:    "Acme_2026-08-31.pdf",
		PayloadPath: "exports/rec.pdf",
		SizeBytes:   2048,
		Generator:   "tech-7",
		Context:     models.ExportContext{EvidenceCount: 3, AnnotatedCount: 1},
	}
	require.NoError(t, repo.Create(context.Background(), rec))
	require.NotEmpty(t, rec.ID)

	rows := sqlmock.NewRows([]string{"id", "ticket_id", "kind", "file_name", "payload_path", "size_bytes", "generator", "description", "context", "created_at"}).
		AddRow(rec.ID, "ticket-1", "pdf", rec.FileName, rec.PayloadPath, 2048, "tech-7", "", `{"evidenceCount":3,"annotatedCount":1}`, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM export_records WHERE id = $1")).
		WithArgs(rec.ID).
		WillReturnRows(rows)

	fetched, err := repo.GetByID(context.Background(), rec.ID)
	require.NoError(t, err)
	require.Equal(t, 3, fetched.Context.EvidenceCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExportRecordRepositoryListByTicket(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExportRecordRepository(db)

	rows := sqlmock.NewRows([]string{"id", "ticket_id", "kind", "file_name", "payload_path", "size_bytes", "generator", "description", "context", "created_at"}).
		AddRow("rec-2", "ticket-1", "zip", "TK-1_2026-08-31.zip", "exports/rec2.zip", 9000, "tech-7", "", `{"evidenceCount":4}`, time.Now()).
		AddRow("rec-1", "ticket-1", "pdf", "TK-1_2026-08-30.pdf", "exports/rec1.pdf", 2048, "tech-7", "", `{"evidenceCount":4}`, time.Now().Add(-time.Hour))
	mock.ExpectQuery(regexp.QuoteMeta("FROM export_records WHERE ticket_id = $1 ORDER BY created_at DESC")).
		WithArgs("ticket-1").
		WillReturnRows(rows)

	records, err := repo.ListByTicket(context.Background(), "ticket-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "rec-2", records[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExportRecordRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExportRecordRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM export_records WHERE id = $1")).
		WithArgs("rec-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "rec-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
