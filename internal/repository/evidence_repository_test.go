package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/fieldserve/evidence-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func evidenceRows(items ...models.Evidence) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "ticket_id", "resource_path", "mime_type", "file_name", "display_name", "description", "display_order", "manual_rotation", "sync_state", "uploaded_by", "created_at"})
	for _, ev := range items {
		rows.AddRow(ev.ID, ev.TicketID, ev.ResourcePath, ev.MimeType, ev.FileName, ev.DisplayName, ev.Description, ev.DisplayOrder, ev.ManualRotation, ev.SyncState, ev.UploadedBy, ev.CreatedAt)
	}
	return rows
}

func TestEvidenceRepositoryCreateAppendsToSequence(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEvidenceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(display_order), 0) + 1 FROM evidence WHERE ticket_id = $1")).
		WithArgs("ticket-1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(3))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO evidence")).
		WithArgs(sqlmock.AnyArg(), "ticket-1", "media/p1.jpg", "image/jpeg", "p1.jpg", "p1.jpg", "", 3, 0, "pending", "tech-7", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	ev := &models.Evidence{
		TicketID:     "ticket-1",
		ResourcePath: "media/p1.jpg",
		MimeType:     "image/jpeg",
		FileName:     "p1.jpg",
		DisplayName:  "p1.jpg",
		UploadedBy:   "tech-7",
	}
	require.NoError(t, repo.Create(context.Background(), ev))
	require.NotEmpty(t, ev.ID)
	require.Equal(t, 3, ev.DisplayOrder)
	require.Equal(t, models.SyncStatePending, ev.SyncState)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEvidenceRepositoryListByTicketOrdered(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEvidenceRepository(db)

	now := time.Now()
	rows := evidenceRows(
		models.Evidence{ID: "ev-1", TicketID: "ticket-1", MimeType: "image/png", DisplayOrder: 1, SyncState: models.SyncStateSynced, CreatedAt: now},
		models.Evidence{ID: "ev-2", TicketID: "ticket-1", MimeType: "video/mp4", DisplayOrder: 2, SyncState: models.SyncStateSynced, CreatedAt: now},
	)
	mock.ExpectQuery(regexp.QuoteMeta("FROM evidence WHERE ticket_id = $1 ORDER BY display_order ASC")).
		WithArgs("ticket-1").
		WillReturnRows(rows)

	list, err := repo.ListByTicket(context.Background(), "ticket-1", models.EvidenceFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "ev-1", list[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEvidenceRepositoryListByTicketFiltered(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEvidenceRepository(db)

	from := time.Now().Add(-24 * time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta("FROM evidence WHERE ticket_id = $1 AND mime_type LIKE $2 AND created_at >= $3 ORDER BY display_order ASC")).
		WithArgs("ticket-1", "image/%", from).
		WillReturnRows(evidenceRows())

	_, err := repo.ListByTicket(context.Background(), "ticket-1", models.EvidenceFilter{MimePrefix: "image/", CreatedFrom: &from})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEvidenceRepositoryReplaceOrder(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEvidenceRepository(db)

	mock.MatchExpectationsInOrder(false)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE evidence SET display_order = $1 WHERE id = $2 AND ticket_id = $3")).
		WithArgs(1, "ev-2", "ticket-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE evidence SET display_order = $1 WHERE id = $2 AND ticket_id = $3")).
		WithArgs(2, "ev-1", "ticket-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.ReplaceOrder(context.Background(), "ticket-1", map[string]int{"ev-2": 1, "ev-1": 2})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEvidenceRepositoryReplaceOrderUnknownIDRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEvidenceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE evidence SET display_order = $1 WHERE id = $2 AND ticket_id = $3")).
		WithArgs(1, "ev-missing", "ticket-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.ReplaceOrder(context.Background(), "ticket-1", map[string]int{"ev-missing": 1})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEvidenceRepositoryUpdate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEvidenceRepository(db)

	rotation := 90
	name := "Front panel"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE evidence SET display_name = $1, manual_rotation = $2 WHERE id = $3")).
		WithArgs(name, rotation, "ev-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), "ev-1", UpdateEvidenceParams{DisplayName: &name, ManualRotation: &rotation})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEvidenceRepositoryUpdateNoFieldsIsNoop(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEvidenceRepository(db)

	require.NoError(t, repo.Update(context.Background(), "ev-1", UpdateEvidenceParams{}))
	require.NoError(t, mock.ExpectationsWereMet())
}
