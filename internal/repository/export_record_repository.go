package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/fieldserve/evidence-api/internal/models"
)

const exportRecordColumns = `id, ticket_id, kind, file_name, payload_path, size_bytes, generator, description, context, created_at`

// ExportRecordRepository persists finished export documents.
type ExportRecordRepository struct {
	db *sqlx.DB
}

// NewExportRecordRepository constructs the repository.
func NewExportRecordRepository(db *sqlx.DB) *ExportRecordRepository {
	return &ExportRecordRepository{db: db}
}

// Create inserts a new export record row.
func (r *ExportRecordRepository) Create(ctx context.Context, rec *models.ExportRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO export_records (id, ticket_id, kind, file_name, payload_path, size_bytes, generator, description, context, created_at)
VALUES (:id, :ticket_id, :kind, :file_name, :payload_path, :size_bytes, :generator, :description, :context, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, rec); err != nil {
		return fmt.Errorf("create export record: %w", err)
	}
	return nil
}

// GetByID returns one export record.
func (r *ExportRecordRepository) GetByID(ctx context.Context, id string) (*models.ExportRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM export_records WHERE id = $1`, exportRecordColumns)
	var rec models.ExportRecord
	if err := r.db.GetContext(ctx, &rec, query, id); err != nil {
		return nil, fmt.Errorf("get export record: %w", err)
	}
	return &rec, nil
}

// ListByTicket returns a ticket's export records, newest first.
func (r *ExportRecordRepository) ListByTicket(ctx context.Context, ticketID string) ([]models.ExportRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM export_records WHERE ticket_id = $1 ORDER BY created_at DESC`, exportRecordColumns)
	var list []models.ExportRecord
	if err := r.db.SelectContext(ctx, &list, query, ticketID); err != nil {
		return nil, fmt.Errorf("list export records: %w", err)
	}
	return list, nil
}

// Delete removes a record row. The stored payload is removed by the caller.
func (r *ExportRecordRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM export_records WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete export record: %w", err)
	}
	return nil
}
