package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/fieldserve/evidence-api/internal/models"
)

const evidenceColumns = `id, ticket_id, resource_path, mime_type, file_name, display_name, description, display_order, manual_rotation, sync_state, uploaded_by, created_at`

// EvidenceRepository persists evidence rows and their per-ticket ordering.
type EvidenceRepository struct {
	db *sqlx.DB
}

// NewEvidenceRepository constructs the repository.
func NewEvidenceRepository(db *sqlx.DB) *EvidenceRepository {
	return &EvidenceRepository{db: db}
}

// Create inserts a new evidence row at the end of the ticket's sequence.
func (r *EvidenceRepository) Create(ctx context.Context, ev *models.Evidence) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.SyncState == "" {
		ev.SyncState = models.SyncStatePending
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	if ev.DisplayOrder == 0 {
		const next = `SELECT COALESCE(MAX(display_order), 0) + 1 FROM evidence WHERE ticket_id = $1`
		if err := r.db.GetContext(ctx, &ev.DisplayOrder, next, ev.TicketID); err != nil {
			return fmt.Errorf("next display order: %w", err)
		}
	}
	const query = `INSERT INTO evidence (id, ticket_id, resource_path, mime_type, file_name, display_name, description, display_order, manual_rotation, sync_state, uploaded_by, created_at)
VALUES (:id, :ticket_id, :resource_path, :mime_type, :file_name, :display_name, :description, :display_order, :manual_rotation, :sync_state, :uploaded_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, ev); err != nil {
		return fmt.Errorf("create evidence: %w", err)
	}
	return nil
}

// GetByID returns one evidence row.
func (r *EvidenceRepository) GetByID(ctx context.Context, id string) (*models.Evidence, error) {
	query := fmt.Sprintf(`SELECT %s FROM evidence WHERE id = $1`, evidenceColumns)
	var ev models.Evidence
	if err := r.db.GetContext(ctx, &ev, query, id); err != nil {
		return nil, fmt.Errorf("get evidence: %w", err)
	}
	return &ev, nil
}

// ListByTicket returns a ticket's evidence sorted by display order. The filter
// is optional.
func (r *EvidenceRepository) ListByTicket(ctx context.Context, ticketID string, filter models.EvidenceFilter) ([]models.Evidence, error) {
	where := []string{"ticket_id = $1"}
	args := []interface{}{ticketID}
	argPos := 2

	if filter.MimePrefix != "" {
		where = append(where, fmt.Sprintf("mime_type LIKE $%d", argPos))
		args = append(args, filter.MimePrefix+"%")
		argPos++
	}
	if filter.CreatedFrom != nil {
		where = append(where, fmt.Sprintf("created_at >= $%d", argPos))
		args = append(args, *filter.CreatedFrom)
		argPos++
	}
	if filter.CreatedTo != nil {
		where = append(where, fmt.Sprintf("created_at <= $%d", argPos))
		args = append(args, *filter.CreatedTo)
		argPos++
	}

	query := fmt.Sprintf(`SELECT %s FROM evidence WHERE %s ORDER BY display_order ASC`, evidenceColumns, strings.Join(where, " AND "))
	var list []models.Evidence
	if err := r.db.SelectContext(ctx, &list, query, args...); err != nil {
		return nil, fmt.Errorf("list evidence: %w", err)
	}
	return list, nil
}

// ListByIDs fetches evidence rows for an explicit id set, preserving the
// stored display order.
func (r *EvidenceRepository) ListByIDs(ctx context.Context, ids []string) ([]models.Evidence, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(fmt.Sprintf(`SELECT %s FROM evidence WHERE id IN (?) ORDER BY display_order ASC`, evidenceColumns), ids)
	if err != nil {
		return nil, fmt.Errorf("build evidence id query: %w", err)
	}
	query = r.db.Rebind(query)
	var list []models.Evidence
	if err := r.db.SelectContext(ctx, &list, query, args...); err != nil {
		return nil, fmt.Errorf("list evidence by ids: %w", err)
	}
	return list, nil
}

// ReplaceOrder writes a full display-order permutation for a ticket in one
// transaction. The map holds evidence id -> new position (1-based).
func (r *EvidenceRepository) ReplaceOrder(ctx context.Context, ticketID string, order map[string]int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reorder: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `UPDATE evidence SET display_order = $1 WHERE id = $2 AND ticket_id = $3`
	for id, pos := range order {
		res, err := tx.ExecContext(ctx, query, pos, id, ticketID)
		if err != nil {
			return fmt.Errorf("reorder evidence %s: %w", id, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("reorder evidence %s: %w", id, sql.ErrNoRows)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reorder: %w", err)
	}
	return nil
}

// UpdateEvidenceParams defines the mutable evidence fields.
type UpdateEvidenceParams struct {
	DisplayName    *string
	Description    *string
	ManualRotation *int
	SyncState      *models.SyncState
	ResourcePath   *string
	MimeType       *string
}

// Update persists the provided changes for an evidence row.
func (r *EvidenceRepository) Update(ctx context.Context, id string, params UpdateEvidenceParams) error {
	set := make([]string, 0, 5)
	args := make([]interface{}, 0, 6)
	argPos := 1

	if params.DisplayName != nil {
		set = append(set, fmt.Sprintf("display_name = $%d", argPos))
		args = append(args, *params.DisplayName)
		argPos++
	}
	if params.Description != nil {
		set = append(set, fmt.Sprintf("description = $%d", argPos))
		args = append(args, *params.Description)
		argPos++
	}
	if params.ManualRotation != nil {
		set = append(set, fmt.Sprintf("manual_rotation = $%d", argPos))
		args = append(args, *params.ManualRotation)
		argPos++
	}
	if params.SyncState != nil {
		set = append(set, fmt.Sprintf("sync_state = $%d", argPos))
		args = append(args, *params.SyncState)
		argPos++
	}
	if params.ResourcePath != nil {
		set = append(set, fmt.Sprintf("resource_path = $%d", argPos))
		args = append(args, *params.ResourcePath)
		argPos++
	}
	if params.MimeType != nil {
		set = append(set, fmt.Sprintf("mime_type = $%d", argPos))
		args = append(args, *params.MimeType)
		argPos++
	}

	if len(set) == 0 {
		return nil
	}

	query := fmt.Sprintf("UPDATE evidence SET %s WHERE id = $%d", strings.Join(set, ", "), argPos)
	args = append(args, id)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update evidence: %w", err)
	}
	return nil
}

// Delete removes an evidence row.
func (r *EvidenceRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM evidence WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete evidence: %w", err)
	}
	return nil
}
