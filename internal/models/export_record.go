package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ExportKind enumerates supported export document formats.
type ExportKind string

const (
	ExportKindPDF  ExportKind = "pdf"
	ExportKindWord ExportKind = "word"
	ExportKindZIP  ExportKind = "zip"
)

// ExportStatus captures the lifecycle of an asynchronous export run.
type ExportStatus string

const (
	ExportStatusQueued     ExportStatus = "QUEUED"
	ExportStatusProcessing ExportStatus = "PROCESSING"
	ExportStatusFinished   ExportStatus = "FINISHED"
	ExportStatusFailed     ExportStatus = "FAILED"
	ExportStatusAbandoned  ExportStatus = "ABANDONED"
)

// ExportContext is structured provenance stored alongside a record.
type ExportContext struct {
	EvidenceCount  int      `json:"evidenceCount"`
	AnnotatedCount int      `json:"annotatedCount"`
	SkippedItems   []string `json:"skippedItems,omitempty"`
}

// Value marshals the context to JSON for persistence.
func (c ExportContext) Value() (driver.Value, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal export context: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the context struct.
func (c *ExportContext) Scan(value interface{}) error {
	if value == nil {
		*c = ExportContext{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for ExportContext", value)
	}
	if len(data) == 0 {
		*c = ExportContext{}
		return nil
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("unmarshal export context: %w", err)
	}
	return nil
}

// ExportRecord is a persisted generated document tied to a ticket.
// Records are created atomically when a composer run succeeds and never mutated.
type ExportRecord struct {
	ID          string        `db:"id" json:"id"`
	TicketID    string        `db:"ticket_id" json:"ticketId"`
	Kind        ExportKind    `db:"kind" json:"kind"`
	FileName    string        `db:"file_name" json:"fileName"`
	PayloadPath string        `db:"payload_path" json:"-"`
	SizeBytes   int64         `db:"size_bytes" json:"sizeBytes"`
	Generator   string        `db:"generator" json:"generator"`
	Description string        `db:"description" json:"description"`
	Context     ExportContext `db:"context" json:"context"`
	CreatedAt   time.Time     `db:"created_at" json:"createdAt"`
}
