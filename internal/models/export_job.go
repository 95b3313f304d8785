package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ExportJobParams stores request-scoped generation options persisted as JSONB.
type ExportJobParams struct {
	Kind        ExportKind     `json:"kind"`
	EvidenceIDs []string       `json:"evidenceIds,omitempty"`
	Metadata    ReportMetadata `json:"metadata"`
}

// Value marshals params to JSON for persistence.
func (p ExportJobParams) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal export job params: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the params struct.
func (p *ExportJobParams) Scan(value interface{}) error {
	if value == nil {
		*p = ExportJobParams{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for ExportJobParams", value)
	}
	if len(data) == 0 {
		*p = ExportJobParams{}
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal export job params: %w", err)
	}
	return nil
}

// ExportJob tracks one asynchronous composer run. A job whose dialog was
// dismissed before completion moves to ABANDONED and its result is never
// persisted as an export record.
type ExportJob struct {
	ID           string          `db:"id" json:"id"`
	TicketID     string          `db:"ticket_id" json:"ticketId"`
	Params       ExportJobParams `db:"params" json:"params"`
	Status       ExportStatus    `db:"status" json:"status"`
	Progress     int             `db:"progress" json:"progress"`
	RecordID     *string         `db:"record_id" json:"recordId,omitempty"`
	RequestedBy  string          `db:"requested_by" json:"requestedBy"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
	FinishedAt   *time.Time      `db:"finished_at" json:"finishedAt,omitempty"`
	ErrorMessage *string         `db:"error_message" json:"errorMessage,omitempty"`
}
