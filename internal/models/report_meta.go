package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// FormatPrefs tunes how the header description block is rendered.
// Preferences apply to the report description only, never to per-item captions.
type FormatPrefs struct {
	Bulleted    bool   `json:"bulleted"`
	BulletGlyph string `json:"bulletGlyph,omitempty"`
	TextColor   string `json:"textColor,omitempty"`
}

// ReportMetadata is the report-level metadata collected before generation.
// It is ephemeral per export request; the last used value may be kept as a
// best-effort default for future sessions.
type ReportMetadata struct {
	TicketNumber string      `json:"ticketNumber"`
	TicketTitle  string      `json:"ticketTitle"`
	ClientName   string      `json:"clientName"`
	Description  string      `json:"description"`
	Format       FormatPrefs `json:"format"`
}

// Value marshals the metadata to JSON for persistence.
func (m ReportMetadata) Value() (driver.Value, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal report metadata: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the metadata struct.
func (m *ReportMetadata) Scan(value interface{}) error {
	if value == nil {
		*m = ReportMetadata{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for ReportMetadata", value)
	}
	if len(data) == 0 {
		*m = ReportMetadata{}
		return nil
	}
	if err := json.Unmarshal(data, m); err != nil {
		return fmt.Errorf("unmarshal report metadata: %w", err)
	}
	return nil
}
