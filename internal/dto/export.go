package dto

import "github.com/fieldserve/evidence-api/internal/models"

// ExportRequest captures POST /tickets/{id}/exports payload. An empty
// EvidenceIDs list means every item on the ticket.
type ExportRequest struct {
	Kind        models.ExportKind     `json:"kind" validate:"required,export_kind"`
	EvidenceIDs []string              `json:"evidenceIds,omitempty" validate:"omitempty,dive,required"`
	Metadata    models.ReportMetadata `json:"metadata"`
}

// ExportJobResponse is returned after enqueueing an export.
type ExportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ExportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ExportStatusResponse exposes job progress metadata.
type ExportStatusResponse struct {
	ID       string              `json:"id"`
	Status   models.ExportStatus `json:"status"`
	Progress int                 `json:"progress"`
	RecordID *string             `json:"recordId,omitempty"`
	Error    *string             `json:"error,omitempty"`
}

// ExportDownloadResponse carries a signed, time-limited download URL.
type ExportDownloadResponse struct {
	URL       string `json:"url"`
	ExpiresAt string `json:"expiresAt"`
}

// AutoFormatRequest asks the formatter to tidy free-form description text.
type AutoFormatRequest struct {
	Text string `json:"text"`
}

// AutoFormatResponse returns the formatted text; Fallback is true when the
// formatter was unreachable and the original text is echoed back.
type AutoFormatResponse struct {
	Text     string `json:"text"`
	Fallback bool   `json:"fallback"`
}
