package dto

import "github.com/fieldserve/evidence-api/internal/models"

// CreateEvidenceRequest registers an uploaded asset on a ticket.
type CreateEvidenceRequest struct {
	ResourcePath string `json:"resourcePath"`
	MimeType     string `json:"mimeType"`
	FileName     string `json:"fileName"`
	DisplayName  string `json:"displayName,omitempty"`
	Description  string `json:"description,omitempty"`
}

// SyncStateRequest records the outcome of a backing-store sync attempt.
type SyncStateRequest struct {
	State models.SyncState `json:"state"`
}

// ReorderRequest moves one evidence item to a new 1-based position.
type ReorderRequest struct {
	EvidenceID string `json:"evidenceId"`
	Position   int    `json:"position"`
}

// EvidenceUpdateRequest captures PATCH payloads; nil fields are untouched.
type EvidenceUpdateRequest struct {
	DisplayName *string `json:"displayName,omitempty"`
	Description *string `json:"description,omitempty"`
}

// RotateRequest applies one clockwise quarter-turn step when Degrees is zero,
// otherwise sets the rotation to the given multiple of 90.
type RotateRequest struct {
	Degrees *int `json:"degrees,omitempty"`
}

// EvidenceResponse augments the stored row with the display transform derived
// from EXIF orientation and manual rotation.
type EvidenceResponse struct {
	models.Evidence
	Transform string `json:"transform"`
}

// EvidenceListResponse is the ordered listing for one ticket.
type EvidenceListResponse struct {
	TicketID string             `json:"ticketId"`
	Items    []EvidenceResponse `json:"items"`
}
