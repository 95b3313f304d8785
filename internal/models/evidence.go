package models

import "time"

// SyncState reflects whether the backing store holds the authoritative copy of an asset.
type SyncState string

const (
	SyncStatePending SyncState = "pending"
	SyncStateSynced  SyncState = "synced"
	SyncStateFailed  SyncState = "failed"
)

// Evidence is one uploaded media asset attached to a service ticket.
//
// DisplayOrder values for a given ticket form a contiguous permutation of 1..N;
// the ordering service re-numbers the sequence after every completed reorder.
// ManualRotation is the user-applied rotation in degrees (0/90/180/270) and is
// authoritative; any in-memory orientation transform derived from it is a cache.
type Evidence struct {
	ID             string    `db:"id" json:"id"`
	TicketID       string    `db:"ticket_id" json:"ticketId"`
	ResourcePath   string    `db:"resource_path" json:"resourcePath"`
	MimeType       string    `db:"mime_type" json:"mimeType"`
	FileName       string    `db:"file_name" json:"fileName"`
	DisplayName    string    `db:"display_name" json:"displayName"`
	Description    string    `db:"description" json:"description"`
	DisplayOrder   int       `db:"display_order" json:"displayOrder"`
	ManualRotation int       `db:"manual_rotation" json:"manualRotation"`
	SyncState      SyncState `db:"sync_state" json:"syncState"`
	UploadedBy     string    `db:"uploaded_by" json:"uploadedBy"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

// IsImage reports whether the asset can be opened on the annotation canvas.
func (e Evidence) IsImage() bool {
	switch e.MimeType {
	case "image/jpeg", "image/png", "image/gif", "image/webp", "image/tiff", "image/bmp":
		return true
	default:
		return false
	}
}

// IsVideo reports whether the asset is represented by a text summary in exports.
func (e Evidence) IsVideo() bool {
	return len(e.MimeType) > 6 && e.MimeType[:6] == "video/"
}

// EvidenceFilter narrows evidence listings.
type EvidenceFilter struct {
	MimePrefix  string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}
