package dto

import "github.com/fieldserve/evidence-api/pkg/imaging"

// CanvasOpenRequest starts an annotation session for an evidence image.
type CanvasOpenRequest struct {
	EvidenceID string `json:"evidenceId"`
}

// CanvasSessionResponse describes an active annotation session.
type CanvasSessionResponse struct {
	SessionID   string `json:"sessionId"`
	EvidenceID  string `json:"evidenceId"`
	State       string `json:"state"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ObjectCount int    `json:"objectCount"`
	CanUndo     bool   `json:"canUndo"`
}

// CanvasObjectRequest appends one annotation object to a session.
type CanvasObjectRequest struct {
	Kind   imaging.ObjectKind `json:"kind"`
	Color  string             `json:"color,omitempty"`
	Width  int                `json:"width,omitempty"`
	Points []imaging.Point    `json:"points,omitempty"`
	Shape  imaging.ShapeKind  `json:"shape,omitempty"`
	Text   string             `json:"text,omitempty"`
	Pos    *imaging.Point     `json:"pos,omitempty"`
}

// CanvasSaveResponse reports the persisted flattened image.
type CanvasSaveResponse struct {
	EvidenceID   string `json:"evidenceId"`
	ResourcePath string `json:"resourcePath"`
	SizeBytes    int64  `json:"sizeBytes"`
}
