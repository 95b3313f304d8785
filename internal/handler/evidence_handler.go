package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fieldserve/evidence-api/internal/dto"
	"github.com/fieldserve/evidence-api/internal/models"
	appErrors "github.com/fieldserve/evidence-api/pkg/errors"
	"github.com/fieldserve/evidence-api/pkg/response"
)

type evidenceService interface {
	List(ctx context.Context, ticketID string, filter models.EvidenceFilter) (*dto.EvidenceListResponse, error)
	Get(ctx context.Context, id string) (*dto.EvidenceResponse, error)
	Create(ctx context.Context, ev *models.Evidence) (*dto.EvidenceResponse, error)
	Reorder(ctx context.Context, ticketID string, req dto.ReorderRequest) (*dto.EvidenceListResponse, error)
	Rotate(ctx context.Context, id string, req dto.RotateRequest) (*dto.EvidenceResponse, error)
	UpdateDetails(ctx context.Context, id string, req dto.EvidenceUpdateRequest) (*dto.EvidenceResponse, error)
	SetSyncState(ctx context.Context, id string, state models.SyncState) error
	Delete(ctx context.Context, id string) error
}

// EvidenceHandler exposes evidence listing, ordering and rotation endpoints.
type EvidenceHandler struct {
	service evidenceService
}

// NewEvidenceHandler builds a new handler.
func NewEvidenceHandler(service evidenceService) *EvidenceHandler {
	return &EvidenceHandler{service: service}
}

// List godoc
// @Summary List evidence for a ticket in display order
// @Tags Evidence
// @Produce json
// @Param ticketId path string true "Ticket ID"
// @Param mime query string false "MIME type prefix filter"
// @Param from query string false "Created-at lower bound (RFC3339)"
// @Param to query string false "Created-at upper bound (RFC3339)"
// @Success 200 {object} response.Envelope
// @Router /tickets/{ticketId}/evidence [get]
func (h *EvidenceHandler) List(c *gin.Context) {
	filter := models.EvidenceFilter{MimePrefix: c.Query("mime")}
	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must be RFC3339"))
			return
		}
		filter.CreatedFrom = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "to must be RFC3339"))
			return
		}
		filter.CreatedTo = &to
	}
	listing, err := h.service.List(c.Request.Context(), c.Param("ticketId"), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, listing, nil)
}

// Create godoc
// @Summary Register an uploaded asset on a ticket
// @Tags Evidence
// @Accept json
// @Produce json
// @Param ticketId path string true "Ticket ID"
// @Param payload body dto.CreateEvidenceRequest true "Evidence payload"
// @Success 201 {object} response.Envelope
// @Router /tickets/{ticketId}/evidence [post]
func (h *EvidenceHandler) Create(c *gin.Context) {
	var req dto.CreateEvidenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid evidence payload"))
		return
	}
	if req.ResourcePath == "" || req.MimeType == "" || req.FileName == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "resourcePath, mimeType and fileName are required"))
		return
	}
	item, err := h.service.Create(c.Request.Context(), &models.Evidence{
		TicketID:     c.Param("ticketId"),
		ResourcePath: req.ResourcePath,
		MimeType:     req.MimeType,
		FileName:     req.FileName,
		DisplayName:  req.DisplayName,
		Description:  req.Description,
		UploadedBy:   actorFromContext(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Get godoc
// @Summary Get one evidence item
// @Tags Evidence
// @Produce json
// @Param id path string true "Evidence ID"
// @Success 200 {object} response.Envelope
// @Router /evidence/{id} [get]
func (h *EvidenceHandler) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Reorder godoc
// @Summary Move one evidence item to a new position
// @Tags Evidence
// @Accept json
// @Produce json
// @Param ticketId path string true "Ticket ID"
// @Param payload body dto.ReorderRequest true "Reorder payload"
// @Success 200 {object} response.Envelope
// @Router /tickets/{ticketId}/evidence/order [put]
func (h *EvidenceHandler) Reorder(c *gin.Context) {
	var req dto.ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reorder payload"))
		return
	}
	if req.EvidenceID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "evidenceId required"))
		return
	}
	listing, err := h.service.Reorder(c.Request.Context(), c.Param("ticketId"), req)
	if err != nil {
		// A failed write still carries the reconciled listing so the client
		// can redraw from authoritative state.
		if appErr := appErrors.FromError(err); listing != nil && appErr.Code == appErrors.ErrOrderConflict.Code {
			c.Header("Cache-Control", "no-store")
			c.JSON(appErr.Status, response.Envelope{Data: listing, Error: appErr})
			return
		}
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, listing, nil)
}

// Rotate godoc
// @Summary Rotate an image clockwise
// @Tags Evidence
// @Accept json
// @Produce json
// @Param id path string true "Evidence ID"
// @Param payload body dto.RotateRequest true "Rotation payload"
// @Success 200 {object} response.Envelope
// @Router /evidence/{id}/rotate [post]
func (h *EvidenceHandler) Rotate(c *gin.Context) {
	var req dto.RotateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rotate payload"))
		return
	}
	item, err := h.service.Rotate(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Update godoc
// @Summary Update evidence display name or description
// @Tags Evidence
// @Accept json
// @Produce json
// @Param id path string true "Evidence ID"
// @Param payload body dto.EvidenceUpdateRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Router /evidence/{id} [patch]
func (h *EvidenceHandler) Update(c *gin.Context) {
	var req dto.EvidenceUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid update payload"))
		return
	}
	item, err := h.service.UpdateDetails(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// SyncState godoc
// @Summary Record the outcome of a backing-store sync attempt
// @Tags Evidence
// @Accept json
// @Produce json
// @Param id path string true "Evidence ID"
// @Param payload body dto.SyncStateRequest true "Sync state payload"
// @Success 204 "No Content"
// @Router /evidence/{id}/sync [put]
func (h *EvidenceHandler) SyncState(c *gin.Context) {
	var req dto.SyncStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid sync payload"))
		return
	}
	switch req.State {
	case models.SyncStatePending, models.SyncStateSynced, models.SyncStateFailed:
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown sync state"))
		return
	}
	if err := h.service.SetSyncState(c.Request.Context(), c.Param("id"), req.State); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Delete godoc
// @Summary Delete one evidence item
// @Tags Evidence
// @Produce json
// @Param id path string true "Evidence ID"
// @Success 204 "No Content"
// @Router /evidence/{id} [delete]
func (h *EvidenceHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
