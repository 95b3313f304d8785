package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fieldserve/evidence-api/internal/dto"
	appErrors "github.com/fieldserve/evidence-api/pkg/errors"
	"github.com/fieldserve/evidence-api/pkg/response"
)

type canvasService interface {
	Open(ctx context.Context, req dto.CanvasOpenRequest) (*dto.CanvasSessionResponse, error)
	Get(sessionID string) (*dto.CanvasSessionResponse, error)
	Append(sessionID string, req dto.CanvasObjectRequest) (*dto.CanvasSessionResponse, error)
	Undo(sessionID string) (*dto.CanvasSessionResponse, error)
	Clear(sessionID string) (*dto.CanvasSessionResponse, error)
	Save(ctx context.Context, sessionID string) (*dto.CanvasSaveResponse, error)
	Discard(sessionID string) error
}

// CanvasHandler exposes the annotation session endpoints.
type CanvasHandler struct {
	service canvasService
}

// NewCanvasHandler builds a new handler.
func NewCanvasHandler(service canvasService) *CanvasHandler {
	return &CanvasHandler{service: service}
}

// Open godoc
// @Summary Open an annotation session for an evidence image
// @Tags Canvas
// @Accept json
// @Produce json
// @Param payload body dto.CanvasOpenRequest true "Open payload"
// @Success 201 {object} response.Envelope
// @Router /canvas/sessions [post]
func (h *CanvasHandler) Open(c *gin.Context) {
	var req dto.CanvasOpenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid session payload"))
		return
	}
	if req.EvidenceID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "evidenceId required"))
		return
	}
	session, err := h.service.Open(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// Get godoc
// @Summary Get annotation session state
// @Tags Canvas
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /canvas/sessions/{id} [get]
func (h *CanvasHandler) Get(c *gin.Context) {
	session, err := h.service.Get(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Append godoc
// @Summary Append one annotation object
// @Tags Canvas
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body dto.CanvasObjectRequest true "Annotation object"
// @Success 200 {object} response.Envelope
// @Router /canvas/sessions/{id}/objects [post]
func (h *CanvasHandler) Append(c *gin.Context) {
	var req dto.CanvasObjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid annotation payload"))
		return
	}
	session, err := h.service.Append(c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Undo godoc
// @Summary Remove the most recent annotation object
// @Tags Canvas
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /canvas/sessions/{id}/undo [post]
func (h *CanvasHandler) Undo(c *gin.Context) {
	session, err := h.service.Undo(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Clear godoc
// @Summary Remove all annotation objects
// @Tags Canvas
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /canvas/sessions/{id}/clear [post]
func (h *CanvasHandler) Clear(c *gin.Context) {
	session, err := h.service.Clear(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Save godoc
// @Summary Flatten annotations into the evidence image and persist it
// @Tags Canvas
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /canvas/sessions/{id}/save [post]
func (h *CanvasHandler) Save(c *gin.Context) {
	saved, err := h.service.Save(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, saved, nil)
}

// Discard godoc
// @Summary Discard the session leaving the evidence untouched
// @Tags Canvas
// @Produce json
// @Param id path string true "Session ID"
// @Success 204 "No Content"
// @Router /canvas/sessions/{id} [delete]
func (h *CanvasHandler) Discard(c *gin.Context) {
	if err := h.service.Discard(c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
