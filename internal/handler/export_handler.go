package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fieldserve/evidence-api/internal/dto"
	"github.com/fieldserve/evidence-api/internal/models"
	"github.com/fieldserve/evidence-api/internal/service"
	appErrors "github.com/fieldserve/evidence-api/pkg/errors"
	"github.com/fieldserve/evidence-api/pkg/notify"
	"github.com/fieldserve/evidence-api/pkg/response"
)

type exportService interface {
	CreateJob(ctx context.Context, ticketID string, req dto.ExportRequest, actorID string) (*dto.ExportJobResponse, error)
	GetStatus(ctx context.Context, id string) (*dto.ExportStatusResponse, error)
	Abandon(ctx context.Context, id string) error
	ListRecords(ctx context.Context, ticketID string) ([]models.ExportRecord, error)
	Download(ctx context.Context, recordID string) (*dto.ExportDownloadResponse, error)
	ResolveDownload(ctx context.Context, token string) (*service.ExportDownload, error)
	DeleteRecord(ctx context.Context, recordID string) error
}

type exportSelectionService interface {
	AutoFormat(ctx context.Context, text string) dto.AutoFormatResponse
	SaveDefaults(ctx context.Context, userID string, meta models.ReportMetadata)
	Defaults(ctx context.Context, userID string) models.ReportMetadata
}

type eventSource interface {
	Subscribe(ctx context.Context, ticketID string) (<-chan notify.Event, error)
}

// ExportHandler exposes export job, record and download endpoints.
type ExportHandler struct {
	service   exportService
	selection exportSelectionService
	events    eventSource
}

// NewExportHandler builds a new handler. The event source may be nil when
// pub/sub is not configured.
func NewExportHandler(service exportService, selection exportSelectionService, events eventSource) *ExportHandler {
	return &ExportHandler{service: service, selection: selection, events: events}
}

// CreateJob godoc
// @Summary Queue an export for a ticket
// @Tags Exports
// @Accept json
// @Produce json
// @Param ticketId path string true "Ticket ID"
// @Param payload body dto.ExportRequest true "Export payload"
// @Success 202 {object} response.Envelope
// @Router /tickets/{ticketId}/exports [post]
func (h *ExportHandler) CreateJob(c *gin.Context) {
	var req dto.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export payload"))
		return
	}
	job, err := h.service.CreateJob(c.Request.Context(), c.Param("ticketId"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// Status godoc
// @Summary Get export job status
// @Tags Exports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /exports/jobs/{id} [get]
func (h *ExportHandler) Status(c *gin.Context) {
	status, err := h.service.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Abandon godoc
// @Summary Abandon a queued or running export job
// @Tags Exports
// @Produce json
// @Param id path string true "Job ID"
// @Success 204 "No Content"
// @Router /exports/jobs/{id} [delete]
func (h *ExportHandler) Abandon(c *gin.Context) {
	if err := h.service.Abandon(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListRecords godoc
// @Summary List export records for a ticket
// @Tags Exports
// @Produce json
// @Param ticketId path string true "Ticket ID"
// @Success 200 {object} response.Envelope
// @Router /tickets/{ticketId}/exports [get]
func (h *ExportHandler) ListRecords(c *gin.Context) {
	records, err := h.service.ListRecords(c.Request.Context(), c.Param("ticketId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// DownloadURL godoc
// @Summary Issue a signed, time-limited download URL for a record
// @Tags Exports
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} response.Envelope
// @Router /exports/records/{id}/download [get]
func (h *ExportHandler) DownloadURL(c *gin.Context) {
	link, err := h.service.Download(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// Download godoc
// @Summary Stream an export payload using a signed token
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Router /exports/download/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	dl, err := h.service.ResolveDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer dl.File.Close() //nolint:errcheck

	info, err := dl.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "stat export payload"))
		return
	}
	c.DataFromReader(http.StatusOK, info.Size(), contentTypeFor(dl.Kind), dl.File, map[string]string{
		"Content-Disposition": `attachment; filename="` + dl.Filename + `"`,
	})
}

// DeleteRecord godoc
// @Summary Delete an export record and its payload
// @Tags Exports
// @Produce json
// @Param id path string true "Record ID"
// @Success 204 "No Content"
// @Router /exports/records/{id} [delete]
func (h *ExportHandler) DeleteRecord(c *gin.Context) {
	if err := h.service.DeleteRecord(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AutoFormat godoc
// @Summary Tidy free-form description text
// @Tags Exports
// @Accept json
// @Produce json
// @Param payload body dto.AutoFormatRequest true "Text payload"
// @Success 200 {object} response.Envelope
// @Router /exports/format [post]
func (h *ExportHandler) AutoFormat(c *gin.Context) {
	var req dto.AutoFormatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid format payload"))
		return
	}
	result := h.selection.AutoFormat(c.Request.Context(), req.Text)
	response.JSON(c, http.StatusOK, result, nil)
}

// Defaults godoc
// @Summary Get the caller's last used report metadata
// @Tags Exports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /exports/defaults [get]
func (h *ExportHandler) Defaults(c *gin.Context) {
	meta := h.selection.Defaults(c.Request.Context(), actorFromContext(c))
	response.JSON(c, http.StatusOK, meta, nil)
}

// SaveDefaults godoc
// @Summary Remember the caller's report metadata for future sessions
// @Tags Exports
// @Accept json
// @Produce json
// @Param payload body models.ReportMetadata true "Metadata payload"
// @Success 204 "No Content"
// @Router /exports/defaults [put]
func (h *ExportHandler) SaveDefaults(c *gin.Context) {
	var meta models.ReportMetadata
	if err := c.ShouldBindJSON(&meta); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid metadata payload"))
		return
	}
	h.selection.SaveDefaults(c.Request.Context(), actorFromContext(c), meta)
	response.NoContent(c)
}

// Events godoc
// @Summary Stream export record updates for a ticket as server-sent events
// @Tags Exports
// @Produce text/event-stream
// @Param ticketId path string true "Ticket ID"
// @Success 200 {string} string "event stream"
// @Router /tickets/{ticketId}/exports/events [get]
func (h *ExportHandler) Events(c *gin.Context) {
	if h.events == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "event stream not configured"))
		return
	}
	ch, err := h.events.Subscribe(c.Request.Context(), c.Param("ticketId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Stream(func(w io.Writer) bool {
		event, ok := <-ch
		if !ok {
			return false
		}
		c.SSEvent("reports", event)
		return true
	})
}

func contentTypeFor(kind models.ExportKind) string {
	switch kind {
	case models.ExportKindPDF:
		return "application/pdf"
	case models.ExportKindWord:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case models.ExportKindZIP:
		return "application/zip"
	default:
		return "application/octet-stream"
	}
}
