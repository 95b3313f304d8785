package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/fieldserve/evidence-api/internal/dto"
	"github.com/fieldserve/evidence-api/internal/models"
	"github.com/fieldserve/evidence-api/internal/repository"
	appErrors "github.com/fieldserve/evidence-api/pkg/errors"
	"github.com/fieldserve/evidence-api/pkg/jobs"
	"github.com/fieldserve/evidence-api/pkg/notify"
)

type exportJobStore interface {
	Create(ctx context.Context, job *models.ExportJob) error
	GetByID(ctx context.Context, id string) (*models.ExportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error)
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error)
}

type exportRecordStore interface {
	Create(ctx context.Context, rec *models.ExportRecord) error
	GetByID(ctx context.Context, id string) (*models.ExportRecord, error)
	ListByTicket(ctx context.Context, ticketID string) ([]models.ExportRecord, error)
	Delete(ctx context.Context, id string) error
}

type payloadStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type downloadSigner interface {
	Generate(recordID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (recordID, relPath string, expiresAt time.Time, err error)
}

type documentGenerator interface {
	Generate(ctx context.Context, job *models.ExportJob) (*ComposeResult, error)
}

// ExportDownload aggregates resolved download data.
type ExportDownload struct {
	File      *os.File
	Filename  string
	Kind      models.ExportKind
	ExpiresAt time.Time
}

// ExportServiceConfig governs job recovery and abandonment.
type ExportServiceConfig struct {
	StaleAfter      time.Duration
	JanitorInterval time.Duration
	DownloadPrefix  string
}

// ExportService orchestrates export job lifecycle and the resulting records.
//
// Records are persisted atomically: payload first, row second, and the payload
// is removed again when the row insert fails. A job abandoned mid-run never
// produces a record; the worker re-checks status right before persisting.
type ExportService struct {
	jobsRepo    exportJobStore
	recordsRepo exportRecordStore
	storage     payloadStorage
	queue       jobDispatcher
	signer      downloadSigner
	notifier    notify.Notifier
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         ExportServiceConfig
}

// NewExportService constructs the service.
func NewExportService(jobsRepo exportJobStore, recordsRepo exportRecordStore, storage payloadStorage, queue jobDispatcher, signer downloadSigner, notifier notify.Notifier, logger *zap.Logger, cfg ExportServiceConfig) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 2 * time.Hour
	}
	if cfg.DownloadPrefix == "" {
		cfg.DownloadPrefix = "/api/v1/exports/download"
	}
	validate := validator.New()
	_ = validate.RegisterValidation("export_kind", func(fl validator.FieldLevel) bool {
		switch models.ExportKind(fl.Field().String()) {
		case models.ExportKindPDF, models.ExportKindWord, models.ExportKindZIP:
			return true
		default:
			return false
		}
	})
	return &ExportService{
		jobsRepo:    jobsRepo,
		recordsRepo: recordsRepo,
		storage:     storage,
		queue:       queue,
		signer:      signer,
		notifier:    notifier,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
	}
}

// CreateJob validates the request, persists the job, and enqueues processing.
func (s *ExportService) CreateJob(ctx context.Context, ticketID string, req dto.ExportRequest, actorID string) (*dto.ExportJobResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload")
	}
	if ticketID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "ticketId required")
	}

	job := &models.ExportJob{
		TicketID:    ticketID,
		Params:      models.ExportJobParams{Kind: req.Kind, EvidenceIDs: req.EvidenceIDs, Metadata: req.Metadata},
		Status:      models.ExportStatusQueued,
		RequestedBy: actorID,
	}
	if err := s.jobsRepo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Params.Kind)}); err != nil {
		status := models.ExportStatusFailed
		msg := "failed to enqueue job"
		progress := 100
		now := time.Now().UTC()
		_ = s.jobsRepo.Update(ctx, job.ID, repository.UpdateExportJobParams{
			Status:       &status,
			Progress:     &progress,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		})
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}
	return &dto.ExportJobResponse{ID: job.ID, Status: job.Status, Progress: job.Progress}, nil
}

// GetStatus exposes job metadata to clients.
func (s *ExportService) GetStatus(ctx context.Context, id string) (*dto.ExportStatusResponse, error) {
	job, err := s.jobsRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	resp := &dto.ExportStatusResponse{
		ID:       job.ID,
		Status:   job.Status,
		Progress: job.Progress,
		RecordID: job.RecordID,
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		resp.Error = job.ErrorMessage
	}
	return resp, nil
}

// Abandon marks a still-running job so its result is never persisted. The
// client calls this when the progress dialog is dismissed.
func (s *ExportService) Abandon(ctx context.Context, id string) error {
	job, err := s.jobsRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	switch job.Status {
	case models.ExportStatusQueued, models.ExportStatusProcessing:
	default:
		return appErrors.Clone(appErrors.ErrConflict, "job already finished")
	}
	status := models.ExportStatusAbandoned
	now := time.Now().UTC()
	if err := s.jobsRepo.Update(ctx, id, repository.UpdateExportJobParams{Status: &status, FinishedAt: &now}); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to abandon export job")
	}
	return nil
}

// Persist stores a finished compose result as an export record. Payload write
// comes first; a failed row insert removes the payload again so storage and
// records never drift.
func (s *ExportService) Persist(ctx context.Context, job *models.ExportJob, result *ComposeResult) (*models.ExportRecord, error) {
	rec := &models.ExportRecord{
		TicketID:    job.TicketID,
		Kind:        job.Params.Kind,
		FileName:    result.FileName,
		SizeBytes:   int64(len(result.Data)),
		Generator:   job.RequestedBy,
		Description: job.Params.Metadata.Description,
		Context:     result.Context,
	}
	relPath := fmt.Sprintf("exports/%s/%s_%s", job.TicketID, job.ID, result.FileName)
	stored, err := s.storage.Save(relPath, result.Data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorageWrite.Code, appErrors.ErrStorageWrite.Status, "failed to store export payload")
	}
	rec.PayloadPath = stored

	if err := s.recordsRepo.Create(ctx, rec); err != nil {
		if delErr := s.storage.Delete(stored); delErr != nil {
			s.logger.Sugar().Warnw("orphaned export payload after failed record insert", "path", stored, "error", delErr)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export record")
	}

	if s.notifier != nil {
		_ = s.notifier.ReportsUpdated(ctx, notify.Event{
			TicketID:  rec.TicketID,
			RecordID:  rec.ID,
			Kind:      string(rec.Kind),
			CreatedAt: rec.CreatedAt,
		})
	}
	return rec, nil
}

// ListRecords returns a ticket's export records, newest first.
func (s *ExportService) ListRecords(ctx context.Context, ticketID string) ([]models.ExportRecord, error) {
	records, err := s.recordsRepo.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list export records")
	}
	return records, nil
}

// Download issues a signed, time-limited URL for a record's payload.
func (s *ExportService) Download(ctx context.Context, recordID string) (*dto.ExportDownloadResponse, error) {
	rec, err := s.recordsRepo.GetByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export record")
	}
	token, expiresAt, err := s.signer.Generate(rec.ID, rec.PayloadPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download")
	}
	return &dto.ExportDownloadResponse{
		URL:       s.cfg.DownloadPrefix + "/" + token,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	}, nil
}

// ResolveDownload validates a token and opens the stored payload.
func (s *ExportService) ResolveDownload(ctx context.Context, token string) (*ExportDownload, error) {
	recordID, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid or expired download token")
	}
	rec, err := s.recordsRepo.GetByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export record")
	}
	if rec.PayloadPath != relPath {
		return nil, appErrors.Clone(appErrors.ErrValidation, "token mismatch")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export payload")
	}
	return &ExportDownload{
		File:      file,
		Filename:  rec.FileName,
		Kind:      rec.Kind,
		ExpiresAt: expiresAt,
	}, nil
}

// DeleteRecord removes the record and its payload. Deletion is immediate and
// permanent.
func (s *ExportService) DeleteRecord(ctx context.Context, recordID string) error {
	rec, err := s.recordsRepo.GetByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export record")
	}
	if err := s.recordsRepo.Delete(ctx, recordID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete export record")
	}
	if err := s.storage.Delete(rec.PayloadPath); err != nil {
		s.logger.Sugar().Warnw("failed to delete export payload", "record_id", recordID, "error", err)
	}
	return nil
}

// RecoverPendingJobs replays queued jobs (e.g. after process restart).
func (s *ExportService) RecoverPendingJobs(ctx context.Context) {
	pending, err := s.jobsRepo.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Sugar().Warnw("failed to recover queued export jobs", "error", err)
		return
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Params.Kind)}); err != nil {
			s.logger.Sugar().Warnw("failed to requeue pending job", "job_id", job.ID, "error", err)
		}
	}
}

// StartJanitor boots a goroutine that marks stuck jobs abandoned periodically.
func (s *ExportService) StartJanitor(ctx context.Context) {
	if s.cfg.JanitorInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.JanitorInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.abandonStale(ctx)
			}
		}
	}()
}

func (s *ExportService) abandonStale(ctx context.Context) {
	cutoff := time.Now().Add(-s.cfg.StaleAfter)
	stale, err := s.jobsRepo.ListStale(ctx, cutoff, 100)
	if err != nil {
		s.logger.Sugar().Warnw("stale job listing failed", "error", err)
		return
	}
	for _, job := range stale {
		status := models.ExportStatusAbandoned
		now := time.Now().UTC()
		if err := s.jobsRepo.Update(ctx, job.ID, repository.UpdateExportJobParams{Status: &status, FinishedAt: &now}); err != nil {
			s.logger.Sugar().Warnw("failed to abandon stale job", "job_id", job.ID, "error", err)
		}
	}
}

// ExportWorker bridges queue jobs to the composer.
type ExportWorker struct {
	jobsRepo   exportJobStore
	exports    *ExportService
	composer   documentGenerator
	metrics    *MetricsService
	logger     *zap.Logger
	maxRetries int
}

// NewExportWorker constructs a worker. metrics may be nil.
func NewExportWorker(jobsRepo exportJobStore, exports *ExportService, composer documentGenerator, maxRetries int, metrics *MetricsService, logger *zap.Logger) *ExportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &ExportWorker{
		jobsRepo:   jobsRepo,
		exports:    exports,
		composer:   composer,
		metrics:    metrics,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

// Handle processes a queue job.
func (w *ExportWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.jobsRepo.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	if record.Status == models.ExportStatusAbandoned {
		w.logger.Sugar().Infow("skipping abandoned export job", "job_id", job.ID)
		return nil
	}

	processing := models.ExportStatusProcessing
	progress := 10
	if err := w.jobsRepo.Update(ctx, job.ID, repository.UpdateExportJobParams{
		Status:   &processing,
		Progress: &progress,
	}); err != nil {
		return err
	}

	started := time.Now()
	result, err := w.composer.Generate(ctx, record)
	if err != nil {
		w.markFailure(ctx, job, err)
		w.observe(record, models.ExportStatusFailed, started)
		return err
	}

	// the dialog may have been dismissed while rendering; drop the result
	// instead of persisting it
	latest, err := w.jobsRepo.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	if latest.Status == models.ExportStatusAbandoned {
		w.logger.Sugar().Infow("discarding result of abandoned export job", "job_id", job.ID)
		w.observe(record, models.ExportStatusAbandoned, started)
		return nil
	}

	rec, err := w.exports.Persist(ctx, record, result)
	if err != nil {
		w.markFailure(ctx, job, err)
		w.observe(record, models.ExportStatusFailed, started)
		return err
	}

	finished := models.ExportStatusFinished
	progress = 100
	now := time.Now().UTC()
	clearMsg := ""
	if err := w.jobsRepo.Update(ctx, job.ID, repository.UpdateExportJobParams{
		Status:       &finished,
		Progress:     &progress,
		RecordID:     &rec.ID,
		ErrorMessage: &clearMsg,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Sugar().Warnw("failed to mark job finished", "job_id", job.ID, "error", err)
		return err
	}
	w.observe(record, models.ExportStatusFinished, started)
	return nil
}

func (w *ExportWorker) observe(job *models.ExportJob, status models.ExportStatus, started time.Time) {
	if w.metrics == nil {
		return
	}
	w.metrics.ObserveExportJob(string(job.Params.Kind), string(status), time.Since(started))
}

func (w *ExportWorker) markFailure(ctx context.Context, job jobs.Job, cause error) {
	msg := cause.Error()
	if job.Attempt >= w.maxRetries {
		failed := models.ExportStatusFailed
		progress := 100
		now := time.Now().UTC()
		if err := w.jobsRepo.Update(ctx, job.ID, repository.UpdateExportJobParams{
			Status:       &failed,
			Progress:     &progress,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		}); err != nil {
			w.logger.Sugar().Warnw("failed to mark job failed", "job_id", job.ID, "error", err)
		}
		return
	}
	queued := models.ExportStatusQueued
	reset := 0
	if err := w.jobsRepo.Update(ctx, job.ID, repository.UpdateExportJobParams{
		Status:       &queued,
		Progress:     &reset,
		ErrorMessage: &msg,
	}); err != nil {
		w.logger.Sugar().Warnw("failed to mark job queued", "job_id", job.ID, "error", err)
	}
}
