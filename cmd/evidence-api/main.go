package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/fieldserve/evidence-api/api/swagger"
	"github.com/fieldserve/evidence-api/internal/handler"
	"github.com/fieldserve/evidence-api/internal/middleware"
	"github.com/fieldserve/evidence-api/internal/repository"
	"github.com/fieldserve/evidence-api/internal/service"
	"github.com/fieldserve/evidence-api/pkg/cache"
	"github.com/fieldserve/evidence-api/pkg/compose"
	"github.com/fieldserve/evidence-api/pkg/config"
	"github.com/fieldserve/evidence-api/pkg/database"
	"github.com/fieldserve/evidence-api/pkg/jobs"
	"github.com/fieldserve/evidence-api/pkg/logger"
	"github.com/fieldserve/evidence-api/pkg/media"
	corsmiddleware "github.com/fieldserve/evidence-api/pkg/middleware/cors"
	reqidmiddleware "github.com/fieldserve/evidence-api/pkg/middleware/requestid"
	"github.com/fieldserve/evidence-api/pkg/notify"
	"github.com/fieldserve/evidence-api/pkg/storage"
	"github.com/fieldserve/evidence-api/pkg/textfmt"
)

// @title Evidence Composition API
// @version 1.0.0
// @description Evidence ordering, annotation and export pipeline for field-service tickets
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, defaults and report notifications disabled", "error", err)
		redisClient = nil
	}

	mediaStore, err := storage.NewLocalStorage(cfg.Media.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("media storage init failed", "error", err)
	}
	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("export storage init failed", "error", err)
	}

	fetcher := media.NewFetcher(mediaStore, cfg.Media.BaseURL, cfg.Media.FetchTimeout, logr)
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	formatter := textfmt.NewClient(cfg.Formatter.BaseURL, cfg.Formatter.Timeout)

	evidenceRepo := repository.NewEvidenceRepository(db)
	jobsRepo := repository.NewExportJobRepository(db)
	recordsRepo := repository.NewExportRecordRepository(db)

	metrics := service.NewMetricsService()

	var events *notify.RedisNotifier
	var notifier notify.Notifier
	if redisClient != nil {
		events = notify.NewRedisNotifier(redisClient, logr)
		notifier = events
	}

	evidenceSvc := service.NewEvidenceService(evidenceRepo, fetcher, logr)
	canvasSvc := service.NewCanvasService(evidenceRepo, fetcher, mediaStore, logr, service.CanvasServiceConfig{
		ImageLoadTimeout: cfg.Canvas.ImageLoadTimeout,
		MaxSessions:      cfg.Canvas.MaxSessions,
		Metrics:          metrics,
	})
	selectionSvc := service.NewSelectionService(evidenceRepo, formatter, repository.NewCacheRepository(redisClient, logr), logr)
	pdfComposer := compose.NewPDFComposer(compose.PDFOptions{
		MaxImageWidthMM:  cfg.Exports.MaxImageWidthMM,
		MaxImageHeightMM: cfg.Exports.MaxImageHeightMM,
	})
	composerSvc := service.NewComposerService(selectionSvc, fetcher, canvasSvc, pdfComposer, logr)

	var worker *service.ExportWorker
	queue := jobs.NewQueue("exports", func(ctx context.Context, job jobs.Job) error {
		return worker.Handle(ctx, job)
	}, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		Logger:     logr,
	})

	exportSvc := service.NewExportService(jobsRepo, recordsRepo, exportStore, queue, signer, notifier, logr, service.ExportServiceConfig{
		DownloadPrefix: cfg.APIPrefix + "/exports/download",
	})
	worker = service.NewExportWorker(jobsRepo, exportSvc, composerSvc, cfg.Exports.WorkerRetries, metrics, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	queue.Start(ctx)
	defer queue.Stop()
	exportSvc.RecoverPendingJobs(ctx)
	exportSvc.StartJanitor(ctx)

	evidenceHandler := handler.NewEvidenceHandler(evidenceSvc)
	canvasHandler := handler.NewCanvasHandler(canvasSvc)
	exportHandler := handler.NewExportHandler(exportSvc, selectionSvc, nil)
	if events != nil {
		exportHandler = handler.NewExportHandler(exportSvc, selectionSvc, events)
	}
	metricsHandler := handler.NewMetricsHandler(metrics)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		api.GET("/tickets/:ticketId/evidence", evidenceHandler.List)
		api.POST("/tickets/:ticketId/evidence", evidenceHandler.Create)
		api.PUT("/tickets/:ticketId/evidence/order", evidenceHandler.Reorder)
		api.GET("/evidence/:id", evidenceHandler.Get)
		api.PATCH("/evidence/:id", evidenceHandler.Update)
		api.POST("/evidence/:id/rotate", evidenceHandler.Rotate)
		api.PUT("/evidence/:id/sync", evidenceHandler.SyncState)
		api.DELETE("/evidence/:id", evidenceHandler.Delete)

		api.POST("/canvas/sessions", canvasHandler.Open)
		api.GET("/canvas/sessions/:id", canvasHandler.Get)
		api.POST("/canvas/sessions/:id/objects", canvasHandler.Append)
		api.POST("/canvas/sessions/:id/undo", canvasHandler.Undo)
		api.POST("/canvas/sessions/:id/clear", canvasHandler.Clear)
		api.POST("/canvas/sessions/:id/save", canvasHandler.Save)
		api.DELETE("/canvas/sessions/:id", canvasHandler.Discard)

		api.POST("/tickets/:ticketId/exports", exportHandler.CreateJob)
		api.GET("/tickets/:ticketId/exports", exportHandler.ListRecords)
		api.GET("/tickets/:ticketId/exports/events", exportHandler.Events)
		api.GET("/exports/jobs/:id", exportHandler.Status)
		api.DELETE("/exports/jobs/:id", exportHandler.Abandon)
		api.GET("/exports/records/:id/download", exportHandler.DownloadURL)
		api.DELETE("/exports/records/:id", exportHandler.DeleteRecord)
		api.GET("/exports/download/:token", exportHandler.Download)
		api.POST("/exports/format", exportHandler.AutoFormat)
		api.GET("/exports/defaults", exportHandler.Defaults)
		api.PUT("/exports/defaults", exportHandler.SaveDefaults)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
