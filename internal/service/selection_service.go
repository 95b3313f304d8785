package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/fieldserve/evidence-api/internal/dto"
	"github.com/fieldserve/evidence-api/internal/models"
	appErrors "github.com/fieldserve/evidence-api/pkg/errors"
)

type textFormatter interface {
	Format(ctx context.Context, text string) (string, error)
}

type defaultsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

const defaultsKeyPrefix = "export-defaults:"

// SelectionService resolves which evidence enters an export and keeps the
// report metadata helpers: the auto-format pass and per-user defaults.
type SelectionService struct {
	repo      evidenceStore
	formatter textFormatter
	cache     defaultsCache
	logger    *zap.Logger
}

// NewSelectionService constructs the service. formatter and cache may be nil;
// the corresponding features then degrade gracefully.
func NewSelectionService(repo evidenceStore, formatter textFormatter, cache defaultsCache, logger *zap.Logger) *SelectionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SelectionService{repo: repo, formatter: formatter, cache: cache, logger: logger}
}

// Resolve returns the evidence items for an export request in display order.
// An empty id list selects everything on the ticket; explicit ids must all
// belong to the ticket.
func (s *SelectionService) Resolve(ctx context.Context, ticketID string, evidenceIDs []string) ([]models.Evidence, error) {
	if len(evidenceIDs) == 0 {
		items, err := s.repo.ListByTicket(ctx, ticketID, models.EvidenceFilter{})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list evidence")
		}
		return items, nil
	}

	items, err := s.repo.ListByIDs(ctx, evidenceIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve evidence selection")
	}
	if len(items) != len(evidenceIDs) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "selection references unknown evidence")
	}
	for _, ev := range items {
		if ev.TicketID != ticketID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "selection references evidence from another ticket")
		}
	}
	return items, nil
}

// AutoFormat runs description text through the external formatter. The pass is
// best-effort: when the formatter fails or is unconfigured the original text
// comes back with the fallback flag set, never an error.
func (s *SelectionService) AutoFormat(ctx context.Context, text string) dto.AutoFormatResponse {
	if s.formatter == nil {
		return dto.AutoFormatResponse{Text: text, Fallback: true}
	}
	formatted, err := s.formatter.Format(ctx, text)
	if err != nil {
		s.logger.Sugar().Warnw("auto-format failed, keeping original text", "error", err)
		return dto.AutoFormatResponse{Text: text, Fallback: true}
	}
	return dto.AutoFormatResponse{Text: formatted, Fallback: false}
}

// SaveDefaults remembers the last used report metadata for a user. Best-effort
// persistence: a cache failure is logged and ignored.
func (s *SelectionService) SaveDefaults(ctx context.Context, userID string, meta models.ReportMetadata) {
	if s.cache == nil || userID == "" {
		return
	}
	if err := s.cache.Set(ctx, defaultsKeyPrefix+userID, meta, 90*24*time.Hour); err != nil {
		s.logger.Sugar().Warnw("save export defaults failed", "user_id", userID, "error", err)
	}
}

// Defaults loads the remembered metadata for a user, or zero values when none
// exist.
func (s *SelectionService) Defaults(ctx context.Context, userID string) models.ReportMetadata {
	var meta models.ReportMetadata
	if s.cache == nil || userID == "" {
		return meta
	}
	if err := s.cache.Get(ctx, defaultsKeyPrefix+userID, &meta); err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Sugar().Warnw("load export defaults failed", "user_id", userID, "error", err)
		}
		return models.ReportMetadata{}
	}
	return meta
}
