package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/fieldserve/evidence-api/internal/dto"
	"github.com/fieldserve/evidence-api/internal/models"
	"github.com/fieldserve/evidence-api/internal/repository"
	appErrors "github.com/fieldserve/evidence-api/pkg/errors"
	"github.com/fieldserve/evidence-api/pkg/imaging"
)

type evidenceStore interface {
	Create(ctx context.Context, ev *models.Evidence) error
	GetByID(ctx context.Context, id string) (*models.Evidence, error)
	ListByTicket(ctx context.Context, ticketID string, filter models.EvidenceFilter) ([]models.Evidence, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Evidence, error)
	ReplaceOrder(ctx context.Context, ticketID string, order map[string]int) error
	Update(ctx context.Context, id string, params repository.UpdateEvidenceParams) error
	Delete(ctx context.Context, id string) error
}

type mediaFetcher interface {
	Fetch(ctx context.Context, resourcePath string) ([]byte, error)
}

// EvidenceService owns the per-ticket evidence sequence and display metadata.
//
// Reorders are optimistic: the new permutation is computed in memory and
// written in one transaction. When the write fails, the service refetches the
// authoritative order and surfaces a conflict instead of retrying, so the
// caller always ends up consistent with the store.
type EvidenceService struct {
	repo    evidenceStore
	fetcher mediaFetcher
	logger  *zap.Logger

	ticketMu sync.Map // ticketID -> *sync.Mutex

	// orientation tags never change for stored bytes, so results are cached
	// for the process lifetime
	orientationMu sync.RWMutex
	orientations  map[string]imaging.Orientation
}

// NewEvidenceService constructs the service.
func NewEvidenceService(repo evidenceStore, fetcher mediaFetcher, logger *zap.Logger) *EvidenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EvidenceService{
		repo:         repo,
		fetcher:      fetcher,
		logger:       logger,
		orientations: make(map[string]imaging.Orientation),
	}
}

func (s *EvidenceService) lockTicket(ticketID string) func() {
	v, _ := s.ticketMu.LoadOrStore(ticketID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// List returns the ticket's evidence in display order, each item carrying the
// display transform derived from its EXIF orientation and manual rotation.
func (s *EvidenceService) List(ctx context.Context, ticketID string, filter models.EvidenceFilter) (*dto.EvidenceListResponse, error) {
	items, err := s.repo.ListByTicket(ctx, ticketID, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list evidence")
	}
	resp := &dto.EvidenceListResponse{TicketID: ticketID, Items: make([]dto.EvidenceResponse, 0, len(items))}
	for _, ev := range items {
		resp.Items = append(resp.Items, dto.EvidenceResponse{
			Evidence:  ev,
			Transform: imaging.Transform(s.orientationOf(ctx, &ev), ev.ManualRotation),
		})
	}
	return resp, nil
}

// Get returns one evidence item with its display transform.
func (s *EvidenceService) Get(ctx context.Context, id string) (*dto.EvidenceResponse, error) {
	ev, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evidence")
	}
	return &dto.EvidenceResponse{
		Evidence:  *ev,
		Transform: imaging.Transform(s.orientationOf(ctx, ev), ev.ManualRotation),
	}, nil
}

// Create registers a new evidence row at the end of the ticket's sequence.
func (s *EvidenceService) Create(ctx context.Context, ev *models.Evidence) (*dto.EvidenceResponse, error) {
	if ev.TicketID == "" || ev.ResourcePath == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "ticketId and resourcePath required")
	}
	if ev.DisplayName == "" {
		ev.DisplayName = ev.FileName
	}
	unlock := s.lockTicket(ev.TicketID)
	defer unlock()
	if err := s.repo.Create(ctx, ev); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create evidence")
	}
	return &dto.EvidenceResponse{
		Evidence:  *ev,
		Transform: imaging.Transform(s.orientationOf(ctx, ev), ev.ManualRotation),
	}, nil
}

// Reorder moves one item to the requested 1-based position and renumbers the
// whole sequence densely. On a failed write the authoritative order is
// refetched and returned alongside an order conflict.
func (s *EvidenceService) Reorder(ctx context.Context, ticketID string, req dto.ReorderRequest) (*dto.EvidenceListResponse, error) {
	if req.EvidenceID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "evidenceId required")
	}
	unlock := s.lockTicket(ticketID)
	defer unlock()

	items, err := s.repo.ListByTicket(ctx, ticketID, models.EvidenceFilter{})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list evidence")
	}

	idx := -1
	for i := range items {
		if items[i].ID == req.EvidenceID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "evidence not on this ticket")
	}

	target := req.Position
	if target < 1 {
		target = 1
	}
	if target > len(items) {
		target = len(items)
	}

	moved := items[idx]
	items = append(items[:idx], items[idx+1:]...)
	items = append(items[:target-1], append([]models.Evidence{moved}, items[target-1:]...)...)

	order := make(map[string]int, len(items))
	for i := range items {
		items[i].DisplayOrder = i + 1
		order[items[i].ID] = i + 1
	}

	if err := s.repo.ReplaceOrder(ctx, ticketID, order); err != nil {
		s.logger.Sugar().Warnw("reorder write failed, reconciling from store", "ticket_id", ticketID, "error", err)
		stored, listErr := s.repo.ListByTicket(ctx, ticketID, models.EvidenceFilter{})
		if listErr != nil {
			return nil, appErrors.Wrap(listErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reconcile evidence order")
		}
		resp := s.listResponse(ctx, ticketID, stored)
		return resp, appErrors.Clone(appErrors.ErrOrderConflict, "")
	}
	return s.listResponse(ctx, ticketID, items), nil
}

// Rotate applies a clockwise quarter-turn, or sets an explicit rotation when
// the request names one. The stored value is always one of 0/90/180/270.
func (s *EvidenceService) Rotate(ctx context.Context, id string, req dto.RotateRequest) (*dto.EvidenceResponse, error) {
	ev, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evidence")
	}
	if !ev.IsImage() {
		return nil, appErrors.Clone(appErrors.ErrNotAnImage, "only images can be rotated")
	}

	rotation := (ev.ManualRotation + 90) % 360
	if req.Degrees != nil {
		d := ((*req.Degrees % 360) + 360) % 360
		if d%90 != 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "rotation must be a multiple of 90")
		}
		rotation = d
	}

	if err := s.repo.Update(ctx, id, repository.UpdateEvidenceParams{ManualRotation: &rotation}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist rotation")
	}
	ev.ManualRotation = rotation
	return &dto.EvidenceResponse{
		Evidence:  *ev,
		Transform: imaging.Transform(s.orientationOf(ctx, ev), rotation),
	}, nil
}

// UpdateDetails changes the display name and description.
func (s *EvidenceService) UpdateDetails(ctx context.Context, id string, req dto.EvidenceUpdateRequest) (*dto.EvidenceResponse, error) {
	if req.DisplayName != nil && *req.DisplayName == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "displayName cannot be empty")
	}
	if err := s.repo.Update(ctx, id, repository.UpdateEvidenceParams{
		DisplayName: req.DisplayName,
		Description: req.Description,
	}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update evidence")
	}
	return s.Get(ctx, id)
}

// SetSyncState records whether the backing store holds the current copy.
func (s *EvidenceService) SetSyncState(ctx context.Context, id string, state models.SyncState) error {
	switch state {
	case models.SyncStatePending, models.SyncStateSynced, models.SyncStateFailed:
	default:
		return appErrors.Clone(appErrors.ErrValidation, "unknown sync state")
	}
	if err := s.repo.Update(ctx, id, repository.UpdateEvidenceParams{SyncState: &state}); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update sync state")
	}
	return nil
}

// Delete removes the item and renumbers the remaining sequence.
func (s *EvidenceService) Delete(ctx context.Context, id string) error {
	ev, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evidence")
	}

	unlock := s.lockTicket(ev.TicketID)
	defer unlock()

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete evidence")
	}

	remaining, err := s.repo.ListByTicket(ctx, ev.TicketID, models.EvidenceFilter{})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to renumber evidence")
	}
	order := make(map[string]int, len(remaining))
	for i := range remaining {
		order[remaining[i].ID] = i + 1
	}
	if err := s.repo.ReplaceOrder(ctx, ev.TicketID, order); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to renumber evidence")
	}
	return nil
}

func (s *EvidenceService) listResponse(ctx context.Context, ticketID string, items []models.Evidence) *dto.EvidenceListResponse {
	resp := &dto.EvidenceListResponse{TicketID: ticketID, Items: make([]dto.EvidenceResponse, 0, len(items))}
	for _, ev := range items {
		resp.Items = append(resp.Items, dto.EvidenceResponse{
			Evidence:  ev,
			Transform: imaging.Transform(s.orientationOf(ctx, &ev), ev.ManualRotation),
		})
	}
	return resp
}

// orientationOf resolves the EXIF orientation of an image, caching per
// evidence id. Unreadable metadata degrades to unknown.
func (s *EvidenceService) orientationOf(ctx context.Context, ev *models.Evidence) imaging.Orientation {
	if !ev.IsImage() {
		return imaging.OrientationUnknown
	}

	s.orientationMu.RLock()
	cached, ok := s.orientations[ev.ID]
	s.orientationMu.RUnlock()
	if ok {
		return cached
	}

	orientation := imaging.OrientationUnknown
	if s.fetcher != nil {
		if data, err := s.fetcher.Fetch(ctx, ev.ResourcePath); err == nil {
			if o, err := imaging.ReadOrientation(bytes.NewReader(data)); err == nil {
				orientation = o
			}
		} else {
			s.logger.Sugar().Debugw("orientation fetch failed", "evidence_id", ev.ID, "error", err)
		}
	}

	s.orientationMu.Lock()
	s.orientations[ev.ID] = orientation
	s.orientationMu.Unlock()
	return orientation
}
