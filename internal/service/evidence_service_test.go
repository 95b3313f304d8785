package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fieldserve/evidence-api/internal/dto"
	"github.com/fieldserve/evidence-api/internal/models"
	"github.com/fieldserve/evidence-api/internal/repository"
	appErrors "github.com/fieldserve/evidence-api/pkg/errors"
)

type evidenceRepoStub struct {
	items       map[string]*models.Evidence
	failReplace bool
}

func newEvidenceRepoStub(items ...models.Evidence) *evidenceRepoStub {
	stub := &evidenceRepoStub{items: map[string]*models.Evidence{}}
	for i := range items {
		ev := items[i]
		stub.items[ev.ID] = &ev
	}
	return stub
}

func (r *evidenceRepoStub) Create(ctx context.Context, ev *models.Evidence) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.DisplayOrder == 0 {
		max := 0
		for _, other := range r.items {
			if other.TicketID == ev.TicketID && other.DisplayOrder > max {
				max = other.DisplayOrder
			}
		}
		ev.DisplayOrder = max + 1
	}
	if ev.SyncState == "" {
		ev.SyncState = models.SyncStatePending
	}
	copied := *ev
	r.items[ev.ID] = &copied
	return nil
}

func (r *evidenceRepoStub) GetByID(ctx context.Context, id string) (*models.Evidence, error) {
	ev, ok := r.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *ev
	return &copied, nil
}

func (r *evidenceRepoStub) ListByTicket(ctx context.Context, ticketID string, filter models.EvidenceFilter) ([]models.Evidence, error) {
	var list []models.Evidence
	for _, ev := range r.items {
		if ev.TicketID == ticketID {
			list = append(list, *ev)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].DisplayOrder < list[j].DisplayOrder })
	return list, nil
}

func (r *evidenceRepoStub) ListByIDs(ctx context.Context, ids []string) ([]models.Evidence, error) {
	var list []models.Evidence
	for _, id := range ids {
		if ev, ok := r.items[id]; ok {
			list = append(list, *ev)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].DisplayOrder < list[j].DisplayOrder })
	return list, nil
}

func (r *evidenceRepoStub) ReplaceOrder(ctx context.Context, ticketID string, order map[string]int) error {
	if r.failReplace {
		return errors.New("write rejected")
	}
	for id, pos := range order {
		ev, ok := r.items[id]
		if !ok || ev.TicketID != ticketID {
			return sql.ErrNoRows
		}
		ev.DisplayOrder = pos
	}
	return nil
}

func (r *evidenceRepoStub) Update(ctx context.Context, id string, params repository.UpdateEvidenceParams) error {
	ev, ok := r.items[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.DisplayName != nil {
		ev.DisplayName = *params.DisplayName
	}
	if params.Description != nil {
		ev.Description = *params.Description
	}
	if params.ManualRotation != nil {
		ev.ManualRotation = *params.ManualRotation
	}
	if params.SyncState != nil {
		ev.SyncState = *params.SyncState
	}
	if params.ResourcePath != nil {
		ev.ResourcePath = *params.ResourcePath
	}
	if params.MimeType != nil {
		ev.MimeType = *params.MimeType
	}
	return nil
}

func (r *evidenceRepoStub) Delete(ctx context.Context, id string) error {
	delete(r.items, id)
	return nil
}

type fetcherStub struct {
	data map[string][]byte
	err  error
}

func (f *fetcherStub) Fetch(ctx context.Context, resourcePath string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.data[resourcePath]
	if !ok {
		return nil, errors.New("no such resource")
	}
	return data, nil
}

func imageEvidence(id, ticketID string, order int) models.Evidence {
	return models.Evidence{
		ID:           id,
		TicketID:     ticketID,
		ResourcePath: "media/" + id + ".jpg",
		MimeType:     "image/jpeg",
		FileName:     id + ".jpg",
		DisplayName:  id + ".jpg",
		DisplayOrder: order,
		SyncState:    models.SyncStateSynced,
		CreatedAt:    time.Now().UTC(),
	}
}

func TestEvidenceServiceReorderRenumbersDensely(t *testing.T) {
	repo := newEvidenceRepoStub(
		imageEvidence("ev-a", "ticket-1", 1),
		imageEvidence("ev-b", "ticket-1", 2),
		imageEvidence("ev-c", "ticket-1", 3),
	)
	svc := NewEvidenceService(repo, &fetcherStub{err: errors.New("offline")}, zap.NewNop())

	resp, err := svc.Reorder(context.Background(), "ticket-1", dto.ReorderRequest{EvidenceID: "ev-c", Position: 1})
	require.NoError(t, err)
	require.Len(t, resp.Items, 3)
	assert.Equal(t, []string{"ev-c", "ev-a", "ev-b"}, []string{resp.Items[0].ID, resp.Items[1].ID, resp.Items[2].ID})
	for i, item := range resp.Items {
		assert.Equal(t, i+1, item.DisplayOrder)
	}
	assert.Equal(t, 1, repo.items["ev-c"].DisplayOrder)
	assert.Equal(t, 2, repo.items["ev-a"].DisplayOrder)
}

func TestEvidenceServiceReorderClampsPosition(t *testing.T) {
	repo := newEvidenceRepoStub(
		imageEvidence("ev-a", "ticket-1", 1),
		imageEvidence("ev-b", "ticket-1", 2),
	)
	svc := NewEvidenceService(repo, &fetcherStub{err: errors.New("offline")}, zap.NewNop())

	resp, err := svc.Reorder(context.Background(), "ticket-1", dto.ReorderRequest{EvidenceID: "ev-a", Position: 99})
	require.NoError(t, err)
	assert.Equal(t, "ev-a", resp.Items[1].ID)
}

func TestEvidenceServiceReorderFailureReconcilesFromStore(t *testing.T) {
	repo := newEvidenceRepoStub(
		imageEvidence("ev-a", "ticket-1", 1),
		imageEvidence("ev-b", "ticket-1", 2),
	)
	repo.failReplace = true
	svc := NewEvidenceService(repo, &fetcherStub{err: errors.New("offline")}, zap.NewNop())

	resp, err := svc.Reorder(context.Background(), "ticket-1", dto.ReorderRequest{EvidenceID: "ev-b", Position: 1})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrOrderConflict.Code, appErr.Code)
	// reconciled listing reflects the untouched store, not the optimistic move
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "ev-a", resp.Items[0].ID)
	assert.Equal(t, "ev-b", resp.Items[1].ID)
}

func TestEvidenceServiceReorderUnknownEvidence(t *testing.T) {
	repo := newEvidenceRepoStub(imageEvidence("ev-a", "ticket-1", 1))
	svc := NewEvidenceService(repo, &fetcherStub{err: errors.New("offline")}, zap.NewNop())

	_, err := svc.Reorder(context.Background(), "ticket-1", dto.ReorderRequest{EvidenceID: "ev-x", Position: 1})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestEvidenceServiceRotateStepsClockwise(t *testing.T) {
	repo := newEvidenceRepoStub(imageEvidence("ev-a", "ticket-1", 1))
	svc := NewEvidenceService(repo, &fetcherStub{err: errors.New("offline")}, zap.NewNop())

	for _, want := range []int{90, 180, 270, 0} {
		resp, err := svc.Rotate(context.Background(), "ev-a", dto.RotateRequest{})
		require.NoError(t, err)
		assert.Equal(t, want, resp.ManualRotation)
	}
}

func TestEvidenceServiceRotateExplicitDegrees(t *testing.T) {
	repo := newEvidenceRepoStub(imageEvidence("ev-a", "ticket-1", 1))
	svc := NewEvidenceService(repo, &fetcherStub{err: errors.New("offline")}, zap.NewNop())

	degrees := 270
	resp, err := svc.Rotate(context.Background(), "ev-a", dto.RotateRequest{Degrees: &degrees})
	require.NoError(t, err)
	assert.Equal(t, 270, resp.ManualRotation)
	assert.Equal(t, "rotate(270deg)", resp.Transform)

	invalid := 45
	_, err = svc.Rotate(context.Background(), "ev-a", dto.RotateRequest{Degrees: &invalid})
	require.Error(t, err)
}

func TestEvidenceServiceRotateRejectsVideo(t *testing.T) {
	video := imageEvidence("ev-v", "ticket-1", 1)
	video.MimeType = "video/mp4"
	repo := newEvidenceRepoStub(video)
	svc := NewEvidenceService(repo, &fetcherStub{err: errors.New("offline")}, zap.NewNop())

	_, err := svc.Rotate(context.Background(), "ev-v", dto.RotateRequest{})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotAnImage.Code, appErr.Code)
}

func TestEvidenceServiceListTransforms(t *testing.T) {
	plain := imageEvidence("ev-a", "ticket-1", 1)
	rotated := imageEvidence("ev-b", "ticket-1", 2)
	rotated.ManualRotation = 90
	repo := newEvidenceRepoStub(plain, rotated)
	svc := NewEvidenceService(repo, &fetcherStub{err: errors.New("offline")}, zap.NewNop())

	resp, err := svc.List(context.Background(), "ticket-1", models.EvidenceFilter{})
	require.NoError(t, err)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "none", resp.Items[0].Transform)
	assert.Equal(t, "rotate(90deg)", resp.Items[1].Transform)
}

func TestEvidenceServiceDeleteRenumbers(t *testing.T) {
	repo := newEvidenceRepoStub(
		imageEvidence("ev-a", "ticket-1", 1),
		imageEvidence("ev-b", "ticket-1", 2),
		imageEvidence("ev-c", "ticket-1", 3),
	)
	svc := NewEvidenceService(repo, &fetcherStub{err: errors.New("offline")}, zap.NewNop())

	require.NoError(t, svc.Delete(context.Background(), "ev-b"))
	assert.Equal(t, 1, repo.items["ev-a"].DisplayOrder)
	assert.Equal(t, 2, repo.items["ev-c"].DisplayOrder)
}

func TestEvidenceServiceUpdateDetailsValidation(t *testing.T) {
	repo := newEvidenceRepoStub(imageEvidence("ev-a", "ticket-1", 1))
	svc := NewEvidenceService(repo, &fetcherStub{err: errors.New("offline")}, zap.NewNop())

	empty := ""
	_, err := svc.UpdateDetails(context.Background(), "ev-a", dto.EvidenceUpdateRequest{DisplayName: &empty})
	require.Error(t, err)

	name := "Front panel"
	desc := "before teardown"
	resp, err := svc.UpdateDetails(context.Background(), "ev-a", dto.EvidenceUpdateRequest{DisplayName: &name, Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, name, resp.DisplayName)
	assert.Equal(t, desc, resp.Description)
}
