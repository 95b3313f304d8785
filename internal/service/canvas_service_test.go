package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fieldserve/evidence-api/internal/dto"
	"github.com/fieldserve/evidence-api/internal/models"
	appErrors "github.com/fieldserve/evidence-api/pkg/errors"
	"github.com/fieldserve/evidence-api/pkg/imaging"
)

type storeStub struct {
	files map[string][]byte
	err   error
}

func newStoreStub() *storeStub {
	return &storeStub{files: map[string][]byte{}}
}

func (s *storeStub) Save(filename string, data []byte) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.files[filename] = data
	return filename, nil
}

func encodePNG(t *testing.T, w, h int, fill color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, fill)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newCanvasServiceForTest(t *testing.T) (*CanvasService, *evidenceRepoStub, *storeStub) {
	t.Helper()
	ev := imageEvidence("ev-img", "ticket-1", 1)
	repo := newEvidenceRepoStub(ev)
	fetcher := &fetcherStub{data: map[string][]byte{
		ev.ResourcePath: encodePNG(t, 40, 30, color.RGBA{R: 200, A: 255}),
	}}
	store := newStoreStub()
	svc := NewCanvasService(repo, fetcher, store, zap.NewNop(), CanvasServiceConfig{
		ImageLoadTimeout: time.Second,
		MaxSessions:      2,
	})
	return svc, repo, store
}

func TestCanvasServiceOpenReady(t *testing.T) {
	svc, _, _ := newCanvasServiceForTest(t)

	resp, err := svc.Open(context.Background(), dto.CanvasOpenRequest{EvidenceID: "ev-img"})
	require.NoError(t, err)
	assert.Equal(t, string(SessionReady), resp.State)
	assert.Equal(t, 40, resp.Width)
	assert.Equal(t, 30, resp.Height)
	assert.Zero(t, resp.ObjectCount)
	assert.False(t, resp.CanUndo)
}

func TestCanvasServiceOpenRejectsVideo(t *testing.T) {
	svc, repo, _ := newCanvasServiceForTest(t)
	video := imageEvidence("ev-vid", "ticket-1", 2)
	video.MimeType = "video/mp4"
	require.NoError(t, repo.Create(context.Background(), &video))

	_, err := svc.Open(context.Background(), dto.CanvasOpenRequest{EvidenceID: video.ID})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotAnImage.Code, appErr.Code)
}

func TestCanvasServiceOpenTwiceConflicts(t *testing.T) {
	svc, _, _ := newCanvasServiceForTest(t)

	_, err := svc.Open(context.Background(), dto.CanvasOpenRequest{EvidenceID: "ev-img"})
	require.NoError(t, err)
	_, err = svc.Open(context.Background(), dto.CanvasOpenRequest{EvidenceID: "ev-img"})
	require.Error(t, err)
}

func TestCanvasServiceOpenUnfetchableImageOpensBlankCanvas(t *testing.T) {
	repo := newEvidenceRepoStub(imageEvidence("ev-img", "ticket-1", 1))
	svc := NewCanvasService(repo, &fetcherStub{err: errors.New("offline")}, newStoreStub(), zap.NewNop(), CanvasServiceConfig{})

	resp, err := svc.Open(context.Background(), dto.CanvasOpenRequest{EvidenceID: "ev-img"})
	require.NoError(t, err)
	assert.Equal(t, string(SessionReady), resp.State)
	assert.NotZero(t, resp.Width)
	assert.NotZero(t, resp.Height)
	assert.Zero(t, resp.ObjectCount)

	// annotations-only mode stays fully editable
	appended, err := svc.Append(resp.SessionID, dto.CanvasObjectRequest{
		Kind:   imaging.KindStroke,
		Points: []imaging.Point{{X: 0, Y: 0}, {X: 10, Y: 10}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, appended.ObjectCount)
}

func TestCanvasServiceOpenUndecodableImageOpensBlankCanvas(t *testing.T) {
	ev := imageEvidence("ev-img", "ticket-1", 1)
	repo := newEvidenceRepoStub(ev)
	fetcher := &fetcherStub{data: map[string][]byte{
		ev.ResourcePath: []byte("not an image"),
	}}
	svc := NewCanvasService(repo, fetcher, newStoreStub(), zap.NewNop(), CanvasServiceConfig{})

	resp, err := svc.Open(context.Background(), dto.CanvasOpenRequest{EvidenceID: "ev-img"})
	require.NoError(t, err)
	assert.Equal(t, string(SessionReady), resp.State)

	// the blank session holds the per-image slot like any other
	_, err = svc.Open(context.Background(), dto.CanvasOpenRequest{EvidenceID: "ev-img"})
	require.Error(t, err)
}

func TestCanvasServiceAppendUndoClear(t *testing.T) {
	svc, _, _ := newCanvasServiceForTest(t)
	opened, err := svc.Open(context.Background(), dto.CanvasOpenRequest{EvidenceID: "ev-img"})
	require.NoError(t, err)

	stroke := dto.CanvasObjectRequest{
		Kind:   imaging.KindStroke,
		Color:  "#00ff00",
		Width:  3,
		Points: []imaging.Point{{X: 1, Y: 1}, {X: 20, Y: 20}},
	}
	resp, err := svc.Append(opened.SessionID, stroke)
	require.NoError(t, err)
	assert.Equal(t, string(SessionEditing), resp.State)
	assert.Equal(t, 1, resp.ObjectCount)
	assert.True(t, resp.CanUndo)

	resp, err = svc.Undo(opened.SessionID)
	require.NoError(t, err)
	assert.Zero(t, resp.ObjectCount)
	assert.Equal(t, string(SessionReady), resp.State)

	_, err = svc.Undo(opened.SessionID)
	require.Error(t, err)

	_, err = svc.Append(opened.SessionID, stroke)
	require.NoError(t, err)
	resp, err = svc.Clear(opened.SessionID)
	require.NoError(t, err)
	assert.Zero(t, resp.ObjectCount)
}

func TestCanvasServiceSaveFlattensAndUpdatesEvidence(t *testing.T) {
	svc, repo, store := newCanvasServiceForTest(t)
	opened, err := svc.Open(context.Background(), dto.CanvasOpenRequest{EvidenceID: "ev-img"})
	require.NoError(t, err)

	_, err = svc.Append(opened.SessionID, dto.CanvasObjectRequest{
		Kind:   imaging.KindStroke,
		Points: []imaging.Point{{X: 0, Y: 0}, {X: 10, Y: 10}},
	})
	require.NoError(t, err)

	saved, err := svc.Save(context.Background(), opened.SessionID)
	require.NoError(t, err)
	require.NotEmpty(t, saved.ResourcePath)
	assert.Contains(t, store.files, saved.ResourcePath)
	assert.Greater(t, saved.SizeBytes, int64(0))

	ev := repo.items["ev-img"]
	assert.Equal(t, saved.ResourcePath, ev.ResourcePath)
	assert.Equal(t, "image/png", ev.MimeType)
	assert.Zero(t, ev.ManualRotation)
	assert.Equal(t, models.SyncStatePending, ev.SyncState)

	// session closed, slot released
	_, err = svc.Get(opened.SessionID)
	require.Error(t, err)
}

func TestCanvasServiceDiscardLeavesEvidenceUntouched(t *testing.T) {
	svc, repo, store := newCanvasServiceForTest(t)
	before := *repo.items["ev-img"]

	opened, err := svc.Open(context.Background(), dto.CanvasOpenRequest{EvidenceID: "ev-img"})
	require.NoError(t, err)
	_, err = svc.Append(opened.SessionID, dto.CanvasObjectRequest{
		Kind:   imaging.KindShape,
		Shape:  imaging.ShapeRect,
		Points: []imaging.Point{{X: 2, Y: 2}, {X: 8, Y: 8}},
	})
	require.NoError(t, err)

	require.NoError(t, svc.Discard(opened.SessionID))
	assert.Equal(t, before, *repo.items["ev-img"])
	assert.Empty(t, store.files)

	// discarded session is gone and the image can be reopened
	_, err = svc.Get(opened.SessionID)
	require.Error(t, err)
	_, err = svc.Open(context.Background(), dto.CanvasOpenRequest{EvidenceID: "ev-img"})
	require.NoError(t, err)
}

func TestCanvasServiceSaveStorageFailureKeepsSession(t *testing.T) {
	svc, _, store := newCanvasServiceForTest(t)
	opened, err := svc.Open(context.Background(), dto.CanvasOpenRequest{EvidenceID: "ev-img"})
	require.NoError(t, err)
	_, err = svc.Append(opened.SessionID, dto.CanvasObjectRequest{
		Kind: imaging.KindText,
		Text: "leak here",
		Pos:  &imaging.Point{X: 5, Y: 12},
	})
	require.NoError(t, err)

	store.err = errors.New("disk full")
	_, err = svc.Save(context.Background(), opened.SessionID)
	require.Error(t, err)

	// still editable after the failed flatten
	resp, err := svc.Get(opened.SessionID)
	require.NoError(t, err)
	assert.Equal(t, string(SessionEditing), resp.State)
}

func TestCanvasServiceFlattenedPNGOverride(t *testing.T) {
	svc, _, _ := newCanvasServiceForTest(t)

	_, ok := svc.FlattenedPNG("ev-img")
	assert.False(t, ok)

	opened, err := svc.Open(context.Background(), dto.CanvasOpenRequest{EvidenceID: "ev-img"})
	require.NoError(t, err)

	// a session with no annotations contributes nothing
	_, ok = svc.FlattenedPNG("ev-img")
	assert.False(t, ok)

	_, err = svc.Append(opened.SessionID, dto.CanvasObjectRequest{
		Kind:   imaging.KindStroke,
		Points: []imaging.Point{{X: 0, Y: 0}, {X: 5, Y: 5}},
	})
	require.NoError(t, err)

	data, ok := svc.FlattenedPNG("ev-img")
	require.True(t, ok)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())
}
