package service

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/image/tiff"

	"github.com/fieldserve/evidence-api/internal/models"
)

type selectionStub struct {
	items []models.Evidence
	err   error
}

func (s *selectionStub) Resolve(ctx context.Context, ticketID string, evidenceIDs []string) ([]models.Evidence, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.items, nil
}

type annotationsStub struct {
	flattened map[string][]byte
}

func (a *annotationsStub) FlattenedPNG(evidenceID string) ([]byte, bool) {
	data, ok := a.flattened[evidenceID]
	return data, ok
}

func testMetadata() models.ReportMetadata {
	return models.ReportMetadata{
		TicketNumber: "TK-9",
		TicketTitle:  "Compressor swap",
		ClientName:   "Acme Industrial",
	}
}

func exportJob(kind models.ExportKind) *models.ExportJob {
	return &models.ExportJob{
		ID:          "job-1",
		TicketID:    "ticket-1",
		Params:      models.ExportJobParams{Kind: kind, Metadata: testMetadata()},
		RequestedBy: "tech-7",
	}
}

func TestComposerServiceGeneratePDF(t *testing.T) {
	okItem := imageEvidence("ev-ok", "ticket-1", 1)
	broken := imageEvidence("ev-broken", "ticket-1", 2)
	video := imageEvidence("ev-vid", "ticket-1", 3)
	video.MimeType = "video/mp4"

	fetcher := &fetcherStub{data: map[string][]byte{
		okItem.ResourcePath: encodePNG(t, 60, 40, color.RGBA{B: 255, A: 255}),
	}}
	svc := NewComposerService(&selectionStub{items: []models.Evidence{okItem, broken, video}}, fetcher, nil, nil, zap.NewNop())

	result, err := svc.Generate(context.Background(), exportJob(models.ExportKindPDF))
	require.NoError(t, err)
	require.NotEmpty(t, result.Data)
	assert.Equal(t, fmt.Sprintf("TK-9_%s.pdf", time.Now().UTC().Format("2006-01-02")), result.FileName)
	assert.Equal(t, 3, result.Context.EvidenceCount)
	assert.Equal(t, []string{"ev-broken"}, result.Context.SkippedItems)
	assert.Zero(t, result.Context.AnnotatedCount)
}

func TestComposerServiceGenerateWordUsesDocxExtension(t *testing.T) {
	item := imageEvidence("ev-ok", "ticket-1", 1)
	fetcher := &fetcherStub{data: map[string][]byte{
		item.ResourcePath: encodePNG(t, 20, 20, color.RGBA{A: 255}),
	}}
	svc := NewComposerService(&selectionStub{items: []models.Evidence{item}}, fetcher, nil, nil, zap.NewNop())

	result, err := svc.Generate(context.Background(), exportJob(models.ExportKindWord))
	require.NoError(t, err)
	assert.Contains(t, result.FileName, ".docx")
	require.NotEmpty(t, result.Data)
}

func TestComposerServiceArchiveSkipsFailedFetches(t *testing.T) {
	items := []models.Evidence{
		imageEvidence("ev-1", "ticket-1", 1),
		imageEvidence("ev-2", "ticket-1", 2),
		imageEvidence("ev-3", "ticket-1", 3),
	}
	fetcher := &fetcherStub{data: map[string][]byte{
		items[0].ResourcePath: []byte("payload-1"),
		items[2].ResourcePath: []byte("payload-3"),
	}}
	svc := NewComposerService(&selectionStub{items: items}, fetcher, nil, nil, zap.NewNop())

	result, err := svc.Generate(context.Background(), exportJob(models.ExportKindZIP))
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(result.Data), int64(len(result.Data)))
	require.NoError(t, err)
	// three requested, one unfetchable, exactly two members
	require.Len(t, zr.File, 2)
	assert.Equal(t, "01_ev-1.jpg", zr.File[0].Name)
	assert.Equal(t, "03_ev-3.jpg", zr.File[1].Name)
	assert.Equal(t, []string{"ev-2"}, result.Context.SkippedItems)
}

func TestComposerServicePDFSkipsUnsupportedImageBytes(t *testing.T) {
	okItem := imageEvidence("ev-ok", "ticket-1", 1)
	garbled := imageEvidence("ev-garbled", "ticket-1", 2)
	garbled.MimeType = "image/webp"

	fetcher := &fetcherStub{data: map[string][]byte{
		okItem.ResourcePath:  encodePNG(t, 40, 30, color.RGBA{R: 255, A: 255}),
		garbled.ResourcePath: []byte("RIFF but not really webp"),
	}}
	svc := NewComposerService(&selectionStub{items: []models.Evidence{okItem, garbled}}, fetcher, nil, nil, zap.NewNop())

	// a format the renderer cannot embed degrades to its text block instead
	// of failing the whole document
	result, err := svc.Generate(context.Background(), exportJob(models.ExportKindPDF))
	require.NoError(t, err)
	require.NotEmpty(t, result.Data)
	assert.Equal(t, []string{"ev-garbled"}, result.Context.SkippedItems)
}

func TestComposerServicePDFReencodesTIFF(t *testing.T) {
	item := imageEvidence("ev-tiff", "ticket-1", 1)
	item.MimeType = "image/tiff"

	var buf bytes.Buffer
	require.NoError(t, tiff.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 16, 16)), nil))

	fetcher := &fetcherStub{data: map[string][]byte{
		item.ResourcePath: buf.Bytes(),
	}}
	svc := NewComposerService(&selectionStub{items: []models.Evidence{item}}, fetcher, nil, nil, zap.NewNop())

	result, err := svc.Generate(context.Background(), exportJob(models.ExportKindPDF))
	require.NoError(t, err)
	require.NotEmpty(t, result.Data)
	assert.Empty(t, result.Context.SkippedItems)
}

func TestComposerServiceAnnotationOverride(t *testing.T) {
	item := imageEvidence("ev-annotated", "ticket-1", 1)
	fetcher := &fetcherStub{data: map[string][]byte{}}
	annotations := &annotationsStub{flattened: map[string][]byte{
		"ev-annotated": encodePNG(t, 32, 24, color.RGBA{G: 255, A: 255}),
	}}
	svc := NewComposerService(&selectionStub{items: []models.Evidence{item}}, fetcher, annotations, nil, zap.NewNop())

	result, err := svc.Generate(context.Background(), exportJob(models.ExportKindPDF))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Context.AnnotatedCount)
	assert.Empty(t, result.Context.SkippedItems)
}

func TestComposerServiceUnsupportedKind(t *testing.T) {
	svc := NewComposerService(&selectionStub{}, &fetcherStub{}, nil, nil, zap.NewNop())
	_, err := svc.Generate(context.Background(), exportJob(models.ExportKind("csv")))
	require.Error(t, err)
}
