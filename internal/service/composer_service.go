package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fieldserve/evidence-api/internal/models"
	"github.com/fieldserve/evidence-api/pkg/compose"
	appErrors "github.com/fieldserve/evidence-api/pkg/errors"
	"github.com/fieldserve/evidence-api/pkg/imaging"
)

type annotationSource interface {
	FlattenedPNG(evidenceID string) ([]byte, bool)
}

type selectionResolver interface {
	Resolve(ctx context.Context, ticketID string, evidenceIDs []string) ([]models.Evidence, error)
}

// ComposeResult is the output of one composer run.
type ComposeResult struct {
	Data     []byte
	FileName string
	Context  models.ExportContext
}

// ComposerService turns an export job into document bytes. Image handling is
// per-item best-effort: an unfetchable asset becomes a placeholder in document
// exports and is skipped in archives, and the run only fails when rendering
// itself does.
type ComposerService struct {
	selection   selectionResolver
	fetcher     mediaFetcher
	annotations annotationSource
	pdf         *compose.PDFComposer
	word        *compose.WordComposer
	archive     *compose.ArchiveComposer
	logger      *zap.Logger
}

// NewComposerService constructs the service. annotations may be nil when no
// canvas is wired in.
func NewComposerService(selection selectionResolver, fetcher mediaFetcher, annotations annotationSource, pdf *compose.PDFComposer, logger *zap.Logger) *ComposerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pdf == nil {
		pdf = compose.NewPDFComposer(compose.PDFOptions{})
	}
	return &ComposerService{
		selection:   selection,
		fetcher:     fetcher,
		annotations: annotations,
		pdf:         pdf,
		word:        compose.NewWordComposer(),
		archive:     compose.NewArchiveComposer(),
		logger:      logger,
	}
}

// Generate renders the document for a job.
func (s *ComposerService) Generate(ctx context.Context, job *models.ExportJob) (*ComposeResult, error) {
	items, err := s.selection.Resolve(ctx, job.TicketID, job.Params.EvidenceIDs)
	if err != nil {
		return nil, err
	}

	meta := job.Params.Metadata
	header := compose.Header{
		TicketNumber: meta.TicketNumber,
		TicketTitle:  meta.TicketTitle,
		ClientName:   meta.ClientName,
		Description:  meta.Description,
		Bulleted:     meta.Format.Bulleted,
		BulletGlyph:  meta.Format.BulletGlyph,
		TextColor:    meta.Format.TextColor,
		GeneratedAt:  time.Now().UTC(),
	}

	switch job.Params.Kind {
	case models.ExportKindPDF, models.ExportKindWord:
		return s.generateDocument(ctx, job.Params.Kind, header, meta, items)
	case models.ExportKindZIP:
		return s.generateArchive(ctx, meta, items)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export kind")
	}
}

func (s *ComposerService) generateDocument(ctx context.Context, kind models.ExportKind, header compose.Header, meta models.ReportMetadata, items []models.Evidence) (*ComposeResult, error) {
	composeItems := make([]compose.Item, 0, len(items))
	exportCtx := models.ExportContext{EvidenceCount: len(items)}

	for _, ev := range items {
		item := compose.Item{
			FileName:    displayName(ev),
			Description: ev.Description,
			UploadedBy:  ev.UploadedBy,
			CreatedAt:   ev.CreatedAt,
			IsImage:     ev.IsImage(),
		}
		if ev.IsImage() {
			data, annotated, err := s.imageBytes(ctx, ev)
			imageType := compose.DetectImageType(data)
			switch {
			case err != nil:
				s.logger.Sugar().Warnw("image unavailable for export", "evidence_id", ev.ID, "error", err)
				item.Unavailable = true
				exportCtx.SkippedItems = append(exportCtx.SkippedItems, ev.ID)
			case imageType == "":
				// Bytes the renderer cannot embed degrade to the text block
				// rather than failing the whole document.
				s.logger.Sugar().Warnw("unsupported image format for export", "evidence_id", ev.ID, "mime_type", ev.MimeType)
				item.Unavailable = true
				exportCtx.SkippedItems = append(exportCtx.SkippedItems, ev.ID)
			default:
				item.ImageData = data
				item.ImageType = imageType
				if annotated {
					exportCtx.AnnotatedCount++
				}
			}
		}
		composeItems = append(composeItems, item)
	}

	var (
		data []byte
		err  error
		ext  string
	)
	if kind == models.ExportKindPDF {
		data, err = s.pdf.Render(header, composeItems)
		ext = "pdf"
	} else {
		data, err = s.word.Render(header, composeItems)
		ext = "docx"
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "document rendering failed")
	}
	return &ComposeResult{
		Data:     data,
		FileName: exportFileName(meta, items, ext),
		Context:  exportCtx,
	}, nil
}

func (s *ComposerService) generateArchive(ctx context.Context, meta models.ReportMetadata, items []models.Evidence) (*ComposeResult, error) {
	members := make([]compose.ArchiveMember, 0, len(items))
	exportCtx := models.ExportContext{EvidenceCount: len(items)}

	for _, ev := range items {
		data, annotated, err := s.rawBytes(ctx, ev)
		if err != nil {
			s.logger.Sugar().Warnw("skipping unfetchable archive member", "evidence_id", ev.ID, "error", err)
			exportCtx.SkippedItems = append(exportCtx.SkippedItems, ev.ID)
			continue
		}
		if annotated {
			exportCtx.AnnotatedCount++
		}
		members = append(members, compose.ArchiveMember{
			Name: fmt.Sprintf("%02d_%s", ev.DisplayOrder, displayName(ev)),
			Data: data,
		})
	}

	data, err := s.archive.Render(members)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "archive rendering failed")
	}
	return &ComposeResult{
		Data:     data,
		FileName: exportFileName(meta, items, "zip"),
		Context:  exportCtx,
	}, nil
}

// imageBytes resolves the bytes placed into a document: a live annotation
// overlay wins, then stored bytes normalized so the image renders upright
// without a display transform.
func (s *ComposerService) imageBytes(ctx context.Context, ev models.Evidence) (data []byte, annotated bool, err error) {
	if s.annotations != nil {
		if flattened, ok := s.annotations.FlattenedPNG(ev.ID); ok {
			return flattened, true, nil
		}
	}
	raw, err := s.fetcher.Fetch(ctx, ev.ResourcePath)
	if err != nil {
		return nil, false, err
	}
	return s.normalized(raw, ev), false, nil
}

// rawBytes is the archive variant: stored bytes verbatim, overlay wins.
func (s *ComposerService) rawBytes(ctx context.Context, ev models.Evidence) (data []byte, annotated bool, err error) {
	if s.annotations != nil && ev.IsImage() {
		if flattened, ok := s.annotations.FlattenedPNG(ev.ID); ok {
			return flattened, true, nil
		}
	}
	raw, err := s.fetcher.Fetch(ctx, ev.ResourcePath)
	if err != nil {
		return nil, false, err
	}
	return raw, false, nil
}

// normalized bakes orientation and manual rotation into the pixels when either
// is in play, re-encoding as PNG. Upright images in a container the renderer
// embeds directly pass through untouched; other containers are re-encoded too.
func (s *ComposerService) normalized(raw []byte, ev models.Evidence) []byte {
	orientation, _ := imaging.ReadOrientation(bytes.NewReader(raw))
	if imaging.Transform(orientation, ev.ManualRotation) == "none" && compose.DetectImageType(raw) != "" {
		return raw
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		s.logger.Sugar().Debugw("normalize decode failed, using stored bytes", "evidence_id", ev.ID, "error", err)
		return raw
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, imaging.Normalize(img, orientation, ev.ManualRotation)); err != nil {
		s.logger.Sugar().Debugw("normalize encode failed, using stored bytes", "evidence_id", ev.ID, "error", err)
		return raw
	}
	return buf.Bytes()
}

func displayName(ev models.Evidence) string {
	if ev.DisplayName != "" {
		return ev.DisplayName
	}
	return ev.FileName
}

// exportFileName builds "{ticket-or-client}_{date}.{ext}" with unsafe
// characters stripped.
func exportFileName(meta models.ReportMetadata, items []models.Evidence, ext string) string {
	base := meta.TicketNumber
	if base == "" {
		base = meta.ClientName
	}
	if base == "" && len(items) > 0 {
		base = items[0].TicketID
	}
	if base == "" {
		base = "export"
	}
	return fmt.Sprintf("%s_%s.%s", sanitizeFileName(base), time.Now().UTC().Format("2006-01-02"), ext)
}

func sanitizeFileName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "export"
	}
	return b.String()
}
