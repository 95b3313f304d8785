package compose

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// PDFOptions bounds the per-item image placement.
type PDFOptions struct {
	MaxImageWidthMM  float64
	MaxImageHeightMM float64
}

const (
	pageMarginLeft   = 10.0
	pageMarginTop    = 15.0
	pageMarginRight  = 10.0
	pageMarginBottom = 15.0
	pageWidthMM      = 210.0
	pageHeightMM     = 297.0
	captionGapMM     = 4.0
	itemSpacingMM    = 6.0
	captionLineMM    = 5.0
)

// PDFComposer renders evidence reports as paginated A4 documents.
type PDFComposer struct {
	opts PDFOptions
}

// NewPDFComposer constructs a composer with bounded image dimensions.
func NewPDFComposer(opts PDFOptions) *PDFComposer {
	if opts.MaxImageWidthMM <= 0 {
		opts.MaxImageWidthMM = 120
	}
	if opts.MaxImageHeightMM <= 0 {
		opts.MaxImageHeightMM = 90
	}
	return &PDFComposer{opts: opts}
}

// Render produces the document bytes. One failed image never aborts the run:
// the item degrades to its caption block. The result is non-empty whenever
// items is non-empty.
func (c *PDFComposer) Render(header Header, items []Item) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMarginLeft, pageMarginTop, pageMarginRight)
	pdf.SetAutoPageBreak(true, pageMarginBottom)
	pdf.AddPage()

	c.renderHeader(pdf, header)

	usableBottom := pageHeightMM - pageMarginBottom
	for i, item := range items {
		itemHeight := c.estimateHeight(item)
		if pdf.GetY()+itemHeight > usableBottom && pdf.GetY() > pageMarginTop {
			pdf.AddPage()
		}
		c.renderItem(pdf, item, i)
		pdf.SetY(pdf.GetY() + itemSpacingMM)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *PDFComposer) renderHeader(pdf *gofpdf.Fpdf, header Header) {
	title := header.TicketTitle
	if title == "" {
		title = header.TicketNumber
	} else if header.TicketNumber != "" {
		title = fmt.Sprintf("%s (%s)", title, header.TicketNumber)
	}

	pdf.SetFont("Arial", "B", 16)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 10, title, "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 11)
	if header.ClientName != "" {
		pdf.CellFormat(0, 6, "Client: "+header.ClientName, "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(0, 6, "Generated: "+header.GeneratedAt.Format("2006-01-02"), "", 1, "L", false, 0, "")

	if lines := header.descriptionLines(); len(lines) > 0 {
		pdf.Ln(2)
		r, g, b := parseHexColor(header.TextColor)
		pdf.SetTextColor(r, g, b)
		pdf.SetFont("Arial", "", 10)
		for _, line := range lines {
			pdf.MultiCell(0, captionLineMM, line, "", "L", false)
		}
		pdf.SetTextColor(0, 0, 0)
	}
	pdf.Ln(4)
}

// estimateHeight computes the vertical space the item needs so the page break
// decision happens before any placement. An image is never split across pages.
func (c *PDFComposer) estimateHeight(item Item) float64 {
	captionHeight := float64(len(c.captionLines(item))) * captionLineMM
	if item.ImageData == nil {
		return captionHeight
	}
	_, h := c.scaledImageSize(item)
	if h > captionHeight {
		return h
	}
	return captionHeight
}

func (c *PDFComposer) renderItem(pdf *gofpdf.Fpdf, item Item, index int) {
	top := pdf.GetY()
	captionX := pageMarginLeft
	captionWidth := pageWidthMM - pageMarginLeft - pageMarginRight

	imageBottom := top
	if item.ImageData != nil {
		name := fmt.Sprintf("evidence-%d", index)
		opts := gofpdf.ImageOptions{ImageType: item.ImageType, ReadDpi: true}
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(item.ImageData))
		w, h := c.scaledImageSize(item)
		pdf.ImageOptions(name, pageMarginLeft, top, w, h, false, opts, 0, "")
		captionX = pageMarginLeft + w + captionGapMM
		captionWidth = pageWidthMM - pageMarginRight - captionX
		imageBottom = top + h
	}

	pdf.SetFont("Arial", "", 9)
	pdf.SetTextColor(60, 60, 60)
	pdf.SetXY(captionX, top)
	for _, line := range c.captionLines(item) {
		pdf.SetX(captionX)
		pdf.MultiCell(captionWidth, captionLineMM, line, "", "L", false)
	}
	pdf.SetTextColor(0, 0, 0)

	if pdf.GetY() < imageBottom {
		pdf.SetY(imageBottom)
	}
	pdf.SetX(pageMarginLeft)
}

func (c *PDFComposer) captionLines(item Item) []string {
	lines := []string{item.FileName}
	lines = append(lines, item.CreatedAt.Format("2006-01-02 15:04"))
	if item.UploadedBy != "" {
		lines = append(lines, "Uploaded by: "+item.UploadedBy)
	}
	if item.Description != "" {
		lines = append(lines, item.Description)
	}
	switch {
	case item.Unavailable:
		lines = append(lines, "[image unavailable]")
	case !item.IsImage:
		lines = append(lines, "[video attachment]")
	}
	return lines
}

// scaledImageSize fits the image inside the configured bounds while
// preserving aspect ratio.
func (c *PDFComposer) scaledImageSize(item Item) (float64, float64) {
	w, h := imageDimensionsMM(item.ImageData)
	if w <= 0 || h <= 0 {
		return c.opts.MaxImageWidthMM, c.opts.MaxImageHeightMM
	}
	scale := c.opts.MaxImageWidthMM / w
	if s := c.opts.MaxImageHeightMM / h; s < scale {
		scale = s
	}
	if scale > 1 {
		scale = 1
	}
	return w * scale, h * scale
}

func parseHexColor(raw string) (int, int, int) {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "#")
	if len(raw) != 6 {
		return 0, 0, 0
	}
	val, err := strconv.ParseUint(raw, 16, 32)
	if err != nil {
		return 0, 0, 0
	}
	return int(val >> 16 & 0xff), int(val >> 8 & 0xff), int(val & 0xff)
}
