package compose

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

// WordComposer mirrors the PDF structure (header block, then one block per
// evidence item) but serializes to WordprocessingML. Page-break logic is
// simplified to a page break before every item instead of a measured cursor.
//
// The container is written by hand: only the minimal parts a .docx needs
// (content types, package rels, document, document rels, media).
type WordComposer struct{}

// NewWordComposer constructs a Word composer.
func NewWordComposer() *WordComposer {
	return &WordComposer{}
}

const emuPerPixel = 9525 // 914400 EMU per inch at 96 dpi

// Render produces .docx bytes for the header and items.
func (c *WordComposer) Render(header Header, items []Item) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	type media struct {
		name string
		data []byte
	}
	var images []media

	var body strings.Builder
	writeHeaderXML(&body, header)

	for i, item := range items {
		if i > 0 {
			body.WriteString(`<w:p><w:r><w:br w:type="page"/></w:r></w:p>`)
		}
		relID := ""
		if item.ImageData != nil {
			ext := strings.ToLower(item.ImageType)
			if ext == "jpg" {
				ext = "jpeg"
			}
			name := fmt.Sprintf("image%d.%s", len(images)+1, ext)
			images = append(images, media{name: name, data: item.ImageData})
			relID = fmt.Sprintf("rIdImg%d", len(images))
		}
		writeItemXML(&body, item, relID, len(images))
	}

	mediaNames := make([]string, len(images))
	for i, img := range images {
		mediaNames[i] = img.name
	}
	files := map[string]string{
		"[Content_Types].xml":          contentTypesXML,
		"_rels/.rels":                  packageRelsXML,
		"word/document.xml":            documentXML(body.String()),
		"word/_rels/document.xml.rels": documentRelsXML(mediaNames),
	}
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("create docx part %s: %w", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			return nil, fmt.Errorf("write docx part %s: %w", name, err)
		}
	}
	for _, img := range images {
		w, err := zw.Create("word/media/" + img.name)
		if err != nil {
			return nil, fmt.Errorf("create docx media: %w", err)
		}
		if _, err := w.Write(img.data); err != nil {
			return nil, fmt.Errorf("write docx media: %w", err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize docx: %w", err)
	}
	return buf.Bytes(), nil
}

func writeHeaderXML(body *strings.Builder, header Header) {
	title := header.TicketTitle
	if title == "" {
		title = header.TicketNumber
	} else if header.TicketNumber != "" {
		title = fmt.Sprintf("%s (%s)", title, header.TicketNumber)
	}
	writeStyledParagraph(body, title, "", true)
	if header.ClientName != "" {
		writeStyledParagraph(body, "Client: "+header.ClientName, "", false)
	}
	writeStyledParagraph(body, "Generated: "+header.GeneratedAt.Format("2006-01-02"), "", false)

	colorHex := strings.TrimPrefix(header.TextColor, "#")
	for _, line := range header.descriptionLines() {
		writeStyledParagraph(body, line, colorHex, false)
	}
}

func writeItemXML(body *strings.Builder, item Item, relID string, imageIndex int) {
	writeStyledParagraph(body, item.FileName, "", true)
	writeStyledParagraph(body, item.CreatedAt.Format("2006-01-02 15:04"), "", false)
	if item.UploadedBy != "" {
		writeStyledParagraph(body, "Uploaded by: "+item.UploadedBy, "", false)
	}
	if item.Description != "" {
		writeStyledParagraph(body, item.Description, "", false)
	}
	switch {
	case item.Unavailable:
		writeStyledParagraph(body, "[image unavailable]", "808080", false)
	case !item.IsImage:
		writeStyledParagraph(body, "[video attachment]", "808080", false)
	}
	if relID != "" {
		writeInlineImageXML(body, item, relID, imageIndex)
	}
}

func writeStyledParagraph(body *strings.Builder, text, colorHex string, bold bool) {
	body.WriteString("<w:p><w:r><w:rPr>")
	if bold {
		body.WriteString("<w:b/>")
	}
	if colorHex != "" {
		fmt.Fprintf(body, `<w:color w:val="%s"/>`, colorHex)
	}
	body.WriteString(`</w:rPr><w:t xml:space="preserve">`)
	_ = xml.EscapeText(body, []byte(text))
	body.WriteString("</w:t></w:r></w:p>")
}

func writeInlineImageXML(body *strings.Builder, item Item, relID string, imageIndex int) {
	wPx, hPx := imageDimensionsPx(item.ImageData)
	if wPx <= 0 || hPx <= 0 {
		wPx, hPx = 640, 480
	}
	// bound to roughly the usable width of an A4 page
	const maxWidthPx = 620
	if wPx > maxWidthPx {
		hPx = hPx * maxWidthPx / wPx
		wPx = maxWidthPx
	}
	cx, cy := wPx*emuPerPixel, hPx*emuPerPixel

	fmt.Fprintf(body, `<w:p><w:r><w:drawing><wp:inline distT="0" distB="0" distL="0" distR="0">`+
		`<wp:extent cx="%d" cy="%d"/><wp:docPr id="%d" name="evidence%d"/>`+
		`<a:graphic xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">`+
		`<a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/picture">`+
		`<pic:pic xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture">`+
		`<pic:nvPicPr><pic:cNvPr id="%d" name="evidence%d"/><pic:cNvPicPr/></pic:nvPicPr>`+
		`<pic:blipFill><a:blip r:embed="%s"/><a:stretch><a:fillRect/></a:stretch></pic:blipFill>`+
		`<pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%d" cy="%d"/></a:xfrm>`+
		`<a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr>`+
		`</pic:pic></a:graphicData></a:graphic></wp:inline></w:drawing></w:r></w:p>`,
		cx, cy, imageIndex, imageIndex, imageIndex, imageIndex, relID, cx, cy)
}

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Default Extension="png" ContentType="image/png"/>
<Default Extension="jpeg" ContentType="image/jpeg"/>
<Default Extension="gif" ContentType="image/gif"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

const packageRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

func documentXML(body string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"` +
		` xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"` +
		` xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing">` +
		`<w:body>` + body + `<w:sectPr/></w:body></w:document>`
}

func documentRelsXML(mediaNames []string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	for i, name := range mediaNames {
		fmt.Fprintf(&b, `<Relationship Id="rIdImg%d" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="media/%s"/>`, i+1, name)
	}
	b.WriteString(`</Relationships>`)
	return b.String()
}
