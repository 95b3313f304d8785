// Package compose lays out ordered evidence plus report metadata into export
// documents: paginated PDF, structured Word, or a raw ZIP archive.
package compose

import "time"

// Header is the report-level block emitted once at the top of a document.
// Formatting preferences apply to the description lines only.
type Header struct {
	TicketNumber string
	TicketTitle  string
	ClientName   string
	Description  string
	Bulleted     bool
	BulletGlyph  string
	TextColor    string
	GeneratedAt  time.Time
}

// Item is one evidence entry prepared for composition. ImageData is nil for
// videos and for images whose fetch failed; Unavailable marks the latter so
// the document can record the omission.
type Item struct {
	FileName    string
	Description string
	UploadedBy  string
	CreatedAt   time.Time
	IsImage     bool
	Unavailable bool
	ImageData   []byte
	ImageType   string // "PNG" or "JPG"
}

// descriptionLines splits the header description according to preferences.
func (h Header) descriptionLines() []string {
	if h.Description == "" {
		return nil
	}
	lines := splitLines(h.Description)
	if !h.Bulleted {
		return lines
	}
	glyph := h.BulletGlyph
	if glyph == "" {
		glyph = "-"
	}
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = glyph + " " + line
	}
	return out
}

func splitLines(text string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			line := text[start:i]
			if len(line) > 0 && line[len(line)-1] == '\r' {
				line = line[:len(line)-1]
			}
			if line != "" {
				lines = append(lines, line)
			}
			start = i + 1
		}
	}
	if start < len(text) {
		lines = append(lines, text[start:])
	}
	return lines
}
