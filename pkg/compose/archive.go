package compose

import (
	"archive/zip"
	"bytes"
	"fmt"
)

// ArchiveMember is one successfully fetched evidence payload.
type ArchiveMember struct {
	Name string
	Data []byte
}

// ArchiveComposer packages raw evidence bytes into a ZIP.
type ArchiveComposer struct{}

// NewArchiveComposer constructs an archive composer.
func NewArchiveComposer() *ArchiveComposer {
	return &ArchiveComposer{}
}

// Render writes every member into the archive. Callers skip unfetchable
// evidence before calling, so an archive with N requested and M failed items
// carries exactly N-M members.
func (c *ArchiveComposer) Render(members []ArchiveMember) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	seen := make(map[string]int, len(members))

	for _, m := range members {
		name := m.Name
		if n := seen[name]; n > 0 {
			name = fmt.Sprintf("%d_%s", n, name)
		}
		seen[m.Name]++

		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("create archive member %s: %w", name, err)
		}
		if _, err := w.Write(m.Data); err != nil {
			return nil, fmt.Errorf("write archive member %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}
