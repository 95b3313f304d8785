package compose

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWordRenderStructure(t *testing.T) {
	img := testPNG(t, 200, 100)
	items := []Item{
		{FileName: "front.png", CreatedAt: time.Now(), IsImage: true, ImageData: img, ImageType: "PNG", Description: "front of unit"},
		{FileName: "clip.mp4", CreatedAt: time.Now(), IsImage: false, UploadedBy: "tech-7"},
	}

	data, err := NewWordComposer().Render(testHeader(), items)
	require.NoError(t, err)

	parts := readArchive(t, data)
	require.Contains(t, parts, "[Content_Types].xml")
	require.Contains(t, parts, "_rels/.rels")
	require.Contains(t, parts, "word/document.xml")
	require.Contains(t, parts, "word/_rels/document.xml.rels")
	require.Contains(t, parts, "word/media/image1.png")

	doc := string(parts["word/document.xml"])
	require.Contains(t, doc, "TK-1")
	require.Contains(t, doc, "Acme")
	require.Contains(t, doc, "front of unit")
	require.Contains(t, doc, "[video attachment]")
	require.Contains(t, doc, `r:embed="rIdImg1"`)
	// one page break between the two item blocks
	require.Contains(t, doc, `<w:br w:type="page"/>`)

	rels := string(parts["word/_rels/document.xml.rels"])
	require.Contains(t, rels, "media/image1.png")
}

func TestWordRenderEscapesText(t *testing.T) {
	header := testHeader()
	header.Description = `seal <broken> & "leaking"`

	data, err := NewWordComposer().Render(header, nil)
	require.NoError(t, err)

	doc := string(readArchive(t, data)["word/document.xml"])
	require.Contains(t, doc, "seal &lt;broken&gt; &amp; &#34;leaking&#34;")
	require.NotContains(t, doc, "<broken>")
}

func TestWordRenderUnavailableImage(t *testing.T) {
	items := []Item{{FileName: "gone.jpg", CreatedAt: time.Now(), IsImage: true, Unavailable: true}}
	data, err := NewWordComposer().Render(testHeader(), items)
	require.NoError(t, err)

	parts := readArchive(t, data)
	doc := string(parts["word/document.xml"])
	require.Contains(t, doc, "[image unavailable]")
	require.NotContains(t, parts, "word/media/image1.jpg")
}
