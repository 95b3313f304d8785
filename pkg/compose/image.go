package compose

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/tiff"
)

// assumed pixel density when an image carries no DPI metadata
const pixelsPerMM = 96.0 / 25.4

// imageDimensionsMM decodes only the image header and converts pixel
// dimensions to millimetres. Returns zeros on decode failure.
func imageDimensionsMM(data []byte) (float64, float64) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return float64(cfg.Width) / pixelsPerMM, float64(cfg.Height) / pixelsPerMM
}

// imageDimensionsPx returns raw pixel dimensions, zeros on failure.
func imageDimensionsPx(data []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

// DetectImageType sniffs the registration type gofpdf expects from magic bytes.
func DetectImageType(data []byte) string {
	switch {
	case len(data) >= 8 && bytes.Equal(data[:8], []byte("\x89PNG\r\n\x1a\n")):
		return "PNG"
	case len(data) >= 3 && bytes.Equal(data[:3], []byte("\xff\xd8\xff")):
		return "JPG"
	case len(data) >= 6 && (bytes.Equal(data[:6], []byte("GIF87a")) || bytes.Equal(data[:6], []byte("GIF89a"))):
		return "GIF"
	default:
		return ""
	}
}
