// Package imaging implements orientation normalization and the annotation
// canvas raster model for evidence images.
package imaging

import (
	"fmt"
	"image"
	"io"

	"github.com/rwcarlsen/goexif/exif"
)

// Orientation is the embedded orientation tag value (1-8 per the EXIF
// convention). OrientationUnknown means no tag could be read; callers fall
// back to manual rotation only.
type Orientation int

const (
	OrientationUnknown Orientation = 0
	OrientationNormal  Orientation = 1
)

// ReadOrientation extracts the orientation tag from image bytes. Any decode
// failure degrades to OrientationUnknown with the underlying error for
// logging; it is never a hard failure.
func ReadOrientation(r io.Reader) (Orientation, error) {
	meta, err := exif.Decode(r)
	if err != nil {
		return OrientationUnknown, fmt.Errorf("decode exif: %w", err)
	}
	tag, err := meta.Get(exif.Orientation)
	if err != nil {
		return OrientationUnknown, fmt.Errorf("orientation tag: %w", err)
	}
	value, err := tag.Int(0)
	if err != nil || value < 1 || value > 8 {
		return OrientationUnknown, fmt.Errorf("orientation value %d out of range", value)
	}
	return Orientation(value), nil
}

// baseTransform maps an orientation tag to its display correction.
func (o Orientation) baseTransform() (rotation int, mirrored bool) {
	switch o {
	case 2:
		return 0, true
	case 3:
		return 180, false
	case 4:
		return 180, true
	case 5:
		return 90, true
	case 6:
		return 90, false
	case 7:
		return 270, true
	case 8:
		return 270, false
	default: // 1, unknown
		return 0, false
	}
}

// Transform combines the embedded orientation with a user-applied manual
// rotation into a CSS-equivalent display transform. Rotations compose
// additively modulo 360; mirroring comes from the tag alone. The result is
// deterministic for identical inputs.
func Transform(base Orientation, manualDegrees int) string {
	baseRot, mirrored := base.baseTransform()
	total := ((baseRot+manualDegrees)%360 + 360) % 360

	switch {
	case total == 0 && !mirrored:
		return "none"
	case total == 0:
		return "scaleX(-1)"
	case !mirrored:
		return fmt.Sprintf("rotate(%ddeg)", total)
	default:
		return fmt.Sprintf("rotate(%ddeg) scaleX(-1)", total)
	}
}

// Normalize bakes the combined transform into pixel data: the returned image
// renders correctly with no display transform applied.
func Normalize(src image.Image, base Orientation, manualDegrees int) *image.RGBA {
	baseRot, mirrored := base.baseTransform()
	total := ((baseRot+manualDegrees)%360 + 360) % 360

	out := toRGBA(src)
	if mirrored {
		out = mirrorX(out)
	}
	switch total {
	case 90:
		out = rotate90(out)
	case 180:
		out = rotate180(out)
	case 270:
		out = rotate90(rotate180(out))
	}
	return out
}

func toRGBA(src image.Image) *image.RGBA {
	if rgba, ok := src.(*image.RGBA); ok {
		return rgba
	}
	bounds := src.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			out.Set(x-bounds.Min.X, y-bounds.Min.Y, src.At(x, y))
		}
	}
	return out
}

func mirrorX(src *image.RGBA) *image.RGBA {
	b := src.Bounds()
	out := image.NewRGBA(b)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.Set(b.Dx()-1-x, y, src.At(x, y))
		}
	}
	return out
}

// rotate90 rotates clockwise.
func rotate90(src *image.RGBA) *image.RGBA {
	b := src.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.Set(b.Dy()-1-y, x, src.At(x, y))
		}
	}
	return out
}

func rotate180(src *image.RGBA) *image.RGBA {
	b := src.Bounds()
	out := image.NewRGBA(b)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.Set(b.Dx()-1-x, b.Dy()-1-y, src.At(x, y))
		}
	}
	return out
}
