package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

func pngConfig(data []byte) (image.Config, error) {
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	return cfg, err
}

func solidBase(w, h int, col color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, col)
		}
	}
	return img
}

func TestFlattenWithoutAnnotationsMatchesBase(t *testing.T) {
	base := solidBase(40, 30, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	c := NewCanvas(base)

	flat := c.Flatten()
	require.Equal(t, base.Bounds(), flat.Bounds())
	require.Equal(t, base.Pix, flat.Pix)
}

func TestAppendAndUndo(t *testing.T) {
	c := NewCanvas(nil)
	require.Equal(t, 1, c.ObjectCount())

	// undo with only the background present is invalid
	require.Error(t, c.RemoveLast())

	red := color.RGBA{R: 255, A: 255}
	require.NoError(t, c.Append(Object{Kind: KindShape, Shape: ShapeRect, Color: red, Points: []Point{{10, 10}, {50, 40}}}))
	require.NoError(t, c.Append(Object{Kind: KindText, Text: "leak here", Color: red, Pos: Point{20, 60}}))
	require.Equal(t, 3, c.ObjectCount())

	require.NoError(t, c.RemoveLast())
	require.Equal(t, 2, c.ObjectCount())
	require.NoError(t, c.RemoveLast())
	require.Error(t, c.RemoveLast())
}

func TestBackgroundCannotBeAppendedOrCleared(t *testing.T) {
	c := NewCanvas(nil)
	require.Error(t, c.Append(Object{Kind: KindBackground}))

	require.NoError(t, c.Append(Object{Kind: KindStroke, Points: []Point{{0, 0}, {5, 5}, {10, 3}}}))
	require.NoError(t, c.Append(Object{Kind: KindShape, Shape: ShapeCircle, Points: []Point{{5, 5}, {30, 30}}}))
	c.Clear()
	require.Equal(t, 1, c.ObjectCount())
}

func TestAppendValidation(t *testing.T) {
	c := NewCanvas(nil)
	require.Error(t, c.Append(Object{Kind: KindStroke, Points: []Point{{0, 0}}}))
	require.Error(t, c.Append(Object{Kind: KindShape, Shape: ShapeRect, Points: []Point{{0, 0}}}))
	require.Error(t, c.Append(Object{Kind: KindText}))
}

func TestFlattenDrawsAnnotations(t *testing.T) {
	base := solidBase(60, 60, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	c := NewCanvas(base)
	red := color.RGBA{R: 255, A: 255}
	require.NoError(t, c.Append(Object{Kind: KindShape, Shape: ShapeLine, Color: red, Width: 2, Points: []Point{{10, 30}, {50, 30}}}))

	flat := c.Flatten()
	require.Equal(t, red, flat.RGBAAt(30, 30))
	// base image is untouched outside the stroke
	require.Equal(t, base.RGBAAt(30, 5), flat.RGBAAt(30, 5))
}

func TestEncodePNGProducesDecodableImage(t *testing.T) {
	c := NewCanvas(solidBase(8, 8, color.RGBA{G: 128, A: 255}))
	data, err := c.EncodePNG()
	require.NoError(t, err)

	cfg, err := pngConfig(data)
	require.NoError(t, err)
	require.Equal(t, 8, cfg.Width)
	require.Equal(t, 8, cfg.Height)
}
