package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ObjectKind tags the annotation object variants.
type ObjectKind int

const (
	KindBackground ObjectKind = iota
	KindStroke
	KindShape
	KindText
)

// ShapeKind selects the stamped shape geometry.
type ShapeKind int

const (
	ShapeRect ShapeKind = iota
	ShapeCircle
	ShapeLine
	ShapeArrow
)

// Point is a canvas coordinate in pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Object is one annotation in the append-only object list. A tagged variant
// rather than an interface keeps the graph free of back-references; which
// fields are meaningful depends on Kind.
type Object struct {
	Kind   ObjectKind  `json:"kind"`
	Color  color.RGBA  `json:"-"`
	Width  float64     `json:"width,omitempty"`
	Points []Point     `json:"points,omitempty"`
	Shape  ShapeKind   `json:"shape,omitempty"`
	Text   string      `json:"text,omitempty"`
	Pos    Point       `json:"pos,omitempty"`
}

const (
	defaultCanvasWidth  = 800
	defaultCanvasHeight = 600
)

// Canvas binds a normalized background image to an overlay object list.
// The background is always object index 0 and cannot be removed.
type Canvas struct {
	width   int
	height  int
	base    *image.RGBA
	objects []Object
}

// NewCanvas builds a canvas over the given normalized base image. A nil base
// yields a blank white canvas (annotations-only mode).
func NewCanvas(base *image.RGBA) *Canvas {
	width, height := defaultCanvasWidth, defaultCanvasHeight
	if base != nil {
		width, height = base.Bounds().Dx(), base.Bounds().Dy()
	}
	return &Canvas{
		width:   width,
		height:  height,
		base:    base,
		objects: []Object{{Kind: KindBackground}},
	}
}

// Size returns the canvas dimensions in pixels.
func (c *Canvas) Size() (int, int) {
	return c.width, c.height
}

// ObjectCount includes the background sentinel at index 0.
func (c *Canvas) ObjectCount() int {
	return len(c.objects)
}

// Append adds one overlay object to the list.
func (c *Canvas) Append(obj Object) error {
	if obj.Kind == KindBackground {
		return fmt.Errorf("background cannot be appended")
	}
	switch obj.Kind {
	case KindStroke:
		if len(obj.Points) < 2 {
			return fmt.Errorf("stroke requires at least two points")
		}
	case KindShape:
		if len(obj.Points) != 2 {
			return fmt.Errorf("shape requires exactly two anchor points")
		}
	case KindText:
		if obj.Text == "" {
			return fmt.Errorf("text object requires content")
		}
	}
	c.objects = append(c.objects, obj)
	return nil
}

// RemoveLast undoes the most recent overlay object. Valid only while more
// than the background exists.
func (c *Canvas) RemoveLast() error {
	if len(c.objects) <= 1 {
		return fmt.Errorf("nothing to undo")
	}
	c.objects = c.objects[:len(c.objects)-1]
	return nil
}

// Clear removes all overlay objects, keeping the background.
func (c *Canvas) Clear() {
	c.objects = c.objects[:1]
}

// Flatten serializes background plus overlays into a single raster at 1:1
// canvas resolution. With zero overlays the result reproduces the base image.
func (c *Canvas) Flatten() *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, c.width, c.height))
	if c.base != nil {
		draw.Draw(out, out.Bounds(), c.base, c.base.Bounds().Min, draw.Src)
	} else {
		draw.Draw(out, out.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	}
	for _, obj := range c.objects[1:] {
		drawObject(out, obj)
	}
	return out
}

// EncodePNG renders the flattened canvas to PNG bytes.
func (c *Canvas) EncodePNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, c.Flatten()); err != nil {
		return nil, fmt.Errorf("encode canvas png: %w", err)
	}
	return buf.Bytes(), nil
}

func drawObject(dst *image.RGBA, obj Object) {
	col := obj.Color
	if col.A == 0 {
		col = color.RGBA{R: 255, A: 255}
	}
	width := obj.Width
	if width <= 0 {
		width = 2
	}

	switch obj.Kind {
	case KindStroke:
		for i := 1; i < len(obj.Points); i++ {
			drawLine(dst, obj.Points[i-1], obj.Points[i], col, width)
		}
	case KindShape:
		a, b := obj.Points[0], obj.Points[1]
		switch obj.Shape {
		case ShapeRect:
			drawRect(dst, a, b, col, width)
		case ShapeCircle:
			drawEllipse(dst, a, b, col, width)
		case ShapeLine:
			drawLine(dst, a, b, col, width)
		case ShapeArrow:
			drawLine(dst, a, b, col, width)
			drawArrowHead(dst, a, b, col, width)
		}
	case KindText:
		drawText(dst, obj.Pos, obj.Text, col)
	}
}

// drawLine stamps filled discs along the segment so width is honored.
func drawLine(dst *image.RGBA, a, b Point, col color.RGBA, width float64) {
	dx, dy := b.X-a.X, b.Y-a.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		drawDisc(dst, a, width/2, col)
		return
	}
	steps := int(length) + 1
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		drawDisc(dst, Point{X: a.X + dx*t, Y: a.Y + dy*t}, width/2, col)
	}
}

func drawDisc(dst *image.RGBA, center Point, radius float64, col color.RGBA) {
	if radius < 1 {
		radius = 1
	}
	minX, maxX := int(center.X-radius), int(center.X+radius)
	minY, maxY := int(center.Y-radius), int(center.Y+radius)
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			if math.Hypot(float64(x)-center.X, float64(y)-center.Y) <= radius {
				setPixel(dst, x, y, col)
			}
		}
	}
}

func drawRect(dst *image.RGBA, a, b Point, col color.RGBA, width float64) {
	x0, x1 := math.Min(a.X, b.X), math.Max(a.X, b.X)
	y0, y1 := math.Min(a.Y, b.Y), math.Max(a.Y, b.Y)
	drawLine(dst, Point{x0, y0}, Point{x1, y0}, col, width)
	drawLine(dst, Point{x1, y0}, Point{x1, y1}, col, width)
	drawLine(dst, Point{x1, y1}, Point{x0, y1}, col, width)
	drawLine(dst, Point{x0, y1}, Point{x0, y0}, col, width)
}

// drawEllipse outlines the ellipse inscribed in the rectangle spanned by a and b.
func drawEllipse(dst *image.RGBA, a, b Point, col color.RGBA, width float64) {
	cx, cy := (a.X+b.X)/2, (a.Y+b.Y)/2
	rx, ry := math.Abs(b.X-a.X)/2, math.Abs(b.Y-a.Y)/2
	if rx < 1 || ry < 1 {
		return
	}
	circumference := 2 * math.Pi * math.Max(rx, ry)
	steps := int(circumference) + 8
	prev := Point{X: cx + rx, Y: cy}
	for i := 1; i <= steps; i++ {
		theta := 2 * math.Pi * float64(i) / float64(steps)
		next := Point{X: cx + rx*math.Cos(theta), Y: cy + ry*math.Sin(theta)}
		drawLine(dst, prev, next, col, width)
		prev = next
	}
}

func drawArrowHead(dst *image.RGBA, a, b Point, col color.RGBA, width float64) {
	angle := math.Atan2(b.Y-a.Y, b.X-a.X)
	size := math.Max(10, width*4)
	for _, offset := range []float64{math.Pi - 0.5, math.Pi + 0.5} {
		tip := Point{
			X: b.X + size*math.Cos(angle+offset),
			Y: b.Y + size*math.Sin(angle+offset),
		}
		drawLine(dst, b, tip, col, width)
	}
}

func drawText(dst *image.RGBA, pos Point, text string, col color.RGBA) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(int(pos.X), int(pos.Y)),
	}
	d.DrawString(text)
}

func setPixel(dst *image.RGBA, x, y int, col color.RGBA) {
	if image.Pt(x, y).In(dst.Bounds()) {
		dst.SetRGBA(x, y, col)
	}
}
