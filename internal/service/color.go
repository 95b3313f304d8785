package service

import (
	"image/color"
	"strconv"
	"strings"
)

// parseColor turns "#rrggbb" into an opaque RGBA. Anything unparseable yields
// the zero value, which the canvas treats as its default color.
func parseColor(hex string) color.RGBA {
	hex = strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(hex) != 6 {
		return color.RGBA{}
	}
	value, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}
	}
	return color.RGBA{
		R: uint8(value >> 16),
		G: uint8(value >> 8),
		B: uint8(value),
		A: 255,
	}
}
