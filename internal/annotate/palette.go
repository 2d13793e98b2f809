package annotate

import (
	"fmt"
	"image/color"

	"github.com/ironsheep/ocr-annotate/internal/imaging"
)

// Palette holds the annotation colors.
type Palette struct {
	// Accent fills the label band and strokes the outline.
	Accent color.RGBA

	// Text colors the recognized string.
	Text color.RGBA

	// Corners color the markers at p0, p1, p2 and p3.
	Corners [4]color.RGBA
}

// DefaultPalette returns the standard colors: purple accent, white text,
// and blue, green, red, yellow corner markers.
func DefaultPalette() Palette {
	return Palette{
		Accent: color.RGBA{R: 166, G: 56, B: 242, A: 255},
		Text:   color.RGBA{R: 255, G: 255, B: 255, A: 255},
		Corners: [4]color.RGBA{
			{R: 0, G: 0, B: 255, A: 255},
			{R: 0, G: 255, B: 0, A: 255},
			{R: 255, G: 0, B: 0, A: 255},
			{R: 255, G: 255, B: 0, A: 255},
		},
	}
}

// ParsePalette builds a palette from hex accent and text colors. Empty
// strings keep the default. Corner colors are fixed.
func ParsePalette(accent, text string) (Palette, error) {
	p := DefaultPalette()
	if accent != "" {
		c, err := imaging.ParseHex(accent)
		if err != nil {
			return p, fmt.Errorf("accent color: %w", err)
		}
		p.Accent = c
	}
	if text != "" {
		c, err := imaging.ParseHex(text)
		if err != nil {
			return p, fmt.Errorf("text color: %w", err)
		}
		p.Text = c
	}
	return p, nil
}
