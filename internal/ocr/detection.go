package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
)

// ErrMalformedQuad is returned when a detection's region cannot be turned
// into four pixel corners.
var ErrMalformedQuad = errors.New("malformed quad")

// Point is a corner position in image pixel space as reported by an engine.
// Engines may report sub-pixel values.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Quad is the polygon around one text instance. A well-formed Quad has
// exactly four points in the engine's winding order, which for every engine
// in this package is top-left, top-right, bottom-right, bottom-left.
type Quad []Point

// RectQuad builds an axis-aligned Quad from a rectangle, wound
// top-left, top-right, bottom-right, bottom-left.
func RectQuad(r image.Rectangle) Quad {
	return Quad{
		{X: float64(r.Min.X), Y: float64(r.Min.Y)},
		{X: float64(r.Max.X), Y: float64(r.Min.Y)},
		{X: float64(r.Max.X), Y: float64(r.Max.Y)},
		{X: float64(r.Min.X), Y: float64(r.Max.Y)},
	}
}

// maxCoord bounds coordinates so the integer conversion below is defined.
const maxCoord = 1 << 30

// Corners returns the four corners as integer pixels. Coordinates are
// truncated toward zero, so (10.9, 10.9) becomes (10, 10) and (-0.5, 3)
// becomes (0, 3).
func (q Quad) Corners() ([4]image.Point, error) {
	var pts [4]image.Point
	if len(q) != 4 {
		return pts, fmt.Errorf("%w: want 4 points, got %d", ErrMalformedQuad, len(q))
	}
	for i, p := range q {
		if !validCoord(p.X) || !validCoord(p.Y) {
			return pts, fmt.Errorf("%w: point %d (%v, %v) is out of range", ErrMalformedQuad, i, p.X, p.Y)
		}
		pts[i] = image.Pt(int(p.X), int(p.Y))
	}
	return pts, nil
}

func validCoord(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && math.Abs(v) < maxCoord
}

// Detection is one OCR result: where the text is and what it says.
type Detection struct {
	// Region is the quadrilateral around the text.
	Region Quad `json:"region"`

	// Text is the recognized string. Engines that only locate text leave it empty.
	Text string `json:"text"`

	// Confidence is the engine's score in [0, 1], or 0 when not reported.
	Confidence float64 `json:"confidence,omitempty"`
}

// Detector turns a decoded image into an ordered sequence of detections.
// An empty result is valid and not an error.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]Detection, error)
}

// DetectorFunc adapts a plain function to the Detector interface.
type DetectorFunc func(ctx context.Context, img image.Image) ([]Detection, error)

// Detect calls f(ctx, img).
func (f DetectorFunc) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	return f(ctx, img)
}
