package detection

import (
	"image"
	"math"
	"sort"
)

// TextRegion is a box that probably contains text.
type TextRegion struct {
	Bounds     image.Rectangle `json:"bounds"`
	Confidence float64         `json:"confidence"`
	Area       int             `json:"area"`
}

// TextRegionsResult contains detected text regions, highest confidence first.
type TextRegionsResult struct {
	Regions []TextRegion `json:"regions"`
	Count   int          `json:"count"`
}

// windowSizes are typical text line extents, smallest to largest.
var windowSizes = []image.Point{
	{X: 80, Y: 25},
	{X: 100, Y: 30},
	{X: 150, Y: 40},
	{X: 200, Y: 50},
}

const (
	minDensity    = 0.05
	maxDensity    = 0.4
	targetDensity = 0.2
)

// DetectTextRegions finds regions likely to contain text. Windows scoring
// below minConfidence are ignored.
func DetectTextRegions(img image.Image, minConfidence float64) (*TextRegionsResult, error) {
	bounds := img.Bounds()
	edges := newEdgeMap(img)

	var candidates []TextRegion
	for _, ws := range windowSizes {
		stepX, stepY := ws.X/2, ws.Y/2
		area := ws.X * ws.Y

		for y := 0; y+ws.Y <= edges.height; y += stepY {
			for x := 0; x+ws.X <= edges.width; x += stepX {
				density := float64(edges.count(x, y, ws.X, ws.Y)) / float64(area)
				if density < minDensity || density > maxDensity {
					continue
				}

				confidence := horizontalScore(edges, x, y, ws.X, ws.Y) *
					(1.0 - math.Abs(density-targetDensity)/targetDensity)
				if confidence < minConfidence {
					continue
				}

				candidates = append(candidates, TextRegion{
					Bounds:     image.Rect(x, y, x+ws.X, y+ws.Y).Add(bounds.Min),
					Confidence: math.Round(confidence*1000) / 1000,
					Area:       area,
				})
			}
		}
	}

	merged := mergeOverlapping(candidates)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Confidence > merged[j].Confidence
	})

	return &TextRegionsResult{
		Regions: merged,
		Count:   len(merged),
	}, nil
}

// horizontalScore is the share of edge runs that are horizontal within the
// window. Text lines produce more horizontal than vertical runs.
func horizontalScore(edges *edgeMap, x, y, w, h int) float64 {
	horizontal, vertical := 0, 0

	for row := y; row < y+h; row++ {
		inRun := false
		for col := x; col < x+w; col++ {
			on := edges.at(col, row)
			if on && !inRun {
				horizontal++
			}
			inRun = on
		}
	}
	for col := x; col < x+w; col++ {
		inRun := false
		for row := y; row < y+h; row++ {
			on := edges.at(col, row)
			if on && !inRun {
				vertical++
			}
			inRun = on
		}
	}

	if horizontal+vertical == 0 {
		return 0
	}
	return float64(horizontal) / float64(horizontal+vertical)
}

// mergeOverlapping folds each region into the first already-kept region it
// overlaps, keeping the higher confidence.
func mergeOverlapping(regions []TextRegion) []TextRegion {
	merged := make([]TextRegion, 0, len(regions))

	for _, r := range regions {
		folded := false
		for i := range merged {
			if !r.Bounds.Overlaps(merged[i].Bounds) {
				continue
			}
			merged[i].Bounds = merged[i].Bounds.Union(r.Bounds)
			merged[i].Confidence = math.Max(merged[i].Confidence, r.Confidence)
			merged[i].Area = merged[i].Bounds.Dx() * merged[i].Bounds.Dy()
			folded = true
			break
		}
		if !folded {
			merged = append(merged, r)
		}
	}

	return merged
}
