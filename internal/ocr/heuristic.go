package ocr

import (
	"context"
	"fmt"
	"image"
	"sort"

	"github.com/ironsheep/ocr-annotate/internal/detection"
)

// Heuristic locates text-like regions without recognizing them. Every
// detection it returns has empty Text.
type Heuristic struct {
	minConfidence float64
}

// NewHeuristic builds the edge-density detector.
func NewHeuristic(cfg Config) *Heuristic {
	return &Heuristic{minConfidence: cfg.MinConfidence}
}

// Detect returns regions in reading order: top to bottom, then left to right.
func (h *Heuristic) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := detection.DetectTextRegions(img, h.minConfidence)
	if err != nil {
		return nil, fmt.Errorf("text region detection failed: %w", err)
	}

	regions := result.Regions
	sort.SliceStable(regions, func(i, j int) bool {
		a, b := regions[i].Bounds.Min, regions[j].Bounds.Min
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})

	origin := img.Bounds().Min
	dets := make([]Detection, len(regions))
	for i, r := range regions {
		dets[i] = Detection{
			Region:     RectQuad(r.Bounds.Sub(origin)),
			Confidence: r.Confidence,
		}
	}
	return dets, nil
}
