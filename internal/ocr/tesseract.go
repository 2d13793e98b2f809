//go:build cgo

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"go.uber.org/zap"
)

// Tesseract detects text with the Tesseract engine through gosseract.
//
// A fresh gosseract client is created per call; TessBaseAPI instances are not
// safe for concurrent use and requests are served concurrently.
type Tesseract struct {
	cfg    Config
	level  gosseract.PageIteratorLevel
	logger *zap.Logger
}

// NewTesseract validates cfg and prepares a Tesseract detector.
func NewTesseract(cfg Config, logger *zap.Logger) (*Tesseract, error) {
	if len(cfg.Languages) == 0 {
		return nil, fmt.Errorf("tesseract: at least one language is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.GPU {
		logger.Warn("tesseract runs on the CPU only, ignoring gpu setting")
	}
	return &Tesseract{
		cfg:    cfg,
		level:  iteratorLevel(cfg.Level),
		logger: logger,
	}, nil
}

func iteratorLevel(level string) gosseract.PageIteratorLevel {
	switch level {
	case LevelWord:
		return gosseract.RIL_WORD
	case LevelBlock:
		return gosseract.RIL_BLOCK
	default:
		return gosseract.RIL_TEXTLINE
	}
}

// Detect runs OCR over img. Each Tesseract box becomes an axis-aligned quad;
// boxes with no text are dropped.
func (t *Tesseract) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image for tesseract: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if t.cfg.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(t.cfg.TessdataPrefix); err != nil {
			return nil, fmt.Errorf("failed to set tessdata path: %w", err)
		}
	}
	if err := client.SetLanguage(t.cfg.Languages...); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(t.level)
	if err != nil {
		return nil, fmt.Errorf("failed to get bounding boxes: %w", err)
	}

	// Box coordinates are relative to the encoded image, whose origin is (0,0).
	dets := make([]Detection, 0, len(boxes))
	for _, box := range boxes {
		text := strings.TrimSpace(box.Word)
		if text == "" {
			continue
		}
		dets = append(dets, Detection{
			Region:     RectQuad(box.Box),
			Text:       text,
			Confidence: box.Confidence / 100.0,
		})
	}

	t.logger.Debug("tesseract finished",
		zap.Int("boxes", len(boxes)),
		zap.Int("detections", len(dets)))

	return filterConfidence(dets, t.cfg.MinConfidence), nil
}

// Version returns the linked Tesseract version.
func Version() string {
	return gosseract.Version()
}
