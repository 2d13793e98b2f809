//go:build !cgo

package ocr

import (
	"context"
	"fmt"
	"image"

	"go.uber.org/zap"
)

// Tesseract is unavailable in binaries built without cgo.
type Tesseract struct{}

// NewTesseract always fails without cgo.
func NewTesseract(Config, *zap.Logger) (*Tesseract, error) {
	return nil, fmt.Errorf("tesseract: %w (built without cgo)", ErrEngineUnavailable)
}

// Detect always fails without cgo.
func (*Tesseract) Detect(context.Context, image.Image) ([]Detection, error) {
	return nil, ErrEngineUnavailable
}

// Version reports that no Tesseract is linked.
func Version() string {
	return "unavailable"
}
