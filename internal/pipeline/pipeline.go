// Package pipeline runs one stored upload through decode, detection and
// annotation, and stores the annotated result next to it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"

	"github.com/ironsheep/ocr-annotate/internal/annotate"
	"github.com/ironsheep/ocr-annotate/internal/blobstore"
	"github.com/ironsheep/ocr-annotate/internal/imaging"
	"github.com/ironsheep/ocr-annotate/internal/metrics"
	"github.com/ironsheep/ocr-annotate/internal/ocr"
)

// ErrDetect wraps any failure reported by the OCR engine.
var ErrDetect = errors.New("text detection failed")

// Result describes one processed upload.
type Result struct {
	Key         string          `json:"key"`
	ResultKey   string          `json:"result_key,omitempty"`
	Width       int             `json:"width"`
	Height      int             `json:"height"`
	Detections  []ocr.Detection `json:"detections"`
	Skipped     int             `json:"skipped"`
	ContentType string          `json:"content_type,omitempty"`
	Data        []byte          `json:"-"`
}

// Pipeline wires a store, an OCR engine and an annotator together. It holds
// no per-request state and is safe for concurrent use.
type Pipeline struct {
	store     blobstore.Store
	detector  ocr.Detector
	annotator *annotate.Annotator
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// New builds a pipeline. logger and m may be nil.
func New(store blobstore.Store, detector ocr.Detector, annotator *annotate.Annotator, logger *zap.Logger, m *metrics.Metrics) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		store:     store,
		detector:  detector,
		annotator: annotator,
		logger:    logger.Named("pipeline"),
		metrics:   m,
	}
}

// Process annotates the upload stored under key, stores the encoded result
// under blobstore.ResultKey(key) and returns it.
//
// Errors wrap blobstore.ErrNotFound for a missing upload, imaging.ErrDecode
// for bytes that are not an image, and ErrDetect for engine failures. No
// result is stored when any of them occurs. Skipped detections are not an
// error; they are counted in Result.Skipped.
func (p *Pipeline) Process(ctx context.Context, key string) (*Result, error) {
	start := time.Now()

	img, res, err := p.detect(ctx, key)
	if err != nil {
		return nil, err
	}

	stageStart := time.Now()
	out, err := p.annotator.AnnotateImage(img, res.Detections)
	p.metrics.ObserveStage(metrics.StageAnnotate, stageStart)
	if err != nil {
		res.Skipped = annotate.Skipped(err)
		p.logger.Warn("some detections were not drawn",
			zap.String("key", key),
			zap.Int("skipped", res.Skipped))
	}
	p.metrics.AddDetections(len(res.Detections), res.Skipped)

	stageStart = time.Now()
	data, format, err := imaging.EncodeBytes(out, key)
	p.metrics.ObserveStage(metrics.StageEncode, stageStart)
	if err != nil {
		p.metrics.RecordError(metrics.StageEncode)
		return nil, fmt.Errorf("%s: %w", key, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res.ResultKey = blobstore.ResultKey(key)
	stageStart = time.Now()
	err = p.store.Put(ctx, res.ResultKey, data)
	p.metrics.ObserveStage(metrics.StageStore, stageStart)
	if err != nil {
		p.metrics.RecordError(metrics.StageStore)
		return nil, fmt.Errorf("failed to store result for %s: %w", key, err)
	}

	res.Data = data
	res.ContentType = format.ContentType

	p.logger.Info("processed upload",
		zap.String("key", key),
		zap.Int("detections", len(res.Detections)),
		zap.Int("skipped", res.Skipped),
		zap.String("format", format.Name),
		zap.Duration("took", time.Since(start)))

	return res, nil
}

// Detect loads, decodes and runs OCR on the upload under key without
// annotating or storing anything.
func (p *Pipeline) Detect(ctx context.Context, key string) (*Result, error) {
	_, res, err := p.detect(ctx, key)
	return res, err
}

func (p *Pipeline) detect(ctx context.Context, key string) (image.Image, *Result, error) {
	stageStart := time.Now()
	data, err := p.store.Get(ctx, key)
	p.metrics.ObserveStage(metrics.StageLoad, stageStart)
	if err != nil {
		p.metrics.RecordError(metrics.StageLoad)
		return nil, nil, fmt.Errorf("failed to load %s: %w", key, err)
	}

	stageStart = time.Now()
	img, err := imaging.DecodeBytes(data)
	p.metrics.ObserveStage(metrics.StageDecode, stageStart)
	if err != nil {
		p.metrics.RecordError(metrics.StageDecode)
		return nil, nil, fmt.Errorf("%s: %w", key, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	stageStart = time.Now()
	dets, err := p.detector.Detect(ctx, img)
	p.metrics.ObserveStage(metrics.StageDetect, stageStart)
	if err != nil {
		p.metrics.RecordError(metrics.StageDetect)
		return nil, nil, fmt.Errorf("%w for %s: %w", ErrDetect, key, err)
	}
	if dets == nil {
		dets = []ocr.Detection{}
	}

	b := img.Bounds()
	return img, &Result{
		Key:        key,
		Width:      b.Dx(),
		Height:     b.Dy(),
		Detections: dets,
	}, nil
}
