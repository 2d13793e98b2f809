package annotate

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/ironsheep/ocr-annotate/internal/imaging"
	"github.com/ironsheep/ocr-annotate/internal/ocr"
)

// Geometry of one annotation set, in pixels.
const (
	BandHeight   = 23
	TextOffset   = 3
	OutlineWidth = 2
	CornerRadius = 2
	CornerStroke = 2
)

// DefaultFontSize approximates a Hershey duplex font at scale 0.8.
const DefaultFontSize = 16.0

var parseGoRegular = sync.OnceValues(func() (*truetype.Font, error) {
	return truetype.Parse(goregular.TTF)
})

// Option configures an Annotator.
type Option func(*Annotator)

// WithLogger sets the logger used to report skipped detections.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Annotator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithPalette replaces the default colors.
func WithPalette(p Palette) Option {
	return func(a *Annotator) {
		a.palette = p
	}
}

// WithFontSize sets the label font size in pixels.
func WithFontSize(size float64) Option {
	return func(a *Annotator) {
		if size > 0 {
			a.fontSize = size
		}
	}
}

// Annotator draws detections onto images. It keeps no per-call state and
// is safe for concurrent use on distinct images.
type Annotator struct {
	palette  Palette
	fontSize float64
	font     *truetype.Font
	logger   *zap.Logger
}

// New returns an Annotator with the default palette and font.
func New(opts ...Option) (*Annotator, error) {
	f, err := parseGoRegular()
	if err != nil {
		return nil, fmt.Errorf("failed to parse label font: %w", err)
	}
	a := &Annotator{
		palette:  DefaultPalette(),
		fontSize: DefaultFontSize,
		font:     f,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Palette returns the colors in use.
func (a *Annotator) Palette() Palette {
	return a.palette
}

// AnnotateImage draws dets onto a copy of src and returns the copy, with its
// origin at (0,0). src is not modified. The returned image is valid even
// when the error is non-nil; see Annotate.
func (a *Annotator) AnnotateImage(src image.Image, dets []ocr.Detection) (*image.RGBA, error) {
	dst := imaging.CloneRGBA(src)
	return dst, a.Annotate(dst, dets)
}

// Annotate draws dets onto dst in order. Detection coordinates are relative
// to dst's top-left corner.
//
// A detection whose region is not four finite points is logged and skipped.
// The rest are still drawn, and the returned error combines one
// ocr.ErrMalformedQuad per skipped detection. Use Skipped to count them.
func (a *Annotator) Annotate(dst *image.RGBA, dets []ocr.Detection) error {
	if len(dets) == 0 {
		return nil
	}

	canvas := dst
	if dst.Rect.Min != (image.Point{}) {
		canvas = &image.RGBA{Pix: dst.Pix, Stride: dst.Stride, Rect: dst.Rect.Sub(dst.Rect.Min)}
	}

	// Faces cache glyphs and are not safe to share, so each call gets one.
	face := truetype.NewFace(a.font, &truetype.Options{
		Size:    a.fontSize,
		Hinting: font.HintingFull,
	})
	defer face.Close()

	dc := gg.NewContextForRGBA(canvas)
	dc.SetFontFace(face)

	var errs error
	for i, d := range dets {
		pts, err := d.Region.Corners()
		if err != nil {
			a.logger.Warn("skipping detection",
				zap.Int("index", i),
				zap.String("text", d.Text),
				zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("detection %d: %w", i, err))
			continue
		}
		a.drawDetection(dc, canvas, pts, d.Text)
	}
	return errs
}

// Skipped reports how many detections an Annotate error accounts for.
func Skipped(err error) int {
	return len(multierr.Errors(err))
}

func (a *Annotator) drawDetection(dc *gg.Context, img *image.RGBA, p [4]image.Point, text string) {
	// Label band above p0..p1.
	fillRect(img, p[0], image.Pt(p[1].X, p[1].Y-BandHeight), a.palette.Accent)

	if text != "" {
		dc.SetColor(a.palette.Text)
		dc.DrawString(text, float64(p[0].X), float64(p[0].Y-TextOffset))
	}

	strokeRect(img, p[0], p[2], OutlineWidth, a.palette.Accent)

	r := float64(CornerRadius) + float64(CornerStroke)/2
	for i, c := range p {
		dc.SetColor(a.palette.Corners[i])
		dc.DrawCircle(float64(c.X)+0.5, float64(c.Y)+0.5, r)
		dc.Fill()
	}
}

// fillRect paints the rectangle spanning a and b, both corners included.
func fillRect(img *image.RGBA, a, b image.Point, c color.RGBA) {
	r := image.Rectangle{Min: a, Max: b}.Canon()
	r.Max = r.Max.Add(image.Pt(1, 1))
	draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
}

// strokeRect paints every pixel within width/2 of the edges of the
// rectangle spanning a and b.
func strokeRect(img *image.RGBA, a, b image.Point, width int, c color.RGBA) {
	r := image.Rectangle{Min: a, Max: b}.Canon()
	h := width / 2
	x0, y0, x1, y1 := r.Min.X, r.Min.Y, r.Max.X, r.Max.Y

	fillRect(img, image.Pt(x0-h, y0-h), image.Pt(x1+h, y0+h), c)
	fillRect(img, image.Pt(x0-h, y1-h), image.Pt(x1+h, y1+h), c)
	fillRect(img, image.Pt(x0-h, y0-h), image.Pt(x0+h, y1+h), c)
	fillRect(img, image.Pt(x1-h, y0-h), image.Pt(x1+h, y1+h), c)
}
