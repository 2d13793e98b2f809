package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
)

// ErrDecode is returned when uploaded bytes are not a decodable image.
var ErrDecode = errors.New("cannot decode image")

// jpegQuality matches the default quality of common OpenCV writers.
const jpegQuality = 95

// Format describes how a result is written and served.
type Format struct {
	// Name is the short format name: "png", "jpeg", "bmp" or "tiff".
	Name string `json:"name"`

	// ContentType is the MIME type sent with the encoded bytes.
	ContentType string `json:"content_type"`

	format imaging.Format
}

var (
	formatPNG  = Format{Name: "png", ContentType: "image/png", format: imaging.PNG}
	formatJPEG = Format{Name: "jpeg", ContentType: "image/jpeg", format: imaging.JPEG}
	formatBMP  = Format{Name: "bmp", ContentType: "image/bmp", format: imaging.BMP}
	formatTIFF = Format{Name: "tiff", ContentType: "image/tiff", format: imaging.TIFF}
)

// FormatFor picks the output format for a stored file name. Unknown
// extensions and GIF fall back to PNG.
func FormatFor(name string) Format {
	f, err := imaging.FormatFromFilename(name)
	if err != nil {
		return formatPNG
	}
	switch f {
	case imaging.JPEG:
		return formatJPEG
	case imaging.BMP:
		return formatBMP
	case imaging.TIFF:
		return formatTIFF
	default:
		return formatPNG
	}
}

// Decode reads an image, applying any EXIF orientation. Every failure wraps
// ErrDecode.
func Decode(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: empty image %dx%d", ErrDecode, b.Dx(), b.Dy())
	}
	return img, nil
}

// DecodeBytes is Decode over an in-memory blob.
func DecodeBytes(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: no data", ErrDecode)
	}
	return Decode(bytes.NewReader(data))
}

// Encode writes img in the format chosen for name and returns that format.
func Encode(w io.Writer, img image.Image, name string) (Format, error) {
	f := FormatFor(name)
	if err := imaging.Encode(w, img, f.format, imaging.JPEGQuality(jpegQuality)); err != nil {
		return f, fmt.Errorf("failed to encode %s: %w", f.Name, err)
	}
	return f, nil
}

// EncodeBytes is Encode into a fresh buffer.
func EncodeBytes(img image.Image, name string) ([]byte, Format, error) {
	var buf bytes.Buffer
	f, err := Encode(&buf, img, name)
	if err != nil {
		return nil, f, err
	}
	return buf.Bytes(), f, nil
}
