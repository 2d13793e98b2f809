package imaging

import (
	"image"

	"github.com/anthonynsimon/bild/clone"
)

// CloneRGBA returns a mutable RGBA copy of src with its origin at (0,0).
// The source image is never modified.
func CloneRGBA(src image.Image) *image.RGBA {
	dst := clone.AsRGBA(src)
	// Pix is laid out from Rect.Min, so translating Rect keeps the pixels.
	dst.Rect = dst.Rect.Sub(dst.Rect.Min)
	return dst
}
