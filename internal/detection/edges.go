package detection

import (
	"image"
)

// edgeThreshold is the grayscale step that counts as an edge.
const edgeThreshold = 30

// edgeMap is a binary edge image stored row-major, plus a summed area table
// over it for constant-time window counts.
type edgeMap struct {
	width, height int
	edges         []bool
	sat           []int // (width+1)*(height+1), sat[0][*] = sat[*][0] = 0
}

// newEdgeMap computes edges for img. Border pixels are never edges.
func newEdgeMap(img image.Image) *edgeMap {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	gray := make([]int, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gray[y*w+x] = luma(img, x+b.Min.X, y+b.Min.Y)
		}
	}

	m := &edgeMap{
		width:  w,
		height: h,
		edges:  make([]bool, w*h),
		sat:    make([]int, (w+1)*(h+1)),
	}
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			c := gray[y*w+x]
			dx := abs(c - gray[y*w+x+1])
			dy := abs(c - gray[(y+1)*w+x])
			if dx > edgeThreshold || dy > edgeThreshold {
				m.edges[y*w+x] = true
			}
		}
	}

	stride := w + 1
	for y := 0; y < h; y++ {
		row := 0
		for x := 0; x < w; x++ {
			if m.edges[y*w+x] {
				row++
			}
			m.sat[(y+1)*stride+x+1] = m.sat[y*stride+x+1] + row
		}
	}
	return m
}

func (m *edgeMap) at(x, y int) bool {
	return m.edges[y*m.width+x]
}

// count returns the number of edge pixels in [x, x+w) × [y, y+h).
func (m *edgeMap) count(x, y, w, h int) int {
	stride := m.width + 1
	x2, y2 := x+w, y+h
	return m.sat[y2*stride+x2] - m.sat[y*stride+x2] - m.sat[y2*stride+x] + m.sat[y*stride+x]
}

// luma uses ITU-R BT.601 weights on 8-bit channels.
func luma(img image.Image, x, y int) int {
	r, g, b, _ := img.At(x, y).RGBA()
	return int(float64(r>>8)*0.299 + float64(g>>8)*0.587 + float64(b>>8)*0.114)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
