package ppg

import (
	"image"
	"time"

	"github.com/okian/vitalcam/internal/domain/model"
)

// Sample reduces an RGBA frame to its mean colour, reading every
// PixelStride-th pixel in row-major order. ok is false for an empty frame.
func (e *Estimator) Sample(img *image.RGBA, at time.Duration) (model.Sample, bool) {
	if img == nil {
		return model.Sample{}, false
	}
	b := img.Rect
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 || len(img.Pix) == 0 {
		return model.Sample{}, false
	}

	var r, g, bl float64
	var n int
	total := w * h
	for p := 0; p < total; p += e.params.PixelStride {
		x, y := p%w, p/w
		off := y*img.Stride + x*4
		if off+2 >= len(img.Pix) {
			break
		}
		px := img.Pix[off : off+3 : off+3]
		r += float64(px[0])
		g += float64(px[1])
		bl += float64(px[2])
		n++
	}
	if n == 0 {
		return model.Sample{}, false
	}

	s := model.Sample{
		At:    at,
		Red:   r / float64(n),
		Green: g / float64(n),
		Blue:  bl / float64(n),
	}
	s.Contact = e.Contact(s.Red, s.Green, s.Blue)
	return s, true
}

// Contact reports whether the channel means look like a finger pressed
// on an illuminated lens: red-dominant and neither dark nor saturated.
func (e *Estimator) Contact(r, g, b float64) bool {
	dominance := r - (g+b)/2
	brightness := (r + g + b) / 3
	return dominance > e.params.MinRedDominance &&
		brightness > e.params.MinBrightness &&
		brightness < e.params.MaxBrightness
}
