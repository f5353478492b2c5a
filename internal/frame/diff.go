package frame

import (
	"fmt"
	"image"
)

// Default thresholds.
const (
	DefaultPixelThreshold  = 25    // Per-cell intensity difference
	DefaultMotionThreshold = 20000 // Differing cells needed to call it motion
)

// Diff counts the cells whose absolute intensity difference is strictly
// greater than threshold. Both grids must have the same dimensions.
func Diff(a, b *image.Gray, threshold int) (int, error) {
	w, h := a.Rect.Dx(), a.Rect.Dy()
	if w != b.Rect.Dx() || h != b.Rect.Dy() {
		return 0, fmt.Errorf("%w: %dx%d vs %dx%d", ErrSizeMismatch, w, h, b.Rect.Dx(), b.Rect.Dy())
	}

	count := 0
	for y := 0; y < h; y++ {
		ao := a.PixOffset(a.Rect.Min.X, a.Rect.Min.Y+y)
		bo := b.PixOffset(b.Rect.Min.X, b.Rect.Min.Y+y)
		for x := 0; x < w; x++ {
			d := int(a.Pix[ao+x]) - int(b.Pix[bo+x])
			if d < 0 {
				d = -d
			}
			if d > threshold {
				count++
			}
		}
	}

	return count, nil
}

// Comparison is the outcome of comparing two frames.
type Comparison struct {
	DiffCount int
	Motion    bool
	Width     int
	Height    int
}

// Differencer compares a previous and a current frame through the
// grayscale -> blur -> diff pipeline.
type Differencer struct {
	PixelThreshold  int
	MotionThreshold int
	BlurKernel      int
}

// NewDifferencer returns a Differencer with the default thresholds.
func NewDifferencer() Differencer {
	return Differencer{
		PixelThreshold:  DefaultPixelThreshold,
		MotionThreshold: DefaultMotionThreshold,
		BlurKernel:      DefaultBlurKernel,
	}
}

// Compare reduces both frames to their common size, blurs them and counts
// differing cells. Motion is reported when the count is strictly greater
// than MotionThreshold.
func (d Differencer) Compare(prev, cur image.Image) (Comparison, error) {
	w, h := CommonSize(prev, cur)
	if w <= 0 || h <= 0 {
		return Comparison{}, ErrEmptyFrame
	}

	a := BoxBlur(Grayscale(prev, w, h), d.BlurKernel)
	b := BoxBlur(Grayscale(cur, w, h), d.BlurKernel)

	count, err := Diff(a, b, d.PixelThreshold)
	if err != nil {
		return Comparison{}, err
	}

	return Comparison{
		DiffCount: count,
		Motion:    count > d.MotionThreshold,
		Width:     w,
		Height:    h,
	}, nil
}
