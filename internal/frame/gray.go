package frame

import (
	"image"

	"golang.org/x/image/draw"
)

// CommonSize returns the largest width and height both frames can be reduced to.
func CommonSize(a, b image.Image) (width, height int) {
	ab, bb := a.Bounds(), b.Bounds()
	return min(ab.Dx(), bb.Dx()), min(ab.Dy(), bb.Dy())
}

// Grayscale reduces src to a single-channel luminance grid of exactly
// width x height. A frame that already has the target size is converted
// pixel for pixel; otherwise it is rescaled first. Both frames of a
// comparison must go through this function so the mapping is identical.
func Grayscale(src image.Image, width, height int) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, width, height))
	if width <= 0 || height <= 0 {
		return dst
	}

	b := src.Bounds()
	if b.Dx() == width && b.Dy() == height {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
		return dst
	}

	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}
