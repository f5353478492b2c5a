package frame

import "image"

// DefaultBlurKernel is the box diameter used to suppress sensor noise.
const DefaultBlurKernel = 21

// BoxBlur averages every cell with its neighbours inside a kernel x kernel
// square (radius kernel/2). Only in-bounds neighbours are counted, so edge
// cells are divided by a smaller count instead of being darkened by zero
// padding. The result always has the dimensions of src.
//
// Sums come from a summed-area table, so the cost does not grow with the
// kernel size.
func BoxBlur(src *image.Gray, kernel int) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return dst
	}

	radius := kernel / 2
	if radius <= 0 {
		for y := 0; y < h; y++ {
			off := src.PixOffset(src.Rect.Min.X, src.Rect.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+w], src.Pix[off:off+w])
		}
		return dst
	}

	// sat[(y+1)*stride+(x+1)] holds the sum of src over [0,x] x [0,y].
	stride := w + 1
	sat := make([]int, stride*(h+1))
	for y := 0; y < h; y++ {
		off := src.PixOffset(src.Rect.Min.X, src.Rect.Min.Y+y)
		row := src.Pix[off : off+w]
		rowSum := 0
		for x := 0; x < w; x++ {
			rowSum += int(row[x])
			sat[(y+1)*stride+x+1] = sat[y*stride+x+1] + rowSum
		}
	}

	for y := 0; y < h; y++ {
		y0 := max(y-radius, 0)
		y1 := min(y+radius, h-1)
		for x := 0; x < w; x++ {
			x0 := max(x-radius, 0)
			x1 := min(x+radius, w-1)

			sum := sat[(y1+1)*stride+x1+1] -
				sat[y0*stride+x1+1] -
				sat[(y1+1)*stride+x0] +
				sat[y0*stride+x0]
			count := (x1 - x0 + 1) * (y1 - y0 + 1)

			dst.Pix[y*dst.Stride+x] = uint8(sum / count)
		}
	}

	return dst
}
