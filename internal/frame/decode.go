// Package frame turns submitted still images into blurred luminance grids and
// compares them.
//
// Pipeline for one comparison:
//
//	bytes -> Decoder -> image.Image
//	(previous, current) -> Grayscale (common size) -> BoxBlur -> Diff
//
// Nothing in this package keeps state between calls.
package frame

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder

	_ "golang.org/x/image/webp" // Register WebP decoder
)

var (
	// ErrDecode is returned (wrapped) for malformed or unsupported image bytes.
	ErrDecode = errors.New("frame: decode failed")

	// ErrEmptyFrame is returned for an empty buffer or a zero-area image.
	ErrEmptyFrame = errors.New("frame: empty frame")

	// ErrSizeMismatch is returned when two grids of different dimensions are compared.
	ErrSizeMismatch = errors.New("frame: grid size mismatch")
)

// Decoder turns encoded image bytes into a pixel grid.
type Decoder interface {
	Decode(data []byte) (image.Image, error)
}

// DecoderFunc adapts a plain function to the Decoder interface.
type DecoderFunc func(data []byte) (image.Image, error)

// Decode calls f(data).
func (f DecoderFunc) Decode(data []byte) (image.Image, error) {
	return f(data)
}

// ImageDecoder decodes any format registered with the image package
// (JPEG, PNG, GIF and WebP are registered by this package).
type ImageDecoder struct{}

// NewImageDecoder returns the default still-image decoder.
func NewImageDecoder() ImageDecoder {
	return ImageDecoder{}
}

// Decode decodes data. Every failure wraps ErrDecode.
func (ImageDecoder) Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrDecode, ErrEmptyFrame)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: %w", ErrDecode, ErrEmptyFrame)
	}

	return img, nil
}
