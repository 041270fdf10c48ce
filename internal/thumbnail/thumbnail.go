// Package thumbnail derives fixed-size preview images from raw photo bytes.
// Derivation is pure: no I/O, and identical input yields identical output,
// so blob writes built on it are safe to retry.
package thumbnail

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
)

var (
	ErrUnsupportedMedia = errors.New("unsupported media type")
)

const (
	// MaxDimension is the thumbnail bounding box edge in pixels.
	MaxDimension = 200

	jpegQuality = 80
)

// Deriver resizes raw image bytes into a JPEG thumbnail that fits the
// MaxDimension bounding box, preserving aspect ratio. Images already inside
// the box are re-encoded without upscaling.
type Deriver struct{}

func NewDeriver() *Deriver {
	return &Deriver{}
}

func (d *Deriver) Derive(b []byte) ([]byte, error) {
	src, format, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedMedia, err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: empty %s image", ErrUnsupportedMedia, format)
	}

	tw, th := fit(w, h)
	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)

	var buf bytes.Buffer
	err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality})
	if err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	return buf.Bytes(), nil
}

// fit scales (w, h) to the largest size inside the bounding box without
// changing aspect ratio or upscaling.
func fit(w, h int) (int, int) {
	if w <= MaxDimension && h <= MaxDimension {
		return w, h
	}

	if w >= h {
		th := h * MaxDimension / w
		if th < 1 {
			th = 1
		}
		return MaxDimension, th
	}

	tw := w * MaxDimension / h
	if tw < 1 {
		tw = 1
	}
	return tw, MaxDimension
}
