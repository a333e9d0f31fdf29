package capture

import (
	"encoding/binary"
	"fmt"
	"image"
)

// MaxDimension bounds frame width and height.
const MaxDimension = 4096

const headerSize = 8

// FromRaw wraps tightly packed RGBA bytes of the given size as an image.
// The slice is used in place.
func FromRaw(width, height int, pix []byte) (*image.RGBA, error) {
	if width <= 0 || height <= 0 || width > MaxDimension || height > MaxDimension {
		return nil, fmt.Errorf("%w: size %dx%d", ErrBadFrame, width, height)
	}
	if want := width * height * 4; len(pix) != want {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrBadFrame, len(pix), want)
	}
	return &image.RGBA{Pix: pix, Stride: width * 4, Rect: image.Rect(0, 0, width, height)}, nil
}

// DecodeFrame parses a binary frame: little-endian uint32 width, uint32
// height, then width*height*4 RGBA bytes.
func DecodeFrame(b []byte) (*image.RGBA, error) {
	if len(b) < headerSize {
		return nil, fmt.Errorf("%w: short header", ErrBadFrame)
	}
	w := binary.LittleEndian.Uint32(b[0:4])
	h := binary.LittleEndian.Uint32(b[4:8])
	if w > MaxDimension || h > MaxDimension {
		return nil, fmt.Errorf("%w: size %dx%d", ErrBadFrame, w, h)
	}
	return FromRaw(int(w), int(h), b[headerSize:])
}

// EncodeFrame is the inverse of DecodeFrame. Sub-images are packed.
func EncodeFrame(img *image.RGBA) []byte {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	out := make([]byte, headerSize+w*h*4)
	binary.LittleEndian.PutUint32(out[0:4], uint32(w))
	binary.LittleEndian.PutUint32(out[4:8], uint32(h))
	row := w * 4
	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+row]
		copy(out[headerSize+y*row:], src)
	}
	return out
}
