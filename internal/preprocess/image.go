// Package preprocess converts input images into the fixed-layout tensor
// buffer the model expects: batch 1, 3 channels, channel-major float32.
package preprocess

import (
	"encoding/binary"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"os"

	"github.com/nfnt/resize"
)

// TensorBytes returns the byte length of an NCHW float32 tensor with
// batch 1 and 3 channels at the given spatial size.
func TensorBytes(height, width int) int {
	return height * width * 3 * 4
}

// BuildInputTensor decodes a JPEG or PNG image from r, resizes it to
// height by width and writes the pixels as [1,3,H,W] float32 values in
// little-endian byte order, each channel normalized to [0,1]. It
// returns the buffer and the byte count actually written; callers must
// treat any count other than TensorBytes(height, width) as fatal.
func BuildInputTensor(r io.Reader, height, width int) ([]byte, int, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, 0, fmt.Errorf("decode image: %w", err)
	}

	resized := resize.Resize(uint(width), uint(height), img, resize.Lanczos3)
	bounds := resized.Bounds()

	buf := make([]byte, TensorBytes(height, width))
	plane := height * width
	written := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r16, g16, b16, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()

			idx := y*width + x
			written += putFloat32(buf, idx, float32(r16)/65535.0)
			written += putFloat32(buf, plane+idx, float32(g16)/65535.0)
			written += putFloat32(buf, 2*plane+idx, float32(b16)/65535.0)
		}
	}
	return buf, written, nil
}

// BuildInputTensorFile is BuildInputTensor over a file path.
func BuildInputTensorFile(path string, height, width int) ([]byte, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open image file: %w", err)
	}
	defer f.Close()
	return BuildInputTensor(f, height, width)
}

func putFloat32(buf []byte, idx int, v float32) int {
	binary.LittleEndian.PutUint32(buf[idx*4:], math.Float32bits(v))
	return 4
}
