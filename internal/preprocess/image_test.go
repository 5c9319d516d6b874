package preprocess

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) *bytes.Reader {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return bytes.NewReader(buf.Bytes())
}

func floatAt(buf []byte, idx int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[idx*4:]))
}

func TestBuildInputTensorByteCount(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	buf, written, err := BuildInputTensor(encodePNG(t, img), 4, 4)
	require.NoError(t, err)
	assert.Equal(t, TensorBytes(4, 4), written)
	assert.Len(t, buf, 4*4*3*4)
}

func TestBuildInputTensorChannelMajorLayout(t *testing.T) {
	// Uniform color, so resampling cannot change pixel values: every
	// entry of a channel plane holds that channel's normalized value.
	img := image.NewRGBA(image.Rect(0, 0, 6, 6))
	fill := color.RGBA{R: 255, G: 0, B: 127, A: 255}
	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			img.Set(x, y, fill)
		}
	}

	const h, w = 3, 3
	buf, written, err := BuildInputTensor(encodePNG(t, img), h, w)
	require.NoError(t, err)
	require.Equal(t, TensorBytes(h, w), written)

	plane := h * w
	wantR := float32(0xffff) / 65535.0
	wantG := float32(0)
	wantB := float32(127*0x101) / 65535.0
	for i := 0; i < plane; i++ {
		assert.InDelta(t, wantR, floatAt(buf, i), 1e-3)
		assert.InDelta(t, wantG, floatAt(buf, plane+i), 1e-3)
		assert.InDelta(t, wantB, floatAt(buf, 2*plane+i), 1e-3)
	}
}

func TestBuildInputTensorValuesInRange(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 7))
	for y := 0; y < 7; y++ {
		for x := 0; x < 10; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 25), G: uint8(y * 36), B: uint8(x * y), A: 255})
		}
	}
	buf, written, err := BuildInputTensor(encodePNG(t, img), 5, 5)
	require.NoError(t, err)
	require.Equal(t, TensorBytes(5, 5), written)
	for i := 0; i < written/4; i++ {
		v := floatAt(buf, i)
		assert.GreaterOrEqual(t, v, float32(0))
		assert.LessOrEqual(t, v, float32(1))
	}
}

func TestBuildInputTensorRejectsGarbage(t *testing.T) {
	_, _, err := BuildInputTensor(bytes.NewReader([]byte("not an image")), 4, 4)
	assert.Error(t, err)
}

func TestBuildInputTensorFileMissing(t *testing.T) {
	_, _, err := BuildInputTensorFile("definitely/not/here.jpg", 4, 4)
	assert.Error(t, err)
}
