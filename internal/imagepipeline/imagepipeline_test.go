package imagepipeline

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scriptmaster/wasinn-gateway/internal/registry"
)

func encodeTestJPEG(t *testing.T, w, h int, fill color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, fill)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestPreprocess_ProducesExpectedDims(t *testing.T) {
	jpegBytes := encodeTestJPEG(t, 64, 64, color.RGBA{R: 200, G: 100, B: 50, A: 255})

	data, dims, err := Preprocess(jpegBytes, registry.MobileNetNormalization)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 3, TargetSize, TargetSize}, dims)
	require.Len(t, data, 3*TargetSize*TargetSize)
}

func TestPreprocess_InvalidJPEGErrors(t *testing.T) {
	_, _, err := Preprocess([]byte("not a jpeg"), registry.MobileNetNormalization)
	require.Error(t, err)
}

func TestPackNCHW_BGRReordersChannels(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, G: 0, B: 0, A: 255})

	plain := packNCHW(img, registry.ImageNormalization{Mean: [3]float32{0, 0, 0}, Std: [3]float32{1, 1, 1}})
	bgr := packNCHW(img, registry.ImageNormalization{BGR: true, Mean: [3]float32{0, 0, 0}, Std: [3]float32{1, 1, 1}})

	plane := 4
	require.InDelta(t, 1.0, plain[0*plane+0], 0.01) // R channel first
	require.InDelta(t, 1.0, bgr[2*plane+0], 0.01)    // R value now sits in channel 2
}
