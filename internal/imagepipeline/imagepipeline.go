// Package imagepipeline decodes an uploaded JPEG and resizes/normalizes it
// into the NCHW float32 tensor an ImageNet-style ONNX graph expects. The
// teacher repo has no analogue for this (it only ever served text
// generation), so this package's shape is original; it uses only the
// standard library's image/jpeg decoder since no example repo in the pack
// imports golang.org/x/image or any other image-resizing library.
package imagepipeline

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/scriptmaster/wasinn-gateway/internal/registry"
)

// TargetSize is the square input resolution MobileNet/SqueezeNet-style
// classifiers expect.
const TargetSize = 224

// ErrInvalidImage wraps any failure that traces back to the uploaded bytes
// themselves (JPEG decode failure, not the dimensions after resize, which
// are fixed by TargetSize) rather than to a backend or model problem. The
// HTTP layer unwraps for this to choose the invalid_image taxonomy over
// inference_failed (spec §7 "Error handling design").
var ErrInvalidImage = errors.New("imagepipeline: invalid image")

// Preprocess decodes jpegBytes, resizes to TargetSize x TargetSize, and
// packs the result into NCHW float32 data normalized per norm. It returns
// the flat tensor data and its dims ([1, 3, TargetSize, TargetSize]).
func Preprocess(jpegBytes []byte, norm registry.ImageNormalization) (data []float32, dims []int64, err error) {
	img, err := jpeg.Decode(bytes.NewReader(jpegBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("imagepipeline: decode jpeg: %w: %w", ErrInvalidImage, err)
	}

	resized := resizeNearest(img, TargetSize, TargetSize)
	data = packNCHW(resized, norm)
	dims = []int64{1, 3, TargetSize, TargetSize}
	return data, dims, nil
}

// resizeNearest resizes src to w x h using nearest-neighbor sampling. Good
// enough fidelity for classification inputs without pulling in an imaging
// library the examples don't use.
func resizeNearest(src image.Image, w, h int) image.Image {
	bounds := src.Bounds()
	sw, sh := bounds.Dx(), bounds.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		sy := bounds.Min.Y + y*sh/h
		for x := 0; x < w; x++ {
			sx := bounds.Min.X + x*sw/w
			dst.Set(x, y, src.At(sx, sy))
		}
	}
	return dst
}

// packNCHW flattens img into channel-major float32 data, applying the
// model's per-channel mean/std normalization and BGR channel order when
// norm.BGR is set (spec §2 "Image preprocessing").
func packNCHW(img image.Image, norm registry.ImageNormalization) []float32 {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	data := make([]float32, 3*w*h)
	plane := w * h

	order := [3]int{0, 1, 2} // R, G, B
	if norm.BGR {
		order = [3]int{2, 1, 0}
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			rgb := [3]float32{
				float32(r>>8) / 255.0,
				float32(g>>8) / 255.0,
				float32(b>>8) / 255.0,
			}
			idx := y*w + x
			for ch := 0; ch < 3; ch++ {
				v := rgb[ch]
				v = (v - norm.Mean[ch]) / norm.Std[ch]
				data[order[ch]*plane+idx] = v
			}
		}
	}
	return data
}
