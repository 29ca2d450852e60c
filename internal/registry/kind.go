package registry

// ModelKind is the tagged-variant replacement for inheritance-based model
// dispatch (Design Notes: "dynamic dispatch via a model-config capability
// should be modeled as a tagged variant rather than inheritance"). It
// governs input dimension, tensor element type, output size and validation
// for a loaded Graph.
type ModelKind interface {
	isModelKind()
}

// OutputLayout resolves the image-classifier output-shape open question
// (spec §9): the source shows two incompatible shapes depending on model
// family, so implementations must parameterize on the model rather than
// hard-code one.
type OutputLayout int

const (
	// LayoutFlatten1000x1x1 is SqueezeNet-style: output shape [1,1000,1,1].
	LayoutFlatten1000x1x1 OutputLayout = iota
	// LayoutVector1001 is MobileNet-style: output shape [1001] (1000
	// classes + background at index 0, which must be skipped).
	LayoutVector1001
)

// ImageNetKind is an ImageNet-class image classifier.
type ImageNetKind struct {
	Layout    OutputLayout
	OutputTag string // ONNX output tensor name, e.g. "squeezenet0_flatten0_reshape0"
	// Normalization describes the per-channel preprocessing the image
	// pipeline must apply before set_input; see internal/imagepipeline.
	Normalization ImageNormalization
}

func (ImageNetKind) isModelKind() {}

// ImageNormalization selects the channel order and mean/std used to
// preprocess a decoded JPEG (spec §6 "Image pipeline constants").
type ImageNormalization struct {
	BGR  bool
	Mean [3]float32
	Std  [3]float32
}

var (
	// MobileNetNormalization: identity normalization, BGR order.
	MobileNetNormalization = ImageNormalization{
		BGR:  true,
		Mean: [3]float32{0, 0, 0},
		Std:  [3]float32{1, 1, 1},
	}
	// SqueezeNetNormalization: ImageNet mean/std, RGB order.
	SqueezeNetNormalization = ImageNormalization{
		BGR:  false,
		Mean: [3]float32{0.485, 0.456, 0.406},
		Std:  [3]float32{0.229, 0.224, 0.225},
	}
)

// TextModelKind is an autoregressive instruct chat model.
type TextModelKind struct {
	VocabSize int
	// SeqLenCeiling bounds dims[1] growth (spec §8 boundary: "dims[1]
	// overflow beyond plausible context length should surface backend_error").
	SeqLenCeiling int
	EOSTokenID    int64
	BOSTokenID    int64
}

func (TextModelKind) isModelKind() {}
