package decoder

// ClassifyImage runs softmax+argmax over a classifier's raw output tensor
// and returns the winning class plus its probability. layout resolves the
// per-model-family output shape instead of hard-coding one: SqueezeNet's
// [1,1000,1,1] is a plain 1000-way argmax, MobileNet's [1001] carries a
// background class at index 0 that must be excluded, with the reported
// label shifted back down to the 0-based ImageNet range.
func ClassifyImage(layout OutputLayout, logits []float32) (label uint32, probability float32) {
	if layout == LayoutVector1001 && len(logits) > 1 {
		classes := logits[1:]
		softmaxInPlace(classes)
		idx := argmaxStable(classes)
		return uint32(idx), classes[idx]
	}
	softmaxInPlace(logits)
	idx := argmaxStable(logits)
	return uint32(idx), logits[idx]
}
