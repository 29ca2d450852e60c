package decoder

import "testing"

func TestClassifyImage_Flatten1000x1x1PicksPlainArgmax(t *testing.T) {
	logits := make([]float32, 1000)
	logits[207] = 50

	label, prob := ClassifyImage(LayoutFlatten1000x1x1, logits)

	if label != 207 {
		t.Fatalf("label = %d, want 207", label)
	}
	if prob <= 0.5 {
		t.Fatalf("probability = %v, want > 0.5 after softmax dominance", prob)
	}
}

func TestClassifyImage_Vector1001SkipsBackgroundAndShiftsLabel(t *testing.T) {
	logits := make([]float32, 1001)
	logits[0] = 1000 // background must never win even though it dominates
	logits[208] = 50 // class 207 once background is excluded and the index shifts down

	label, prob := ClassifyImage(LayoutVector1001, logits)

	if label != 207 {
		t.Fatalf("label = %d, want 207", label)
	}
	if prob <= 0 {
		t.Fatalf("probability = %v, want positive", prob)
	}
}
