package registry

import (
	onnx "github.com/yalue/onnxruntime_go"
)

// ioNames returns the ONNX input/output tensor names for a graph, resolved
// from the model kind where the contract is fixed by spec §4.2, falling
// back to graph introspection otherwise.
//
// Adapted from the teacher's io_presets.go: IOPresetLFM2 is dropped (see
// DESIGN.md "Dropped teacher code") because the NN-SI contract this system
// exposes to the guest has no past_key_values slots — every iteration
// re-feeds the full sequence (spec §4.4 rationale).
func ioNames(kind ModelKind, onnxPath string) (inputs, outputs []string, err error) {
	switch kind.(type) {
	case TextModelKind:
		return []string{"input_ids", "position_ids", "attention_mask"}, []string{"logits"}, nil
	case ImageNetKind:
		in := []string{"data"}
		out, err := discoverOutputName(onnxPath, in)
		if err != nil {
			return nil, nil, err
		}
		return in, out, nil
	default:
		return discoverIONamesFromModel(onnxPath)
	}
}

// discoverOutputName keeps the declared input name but still introspects
// the graph for whatever the model calls its single output tensor.
func discoverOutputName(onnxPath string, inputs []string) ([]string, error) {
	_, outInfos, err := onnx.GetInputOutputInfo(onnxPath)
	if err != nil {
		return nil, err
	}
	outputs := make([]string, 0, len(outInfos))
	for _, info := range outInfos {
		outputs = append(outputs, info.Name)
	}
	return outputs, nil
}

// discoverIONamesFromModel is the fallback used when a graph's kind is not
// yet known (e.g. during initial registry introspection before the kind is
// classified from config.json).
func discoverIONamesFromModel(onnxPath string) ([]string, []string, error) {
	inInfos, outInfos, err := onnx.GetInputOutputInfo(onnxPath)
	if err != nil {
		return nil, nil, err
	}
	inputs := make([]string, 0, len(inInfos))
	for _, info := range inInfos {
		inputs = append(inputs, info.Name)
	}
	outputs := make([]string, 0, len(outInfos))
	for _, info := range outInfos {
		outputs = append(outputs, info.Name)
	}
	return inputs, outputs, nil
}
