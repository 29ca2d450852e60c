package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/scriptmaster/wasinn-gateway/internal/modelhub"
	"github.com/scriptmaster/wasinn-gateway/internal/registry"
)

// classifyModel inspects registryID's model directory to decide whether it
// is a text or image model (spec §2: the registry holds both kinds under
// one id space). A tokenizer.json marks a text model; its absence means an
// ImageNet-style classifier, distinguished further by filename convention
// ("mobilenet" vs "squeezenet") since the two families use different
// output layouts and normalization (spec §6 "Image pipeline constants").
func classifyModel(registryID string) (registry.ModelKind, error) {
	dir := modelhub.Dir(registryID)
	if _, err := os.Stat(filepath.Join(dir, "tokenizer.json")); err == nil {
		return classifyTextModel(registryID)
	}

	lower := strings.ToLower(registryID)
	switch {
	case strings.Contains(lower, "squeezenet"):
		return registry.ImageNetKind{
			Layout:        registry.LayoutFlatten1000x1x1,
			OutputTag:     "squeezenet0_flatten0_reshape0",
			Normalization: registry.SqueezeNetNormalization,
		}, nil
	case strings.Contains(lower, "mobilenet"):
		return registry.ImageNetKind{
			Layout:        registry.LayoutVector1001,
			OutputTag:     "mobilenetv20_output_flatten0_reshape0",
			Normalization: registry.MobileNetNormalization,
		}, nil
	default:
		return nil, fmt.Errorf("classify %q: cannot determine model kind from directory contents", registryID)
	}
}

func classifyTextModel(registryID string) (registry.ModelKind, error) {
	hf, err := modelhub.LoadHFConfig(registryID)
	if err != nil {
		return nil, fmt.Errorf("classify %q: %w", registryID, err)
	}
	return registry.TextModelKind{
		VocabSize:     hf.VocabSize,
		SeqLenCeiling: 4096,
		EOSTokenID:    hf.EOSTokenID,
		BOSTokenID:    hf.BOSTokenID,
	}, nil
}
