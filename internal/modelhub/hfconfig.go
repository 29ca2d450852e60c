package modelhub

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// HFConfig holds the subset of a Hugging Face config.json the registry and
// guest decoder need: vocabulary size and special-token ids. Anything else
// is kept in Raw for forward compatibility.
type HFConfig struct {
	ModelType  string
	VocabSize  int
	EOSTokenID int64
	BOSTokenID int64
	PADTokenID int64

	Raw map[string]any

	stopStrings []string
}

// LoadHFConfig reads config.json (and, if present, generation_config.json)
// from a registry id's local directory.
func LoadHFConfig(registryID string) (*HFConfig, error) {
	dir := Dir(registryID)
	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil {
		return nil, fmt.Errorf("modelhub: read config.json: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("modelhub: parse config.json: %w", err)
	}

	cfg := &HFConfig{
		ModelType:  getString(raw, "model_type"),
		VocabSize:  getInt(raw, "vocab_size", 0),
		EOSTokenID: getInt64(raw, "eos_token_id", -1),
		BOSTokenID: getInt64(raw, "bos_token_id", -1),
		PADTokenID: getInt64(raw, "pad_token_id", -1),
		Raw:        raw,
	}
	if cfg.ModelType == "" {
		return nil, fmt.Errorf("modelhub: model_type missing in %s/config.json", registryID)
	}

	cfg.applyGenerationConfig(dir)
	return cfg, nil
}

func (c *HFConfig) StopStrings() []string { return c.stopStrings }

func (c *HFConfig) applyGenerationConfig(dir string) {
	data, err := os.ReadFile(filepath.Join(dir, "generation_config.json"))
	if err != nil {
		return
	}
	var gen map[string]any
	if err := json.Unmarshal(data, &gen); err != nil {
		return
	}
	if v, ok := toInt64(gen["eos_token_id"]); ok {
		c.EOSTokenID = v
	}
	if v, ok := toInt64(gen["bos_token_id"]); ok {
		c.BOSTokenID = v
	}
	if v, ok := toInt64(gen["pad_token_id"]); ok {
		c.PADTokenID = v
	}
	switch t := gen["stop"].(type) {
	case string:
		if t != "" {
			c.stopStrings = []string{t}
		}
	case []any:
		for _, x := range t {
			if s, ok := x.(string); ok && s != "" {
				c.stopStrings = append(c.stopStrings, s)
			}
		}
	}
}

func getInt(m map[string]any, key string, def int) int {
	if v, ok := m[key]; ok {
		switch t := v.(type) {
		case float64:
			return int(t)
		case int:
			return t
		}
	}
	return def
}

func getInt64(m map[string]any, key string, def int64) int64 {
	if v, ok := toInt64(m[key]); ok {
		return v
	}
	return def
}

func getString(m map[string]any, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func toInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		return int64(t), true
	case int:
		return int64(t), true
	case int64:
		return t, true
	}
	return 0, false
}
