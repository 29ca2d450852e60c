// Package modelhub acquires model artifacts and the ONNX Runtime shared
// library the registry needs before a graph can be loaded.
package modelhub

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v2"
)

// ModelRoot is the filesystem layout the sandbox preopens, per spec §6:
// ./models/onnx/<registry_id>/{model.onnx, tokenizer.json, ...}.
const ModelRoot = "models/onnx"

// RequiredFiles are always fetched; OptionalFiles are best-effort.
var RequiredFiles = []string{"model.onnx", "tokenizer.json", "config.json"}
var OptionalFiles = []string{"generation_config.json", "tokenizer_config.json", "special_tokens_map.json"}

// Dir returns the local directory a registry id's artifacts live in.
func Dir(registryID string) string {
	return filepath.Join(ModelRoot, registryID)
}

// EnsureModel makes sure registryID has a local directory populated from
// hfRepo (a Hugging Face–style "org/name" repo id), downloading only the
// files that are missing. It is a no-op once model.onnx is already present.
func EnsureModel(registryID, hfRepo string) (string, error) {
	dir := Dir(registryID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("modelhub: create %s: %w", dir, err)
	}

	if fileExists(filepath.Join(dir, "model.onnx")) {
		return dir, nil
	}

	for _, name := range RequiredFiles {
		if err := ensureFile(hfRepo, dir, name, true); err != nil {
			return "", fmt.Errorf("modelhub: required file %s: %w", name, err)
		}
	}
	for _, name := range OptionalFiles {
		_ = ensureFile(hfRepo, dir, name, false)
	}
	return dir, nil
}

func ensureFile(hfRepo, dir, name string, required bool) error {
	dest := filepath.Join(dir, name)
	if fileExists(dest) {
		return nil
	}
	url := fmt.Sprintf("https://huggingface.co/%s/resolve/main/%s", hfRepo, name)

	status, err := headStatus(url)
	if err != nil {
		if required {
			return err
		}
		return nil
	}
	if status == http.StatusNotFound {
		if required {
			return fmt.Errorf("%s: not found at %s", name, url)
		}
		return nil
	}
	if status != http.StatusOK {
		if required {
			return fmt.Errorf("%s: HEAD status %d", name, status)
		}
		return nil
	}

	return downloadWithProgress(url, dest, name)
}

func headStatus(url string) (int, error) {
	req, err := http.NewRequest(http.MethodHead, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

func downloadWithProgress(url, dest, label string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: GET status %d", label, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	tmp := dest + ".download"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(int(resp.ContentLength),
		progressbar.OptionSetDescription(label),
	)
	w := io.MultiWriter(f, bar)
	if _, err := io.Copy(w, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, dest)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
