// Package registry implements the Graph Registry (spec §4.1): a named
// lookup of loaded ONNX graphs, with load-from-directory and read-only
// hand-out of handles to the NN-SI layer.
package registry

import (
	"fmt"
	"os"
	"sync"

	onnx "github.com/yalue/onnxruntime_go"

	"github.com/scriptmaster/wasinn-gateway/internal/logx"
	"github.com/scriptmaster/wasinn-gateway/internal/modelhub"
)

// Registry maps registry_id -> *Graph. Reads (Get/GetMut) never block a
// concurrent Load; resolution is read-only after a graph finishes loading
// (spec §3 invariant).
type Registry struct {
	graphs sync.Map // string -> *Graph
}

// New constructs an empty registry. InitializeEnvironment must be called
// once per process before any Load.
func New() *Registry {
	return &Registry{}
}

// InitializeEnvironment sets up the ONNX Runtime environment. Call once at
// process startup, after modelhub.EnsureONNXRuntimeSharedLib.
func InitializeEnvironment() error {
	return onnx.InitializeEnvironment(onnx.WithLogLevelWarning())
}

// Load instructs the NN backend to load model files from directory with
// execution target GPU-preferred, CPU-fallback, and inserts the result
// under registryID. Idempotent: a second Load for the same id replaces the
// existing Graph (its resources are released after the swap).
func (r *Registry) Load(directory, registryID string, kind ModelKind) error {
	info, err := os.Stat(directory)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("registry: load %q: not a directory: %s", registryID, directory)
	}

	onnxPath := directory + "/model.onnx"
	inputs, outputs, err := ioNames(kind, onnxPath)
	if err != nil {
		return fmt.Errorf("registry: resolve IO names for %q: %w", registryID, err)
	}

	inInfos, _, err := onnx.GetInputOutputInfo(onnxPath)
	if err != nil {
		return fmt.Errorf("registry: introspect %q: %w", registryID, err)
	}
	inputInfo := make(map[string]onnx.InputOutputInfo, len(inInfos))
	for _, i := range inInfos {
		inputInfo[i.Name] = i
	}

	session, provider, err := newSessionPreferGPU(onnxPath, inputs, outputs)
	if err != nil {
		return fmt.Errorf("registry: create session for %q: %w", registryID, err)
	}

	g := &Graph{
		name:         registryID,
		session:      session,
		kind:         kind,
		inputNames:   inputs,
		outputNames:  outputs,
		inputInfo:    inputInfo,
		execProvider: provider,
	}

	if old, loaded := r.graphs.Swap(registryID, g); loaded {
		if prev, ok := old.(*Graph); ok && prev.session != nil {
			_ = prev.session.Destroy()
		}
		logx.Printf("registry: replaced graph id=%s provider=%s", registryID, provider)
	} else {
		logx.Printf("registry: loaded graph id=%s provider=%s", registryID, provider)
	}
	return nil
}

// LoadFromHub is a convenience wrapper: it ensures the model files are
// cached locally via modelhub.EnsureModel, then Loads from that directory.
func (r *Registry) LoadFromHub(registryID, hfRepo string, kind ModelKind) error {
	dir, err := modelhub.EnsureModel(registryID, hfRepo)
	if err != nil {
		return fmt.Errorf("registry: ensure model %q: %w", registryID, err)
	}
	return r.Load(dir, registryID, kind)
}

// Get performs a read-only lookup. Safe to call from the hot path without
// locking.
func (r *Registry) Get(name string) (*Graph, bool) {
	v, ok := r.graphs.Load(name)
	if !ok {
		return nil, false
	}
	return v.(*Graph), true
}

// GetMut is present for backend-driven mutation; unused on the hot path.
func (r *Registry) GetMut(name string) (*Graph, bool) {
	return r.Get(name)
}

// Names lists all currently registered ids, for diagnostics/CLI use.
func (r *Registry) Names() []string {
	var names []string
	r.graphs.Range(func(k, _ any) bool {
		names = append(names, k.(string))
		return true
	})
	return names
}

// newSessionPreferGPU tries CUDA first, falling back to plain CPU
// execution. yalue/onnxruntime_go exposes execution-provider options via
// SessionOptions; a CUDA append failure is not fatal, it just means we run
// on CPU.
func newSessionPreferGPU(onnxPath string, inputs, outputs []string) (*onnx.DynamicAdvancedSession, string, error) {
	opts, err := onnx.NewSessionOptions()
	if err != nil {
		return nil, "", err
	}
	defer opts.Destroy()

	provider := "cpu"
	if cudaOpts, cudaErr := onnx.NewCUDAProviderOptions(); cudaErr == nil {
		if updateErr := cudaOpts.Update(map[string]string{"device_id": "0"}); updateErr == nil {
			if appendErr := opts.AppendExecutionProviderCUDA(cudaOpts); appendErr == nil {
				provider = "cuda"
			}
		}
		cudaOpts.Destroy()
	}

	sess, err := onnx.NewDynamicAdvancedSession(onnxPath, inputs, outputs, opts)
	if err != nil && provider == "cuda" {
		// GPU-preferred, CPU-fallback: retry without the CUDA provider.
		cpuOpts, cpuErr := onnx.NewSessionOptions()
		if cpuErr != nil {
			return nil, "", err
		}
		defer cpuOpts.Destroy()
		sess, err = onnx.NewDynamicAdvancedSession(onnxPath, inputs, outputs, cpuOpts)
		provider = "cpu"
	}
	if err != nil {
		return nil, "", err
	}
	return sess, provider, nil
}
