package registry

import (
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/scriptmaster/wasinn-gateway/internal/logx"
)

// ClassifyFunc resolves a ModelKind for a newly discovered registry id,
// typically by reading its config.json (see internal/modelhub.LoadHFConfig).
type ClassifyFunc func(registryID string) (ModelKind, error)

// WatchDirectory watches root (normally modelhub.ModelRoot) for new
// subdirectories that contain a model.onnx and auto-loads them, so an
// operator can drop in a new model without a process restart. This is a
// pure addition to spec §4.1's "no eviction" rule, never a removal.
func (r *Registry) WatchDirectory(root string, classify ClassifyFunc, stop <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		watcher.Close()
		return err
	}
	if err := watcher.Add(root); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-stop:
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				r.maybeAutoLoad(root, ev.Name, classify)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logx.Errorf("registry watch: %v", err)
			}
		}
	}()
	return nil
}

func (r *Registry) maybeAutoLoad(root, changedPath string, classify ClassifyFunc) {
	registryID, err := filepath.Rel(root, changedPath)
	if err != nil {
		return
	}
	// A nested change (e.g. "<id>/model.onnx") still maps to "<id>".
	registryID = filepath.Dir(registryID)
	if registryID == "." || registryID == ".." {
		registryID = filepath.Base(changedPath)
	}

	if _, already := r.Get(registryID); already {
		return
	}

	dir := filepath.Join(root, registryID)
	if _, err := os.Stat(filepath.Join(dir, "model.onnx")); err != nil {
		return
	}

	kind, err := classify(registryID)
	if err != nil {
		logx.Errorf("registry watch: classify %s: %v", registryID, err)
		return
	}
	if err := r.Load(dir, registryID, kind); err != nil {
		logx.Errorf("registry watch: auto-load %s: %v", registryID, err)
		return
	}
	logx.Printf("registry watch: auto-loaded %s", registryID)
}
