package sandbox

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/scriptmaster/wasinn-gateway/internal/callback"
	"github.com/scriptmaster/wasinn-gateway/internal/nnsi"
	"github.com/scriptmaster/wasinn-gateway/internal/session"
)

// Store is one request's sandboxed guest instance: its own wazero.Runtime,
// its own nn-si ResourceTable and session Arena, torn down together when
// the request completes (spec §4 "Resource discipline": "a request's
// resources never outlive the request").
type Store struct {
	runtime   wazero.Runtime
	module    wazero.CompiledModule
	instance  api.Module
	resources *nnsi.ResourceTable
	arena     *session.Arena
}

// NewStore instantiates kind's guest module in a fresh runtime, with the
// given registryID's model directory preopened read-only at /models so the
// guest can discover auxiliary files (tokenizer.json, chat template) without
// any host filesystem access beyond that directory. decode renders
// generated token ids to text for the chatbot import.
func (e *Engine) NewStore(ctx context.Context, kind GuestKind, modelDir string, decode callback.TokenDecoder) (*Store, error) {
	wasmBytes, ok := e.guestBytes(kind)
	if !ok {
		return nil, fmt.Errorf("sandbox: no guest loaded for kind %q", kind)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().
		WithCompilationCache(e.cache).
		WithCloseOnContextDone(true))

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("sandbox: instantiate wasi: %w", err)
	}

	resources := nnsi.NewResourceTable()
	if err := nnsi.Link(ctx, rt, rt.NewHostModuleBuilder(nnsi.HostModuleName), e.registry, resources); err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("sandbox: link nn-si: %w", err)
	}

	arena := session.NewArena()
	if err := callback.Link(ctx, rt.NewHostModuleBuilder(callback.HostModuleName), arena, decode); err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("sandbox: link chatbot: %w", err)
	}

	compiled, err := rt.CompileModule(ctx, wasmBytes)
	if err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("sandbox: compile guest: %w", err)
	}

	modCfg := wazero.NewModuleConfig().
		WithStartFunctions("_initialize").
		WithFSConfig(wazero.NewFSConfig().WithReadOnlyDirMount(modelDir, "/models"))

	inst, err := rt.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		compiled.Close(ctx)
		rt.Close(ctx)
		return nil, fmt.Errorf("sandbox: instantiate guest: %w", err)
	}

	return &Store{
		runtime:   rt,
		module:    compiled,
		instance:  inst,
		resources: resources,
		arena:     arena,
	}, nil
}

// Arena exposes the Store's session arena so the worker can register a
// chat session before calling into the guest.
func (s *Store) Arena() *session.Arena { return s.arena }

// CallExport invokes the guest's exported function name with args and
// returns its results.
func (s *Store) CallExport(ctx context.Context, name string, args ...uint64) ([]uint64, error) {
	fn := s.instance.ExportedFunction(name)
	if fn == nil {
		return nil, fmt.Errorf("sandbox: guest does not export %q", name)
	}
	results, err := fn.Call(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("sandbox: call %q: %w", name, err)
	}
	return results, nil
}

// WriteBytes asks the guest's exported "alloc" function for a buffer and
// copies data into guest linear memory, returning the pointer the guest can
// be told to read from.
func (s *Store) WriteBytes(ctx context.Context, data []byte) (uint32, error) {
	results, err := s.CallExport(ctx, "alloc", uint64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("sandbox: alloc %d bytes: %w", len(data), err)
	}
	ptr := uint32(results[0])
	if len(data) > 0 && !s.instance.Memory().Write(ptr, data) {
		return 0, fmt.Errorf("sandbox: write %d bytes at guest offset %d out of range", len(data), ptr)
	}
	return ptr, nil
}

// ReadBytes reads length bytes from guest linear memory at ptr.
func (s *Store) ReadBytes(ptr, length uint32) ([]byte, bool) {
	return s.instance.Memory().Read(ptr, length)
}

// Close releases the guest instance, its compiled module, the resource
// table, and the per-request runtime together (spec §4.2 "Resource
// discipline").
func (s *Store) Close(ctx context.Context) error {
	s.resources.ReleaseAll()
	_ = s.instance.Close(ctx)
	_ = s.module.Close(ctx)
	return s.runtime.Close(ctx)
}
