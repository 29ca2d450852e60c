// Package sandbox hosts the wazero runtime that executes the image and
// chat guest modules (spec §4 "Sandbox"), linking the nn-si and chatbot
// host modules into a fresh Store for every request.
package sandbox

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/tetratelabs/wazero"

	"github.com/scriptmaster/wasinn-gateway/internal/registry"
)

// GuestKind distinguishes the two guest wasm binaries the spec describes
// (spec §2 "Guests": image classification vs. chat generation).
type GuestKind string

const (
	GuestImage GuestKind = "image"
	GuestChat  GuestKind = "chat"
)

// Engine holds the raw guest wasm bytes and a wazero.CompilationCache shared
// across every per-request Store. Each request gets its own wazero.Runtime
// (so the fixed "nn-si"/"chatbot" host module names never collide across
// concurrent requests) but recompilation is near-free because the
// CompilationCache memoizes the compiled machine code (spec Design Notes:
// "never let one request's sandbox observe another's state").
type Engine struct {
	cache    wazero.CompilationCache
	registry *registry.Registry

	mu     sync.RWMutex
	guests map[GuestKind][]byte
}

// NewEngine constructs an Engine backed by reg for graph lookups.
func NewEngine(reg *registry.Registry) *Engine {
	return &Engine{
		cache:    wazero.NewCompilationCache(),
		registry: reg,
		guests:   make(map[GuestKind][]byte),
	}
}

// LoadGuest reads the wasm binary at path and registers it under kind,
// replacing any previously loaded binary for that kind.
func (e *Engine) LoadGuest(kind GuestKind, path string) error {
	wasmBytes, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("sandbox: read guest %q: %w", path, err)
	}
	e.mu.Lock()
	e.guests[kind] = wasmBytes
	e.mu.Unlock()
	return nil
}

func (e *Engine) guestBytes(kind GuestKind) ([]byte, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	b, ok := e.guests[kind]
	return b, ok
}

// Close releases the shared compilation cache. Any in-flight Stores must be
// closed first.
func (e *Engine) Close(ctx context.Context) error {
	return e.cache.Close(ctx)
}
