package registry

import (
	onnx "github.com/yalue/onnxruntime_go"
)

// Graph is the opaque, immutable artifact produced by loading an ONNX model
// directory (spec §3 "Graph"). Exactly one per registry id, alive from
// worker startup until process exit. ExecutionContexts are derived from a
// Graph by internal/nnsi, which is the only package that touches the raw
// ONNX session (registry.Graph.Session / InputInfo are exported for that
// purpose only — no other package should call them).
type Graph struct {
	name         string
	session      *onnx.DynamicAdvancedSession
	kind         ModelKind
	inputNames   []string
	outputNames  []string
	inputInfo    map[string]onnx.InputOutputInfo
	execProvider string // "cuda" or "cpu", whichever actually bound
}

// Name returns the registry id this graph was loaded under.
func (g *Graph) Name() string { return g.name }

// Kind returns the tagged model-kind variant (ImageNetKind or TextModelKind).
func (g *Graph) Kind() ModelKind { return g.kind }

// InputNames returns the ONNX input tensor names this graph expects, in the
// order the session was created with.
func (g *Graph) InputNames() []string { return g.inputNames }

// OutputNames returns the ONNX output tensor names this graph produces.
func (g *Graph) OutputNames() []string { return g.outputNames }

// ExecutionProvider reports which backend actually bound ("cuda" or "cpu").
func (g *Graph) ExecutionProvider() string { return g.execProvider }

// Session returns the underlying ONNX session for internal/nnsi's exclusive use.
func (g *Graph) Session() *onnx.DynamicAdvancedSession { return g.session }

// InputInfo returns per-input shape/dtype metadata for internal/nnsi's
// exclusive use (building zero-filled optional inputs, validating shapes).
func (g *Graph) InputInfo() map[string]onnx.InputOutputInfo { return g.inputInfo }
