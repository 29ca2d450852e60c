package nnsi

import (
	"context"
	"encoding/binary"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/scriptmaster/wasinn-gateway/internal/registry"
)

// HostModuleName is the wazero host module name the guest imports NN-SI
// functions from (spec §6 "Guest/host ABI (NN-SI)").
const HostModuleName = "nn-si"

// graphHandles and the ResourceTable of ExecutionContexts are the per-Store
// state the host functions close over; Link ties a fresh set to every
// sandbox.Store so requests never share mutable state (spec §4.5).
type graphHandles struct {
	byHandle map[uint32]*registry.Graph
	byName   map[string]uint32
	next     uint32
}

func newGraphHandles() *graphHandles {
	return &graphHandles{byHandle: map[uint32]*registry.Graph{}, byName: map[string]uint32{}}
}

func (h *graphHandles) handleFor(g *registry.Graph) uint32 {
	if existing, ok := h.byName[g.Name()]; ok {
		return existing
	}
	h.next++
	handle := h.next
	h.byHandle[handle] = g
	h.byName[g.Name()] = handle
	return handle
}

// Link registers the nn-si host module on builder. reg resolves
// load_by_name; resources is the Store-scoped ExecutionContext table.
func Link(ctx context.Context, rt wazero.Runtime, builder wazero.HostModuleBuilder, reg *registry.Registry, resources *ResourceTable) error {
	graphs := newGraphHandles()

	builder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, namePtr, nameLen uint32) uint64 {
			name, ok := readString(mod, namePtr, nameLen)
			if !ok {
				return errHandle
			}
			g, ok := reg.Get(name)
			if !ok {
				return errHandle
			}
			return uint64(graphs.handleFor(g))
		}).
		Export("load_by_name")

	builder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, graphHandle uint32) uint64 {
			g, ok := graphs.byHandle[graphHandle]
			if !ok {
				return errHandle
			}
			ec := NewExecutionContext(g)
			return uint64(resources.Insert(ec))
		}).
		Export("init_execution_context")

	builder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, ctxHandle, namePtr, nameLen, dimsPtr, dimsLen, elemType, dataPtr, dataLen uint32) uint32 {
			ec, ok := resources.Get(ctxHandle)
			if !ok {
				return statusFail
			}
			name, ok := readString(mod, namePtr, nameLen)
			if !ok {
				return statusFail
			}
			dims, ok := readDims(mod, dimsPtr, dimsLen)
			if !ok {
				return statusFail
			}
			data, ok := mod.Memory().Read(dataPtr, dataLen)
			if !ok {
				return statusFail
			}
			t := Tensor{Dims: dims, ElemType: ElementType(elemType), Bytes: data}
			if err := ec.SetInput(name, t); err != nil {
				return statusFail
			}
			return statusOK
		}).
		Export("set_input")

	builder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, ctxHandle uint32) uint32 {
			ec, ok := resources.Get(ctxHandle)
			if !ok {
				return statusFail
			}
			if err := ec.Compute(); err != nil {
				return statusFail
			}
			return statusOK
		}).
		Export("compute")

	// get_output_size returns the packed [u32 ndims][int64 dims...][data]
	// size so the guest can allocate a buffer before get_output_read.
	builder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, ctxHandle, namePtr, nameLen uint32) uint64 {
			ec, ok := resources.Get(ctxHandle)
			if !ok {
				return errHandle
			}
			name, ok := readString(mod, namePtr, nameLen)
			if !ok {
				return errHandle
			}
			out, err := ec.GetOutput(name)
			if err != nil {
				return errHandle
			}
			return uint64(packedOutputSize(out))
		}).
		Export("get_output_size")

	builder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, ctxHandle, namePtr, nameLen, destPtr, destLen uint32) uint32 {
			ec, ok := resources.Get(ctxHandle)
			if !ok {
				return statusFail
			}
			name, ok := readString(mod, namePtr, nameLen)
			if !ok {
				return statusFail
			}
			out, err := ec.GetOutput(name)
			if err != nil {
				return statusFail
			}
			packed := packOutput(out)
			if uint32(len(packed)) > destLen {
				return statusFail
			}
			if !mod.Memory().Write(destPtr, packed) {
				return statusFail
			}
			return statusOK
		}).
		Export("get_output_read")

	_, err := builder.Instantiate(ctx)
	return err
}

const (
	statusOK   uint32 = 1
	statusFail uint32 = 0
	errHandle  uint64 = 0xFFFFFFFF
)

func readString(mod api.Module, ptr, length uint32) (string, bool) {
	b, ok := mod.Memory().Read(ptr, length)
	if !ok {
		return "", false
	}
	return string(b), true
}

func readDims(mod api.Module, ptr, length uint32) ([]int64, bool) {
	b, ok := mod.Memory().Read(ptr, length*8)
	if !ok {
		return nil, false
	}
	dims := make([]int64, length)
	for i := range dims {
		dims[i] = int64(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return dims, true
}

func packedOutputSize(out OutputTensor) uint32 {
	return uint32(4 + 8*len(out.Dims) + len(out.Data))
}

func packOutput(out OutputTensor) []byte {
	buf := make([]byte, packedOutputSize(out))
	binary.LittleEndian.PutUint32(buf, uint32(len(out.Dims)))
	off := 4
	for _, d := range out.Dims {
		binary.LittleEndian.PutUint64(buf[off:], uint64(d))
		off += 8
	}
	copy(buf[off:], out.Data)
	return buf
}
