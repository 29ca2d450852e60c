//go:build wasip1

package decoder

import "github.com/scriptmaster/wasinn-gateway/guest/wasiabi"

// Real NN-SI and chatbot host imports (spec §4.2, §4.3, §6). Every
// go:wasmimport declaration here must match the host module/function names
// internal/nnsi and internal/callback register on the wazero side.

//go:wasmimport nn-si load_by_name
func hostLoadByName(namePtr, nameLen uint32) uint64

//go:wasmimport nn-si init_execution_context
func hostInitExecutionContext(graphHandle uint32) uint64

//go:wasmimport nn-si set_input
func hostSetInput(ctxHandle, namePtr, nameLen, dimsPtr, dimsLen, elemType, dataPtr, dataLen uint32) uint32

//go:wasmimport nn-si compute
func hostCompute(ctxHandle uint32) uint32

//go:wasmimport nn-si get_output_size
func hostGetOutputSize(ctxHandle, namePtr, nameLen uint32) uint64

//go:wasmimport nn-si get_output_read
func hostGetOutputRead(ctxHandle, namePtr, nameLen, destPtr, destLen uint32) uint32

//go:wasmimport chatbot generate
func hostGenerate(sessionID uint64, token uint32) uint32

const errHandle64 = 0xFFFFFFFF

// NNSIClient implements NNSI against one ExecutionContext handle, resolved
// once via load_by_name + init_execution_context (spec §4.4
// "Registration").
type NNSIClient struct {
	ctxHandle uint32
}

// BindGraph resolves modelID to a Graph and creates an ExecutionContext for
// it. Every exported entry point calls this first: the guest has no way to
// hold a handle across separate host calls other than resolving it fresh
// each time a Store-scoped instance is asked to run.
func BindGraph(modelID string) (*NNSIClient, bool) {
	namePtr, nameLen := wasiabi.StringPtr(modelID)
	graphHandle := hostLoadByName(namePtr, nameLen)
	if graphHandle == errHandle64 {
		return nil, false
	}
	ctxHandle := hostInitExecutionContext(uint32(graphHandle))
	if ctxHandle == errHandle64 {
		return nil, false
	}
	return &NNSIClient{ctxHandle: uint32(ctxHandle)}, true
}

func (c *NNSIClient) SetInput(name string, dims []int64, elemType ElementType, data []byte) bool {
	namePtr, nameLen := wasiabi.StringPtr(name)
	dimsPtr, dimsLen := wasiabi.Int64SlicePtr(dims)
	dataPtr, dataLen := wasiabi.BytesPtr(data)
	return hostSetInput(c.ctxHandle, namePtr, nameLen, dimsPtr, dimsLen, uint32(elemType), dataPtr, dataLen) == 1
}

func (c *NNSIClient) Compute() bool {
	return hostCompute(c.ctxHandle) == 1
}

func (c *NNSIClient) Output(name string) (dims []int64, data []byte, ok bool) {
	namePtr, nameLen := wasiabi.StringPtr(name)
	size := hostGetOutputSize(c.ctxHandle, namePtr, nameLen)
	if size == errHandle64 {
		return nil, nil, false
	}
	buf := make([]byte, size)
	destPtr, destLen := wasiabi.BytesPtr(buf)
	if hostGetOutputRead(c.ctxHandle, namePtr, nameLen, destPtr, destLen) != 1 {
		return nil, nil, false
	}
	return unpackOutput(buf)
}

// unpackOutput decodes the host's [u32 ndims][i64 dims...][data] wire
// format, the same shape internal/nnsi's packOutput produces on the other
// side of get_output_read.
func unpackOutput(buf []byte) (dims []int64, data []byte, ok bool) {
	if len(buf) < 4 {
		return nil, nil, false
	}
	ndims := int(leUint32(buf))
	off := 4 + ndims*8
	if off > len(buf) {
		return nil, nil, false
	}
	dims = make([]int64, ndims)
	for i := range dims {
		dims[i] = int64(leUint64(buf[4+i*8:]))
	}
	return dims, buf[off:], true
}

// ChatbotClient implements Callback against the real "chatbot" import.
type ChatbotClient struct{}

func (ChatbotClient) Generate(sessionID uint64, token uint32) uint32 {
	return hostGenerate(sessionID, token)
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}
