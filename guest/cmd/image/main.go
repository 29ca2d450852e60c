//go:build wasip1

// Command image is the image-classification guest: a reactor-style wasip1
// binary exporting alloc/classify_image/classify_result_size/
// classify_result_read for the sandbox host to drive (spec §4.4 "Image
// path"). It never runs as a process in the usual sense — _initialize runs,
// then the host calls its exports directly, one request per instance.
package main

import (
	"encoding/binary"
	"math"

	"github.com/scriptmaster/wasinn-gateway/guest/decoder"
	"github.com/scriptmaster/wasinn-gateway/guest/wasiabi"
)

// retained keeps every alloc'd buffer alive for the instance's lifetime;
// each Store is a fresh wasm instance torn down after one request, so there
// is nothing to reclaim mid-flight.
var retained [][]byte

//go:wasmexport alloc
func alloc(size uint32) uint32 {
	buf := make([]byte, size)
	retained = append(retained, buf)
	ptr, _ := wasiabi.BytesPtr(buf)
	return ptr
}

var lastLabel uint32
var lastProbability float32

//go:wasmexport classify_image
func classifyImage(modelIDPtr, modelIDLen, outputTagPtr, outputTagLen, layout, dataPtr, dataLen, height, width uint32) uint32 {
	modelID := wasiabi.ReadString(modelIDPtr, modelIDLen)
	outputTag := wasiabi.ReadString(outputTagPtr, outputTagLen)
	data := wasiabi.ReadBytes(dataPtr, dataLen)

	client, ok := decoder.BindGraph(modelID)
	if !ok {
		return 0
	}
	dims := []int64{1, 3, int64(height), int64(width)}
	if !client.SetInput("data", dims, decoder.ElementTypeF32, data) {
		return 0
	}
	if !client.Compute() {
		return 0
	}
	_, out, ok := client.Output(outputTag)
	if !ok {
		return 0
	}

	logits := decodeFloat32s(out)
	label, prob := decoder.ClassifyImage(decoder.OutputLayout(layout), logits)
	lastLabel, lastProbability = label, prob
	return 1
}

//go:wasmexport classify_result_size
func classifyResultSize() uint32 {
	return 12 // u32 label, f32 probability, u32 topk_count(0)
}

//go:wasmexport classify_result_read
func classifyResultRead(destPtr, destLen uint32) uint32 {
	if destLen < 12 {
		return 0
	}
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint32(buf[0:], lastLabel)
	binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(lastProbability))
	binary.LittleEndian.PutUint32(buf[8:], 0)
	wasiabi.WriteBytes(destPtr, buf)
	return 1
}

func decodeFloat32s(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

func main() {}
