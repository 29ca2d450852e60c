//go:build wasip1

// Command chat is the autoregressive chat guest: a reactor-style wasip1
// binary exporting alloc/infer_text/completion_size/completion_read (spec
// §4.4 "LLM path"). Generated tokens reach the client exclusively through
// the chatbot.generate broadcast callback (spec §4.3), since the guest
// holds no tokenizer of its own; completion_size/completion_read exist for
// ABI symmetry with the image guest and currently always report an empty
// buffer, which internal/httpapi falls back to a placeholder string for.
package main

import (
	"github.com/scriptmaster/wasinn-gateway/guest/decoder"
	"github.com/scriptmaster/wasinn-gateway/guest/wasiabi"
)

var retained [][]byte

//go:wasmexport alloc
func alloc(size uint32) uint32 {
	buf := make([]byte, size)
	retained = append(retained, buf)
	ptr, _ := wasiabi.BytesPtr(buf)
	return ptr
}

//go:wasmexport infer_text
func inferText(sessionID uint64, modelIDPtr, modelIDLen, inputPtr, inputLen, maxToken uint32) uint32 {
	modelID := wasiabi.ReadString(modelIDPtr, modelIDLen)
	promptIDs := decodeInt64s(wasiabi.ReadBytes(inputPtr, inputLen*8))

	client, ok := decoder.BindGraph(modelID)
	if !ok {
		return 0
	}
	gen := decoder.NewTextGenerator(sessionID, maxToken, promptIDs, client, decoder.ChatbotClient{})
	return gen.Run().StopStatus()
}

//go:wasmexport completion_size
func completionSize() uint32 {
	return 0
}

//go:wasmexport completion_read
func completionRead(destPtr, destLen uint32) uint32 {
	return 1
}

func decodeInt64s(b []byte) []int64 {
	out := make([]int64, len(b)/8)
	for i := range out {
		var v uint64
		for j := 0; j < 8; j++ {
			v |= uint64(b[i*8+j]) << (8 * j)
		}
		out[i] = int64(v)
	}
	return out
}

func main() {}
