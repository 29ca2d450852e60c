// Package wasiabi holds the raw linear-memory pointer arithmetic the wasip1
// guest binaries need to cross the NN-SI/chatbot ABI boundary: turning a Go
// slice or string into the (ptr, len) pair an import expects, and turning a
// (ptr, len) pair the host handed to an export back into Go values. Kept
// separate from guest/decoder so the decode-loop logic in that package stays
// free of unsafe and portable to ordinary host-side tests.
package wasiabi

import "unsafe"

// BytesPtr returns the linear-memory address and length of b.
func BytesPtr(b []byte) (ptr, length uint32) {
	if len(b) == 0 {
		return 0, 0
	}
	return uint32(uintptr(unsafe.Pointer(&b[0]))), uint32(len(b))
}

// StringPtr returns the linear-memory address and length of s.
func StringPtr(s string) (ptr, length uint32) {
	if len(s) == 0 {
		return 0, 0
	}
	return uint32(uintptr(unsafe.Pointer(unsafe.StringData(s)))), uint32(len(s))
}

// Int64SlicePtr returns the linear-memory address and element count of xs.
func Int64SlicePtr(xs []int64) (ptr, length uint32) {
	if len(xs) == 0 {
		return 0, 0
	}
	return uint32(uintptr(unsafe.Pointer(&xs[0]))), uint32(len(xs))
}

// ReadBytes reconstructs a byte slice view over length bytes at ptr. The
// caller must copy out anything it needs to keep past the exported
// function returning, since the host is free to reuse that memory region.
func ReadBytes(ptr, length uint32) []byte {
	if length == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr))), length)
}

// ReadString is ReadBytes with a string view instead of a byte slice.
func ReadString(ptr, length uint32) string {
	if length == 0 {
		return ""
	}
	return unsafe.String((*byte)(unsafe.Pointer(uintptr(ptr))), length)
}

// WriteBytes copies data into the length bytes at ptr. The caller is
// responsible for having allocated at least len(data) bytes there (normally
// via the guest's own "alloc" export, which the host calls first).
func WriteBytes(ptr uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	dst := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr))), len(data))
	copy(dst, data)
}
