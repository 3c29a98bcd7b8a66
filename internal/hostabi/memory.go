// Package hostabi implements the C-ABI-shaped host-call bridge guest
// modules use to reach the relational and key-value backend adapters. Every
// exported function takes guest pointer/length pairs into linear memory and
// returns a plain int32 status/size code — there is no rich error type
// crossing the guest/host boundary, only the codes documented per function.
package hostabi

import (
	"fmt"

	"github.com/bytecodealliance/wasmtime-go/v14"
)

// guestMemory resolves the caller's exported "memory" and returns its
// backing byte slice. Every host call needs this before it can read
// arguments or write results back into the guest's address space.
func guestMemory(caller *wasmtime.Caller) ([]byte, error) {
	ext := caller.GetExport("memory")
	if ext == nil {
		return nil, fmt.Errorf("guest module does not export memory")
	}
	mem := ext.Memory()
	if mem == nil {
		return nil, fmt.Errorf("guest export \"memory\" is not a memory")
	}
	return mem.UnsafeData(caller), nil
}

// readGuestBytes copies length bytes at ptr out of guest memory. Negative
// ptr/length and out-of-bounds ranges are rejected rather than clamped —
// callers treat any error here as a bad-memory fault (error code -2 or -3
// depending on the calling function, per the host bridge contract).
func readGuestBytes(caller *wasmtime.Caller, ptr, length int32) ([]byte, error) {
	if ptr < 0 || length < 0 {
		return nil, fmt.Errorf("negative pointer or length")
	}
	mem, err := guestMemory(caller)
	if err != nil {
		return nil, err
	}
	start, end := int(ptr), int(ptr)+int(length)
	if end > len(mem) {
		return nil, fmt.Errorf("read out of bounds: [%d:%d) memory len %d", start, end, len(mem))
	}
	out := make([]byte, length)
	copy(out, mem[start:end])
	return out, nil
}

// writeGuestBytes copies data into guest memory starting at ptr, bounded by
// capacity. It returns the number of bytes written, or an error if ptr is
// negative or out of bounds. Callers that need "does it fit" semantics
// compare the returned count (or len(data)) against capacity themselves.
func writeGuestBytes(caller *wasmtime.Caller, ptr, capacity int32, data []byte) (int, error) {
	if ptr < 0 || capacity < 0 {
		return 0, fmt.Errorf("negative pointer or capacity")
	}
	mem, err := guestMemory(caller)
	if err != nil {
		return 0, err
	}
	start := int(ptr)
	if start+int(capacity) > len(mem) {
		return 0, fmt.Errorf("write out of bounds: start %d capacity %d memory len %d", start, capacity, len(mem))
	}
	if len(data) > int(capacity) {
		return 0, fmt.Errorf("payload %d bytes exceeds capacity %d", len(data), capacity)
	}
	copy(mem[start:start+len(data)], data)
	return len(data), nil
}
