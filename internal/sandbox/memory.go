package sandbox

import (
	"context"

	"github.com/tetratelabs/wazero/api"
)

// Memory provides safe memory operations for guest interaction.
//
// Guest modules have their own isolated memory space separate from Go's
// memory. All reads are bounds-checked by wazero; writes go through the
// guest's own allocator so the guest stays in control of its heap layout.
type Memory struct {
	mem   api.Memory
	alloc api.Function
}

// newMemory creates a memory helper for an instantiated guest module.
// alloc may be nil for guests that never receive host-written data.
func newMemory(module api.Module, alloc api.Function) *Memory {
	return &Memory{mem: module.Memory(), alloc: alloc}
}

// ReadString reads a null-terminated string from guest memory.
func (m *Memory) ReadString(ptr uint32, maxLen uint32) (string, bool) {
	buf, ok := m.mem.Read(ptr, maxLen)
	if !ok {
		return "", false
	}

	end := len(buf)
	for i, b := range buf {
		if b == 0 {
			end = i
			break
		}
	}

	return string(buf[:end]), true
}

// ReadBytes reads raw bytes from guest memory.
func (m *Memory) ReadBytes(ptr uint32, length uint32) ([]byte, bool) {
	return m.mem.Read(ptr, length)
}

// WriteBytes copies data into guest memory via the guest's allocator.
// Returns the guest pointer and length of the written region.
func (m *Memory) WriteBytes(ctx context.Context, data []byte) (uint32, uint32, error) {
	if m.alloc == nil {
		return 0, 0, &MemoryAccessError{Operation: "alloc", Length: uint32(len(data))}
	}

	results, err := m.alloc.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, 0, err
	}
	ptr := uint32(results[0])

	if !m.mem.Write(ptr, data) {
		return 0, 0, &MemoryAccessError{Operation: "write", Address: ptr, Length: uint32(len(data))}
	}

	return ptr, uint32(len(data)), nil
}
