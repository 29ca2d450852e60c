package nnsi

import "sync"

// ResourceTable tracks ExecutionContexts allocated during one sandbox.Store's
// lifetime so releasing the Store releases all of them atomically
// (spec §4.2 "Resource discipline").
type ResourceTable struct {
	mu   sync.Mutex
	next uint32
	ctxs map[uint32]*ExecutionContext
}

// NewResourceTable constructs an empty table for one Store.
func NewResourceTable() *ResourceTable {
	return &ResourceTable{ctxs: make(map[uint32]*ExecutionContext)}
}

// Insert stores ec and returns an opaque handle the guest can pass back on
// subsequent set_input/compute/get_output calls.
func (rt *ResourceTable) Insert(ec *ExecutionContext) uint32 {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.next++
	h := rt.next
	rt.ctxs[h] = ec
	return h
}

// Get resolves a handle back to its ExecutionContext.
func (rt *ResourceTable) Get(handle uint32) (*ExecutionContext, bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	ec, ok := rt.ctxs[handle]
	return ec, ok
}

// ReleaseAll drops every context in the table. Called once when the owning
// Store is closed.
func (rt *ResourceTable) ReleaseAll() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	for h := range rt.ctxs {
		delete(rt.ctxs, h)
	}
}
