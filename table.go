package vptr

import "unsafe"

// VTable holds the method entry points for one (concrete type, interface)
// pair plus layout metadata for the concrete type. V is a struct whose
// fields are func values taking the object base address as their first
// argument, one per interface method, in the interface's canonical method
// order. Tables are built by Register and never mutated afterward.
type VTable[V any] struct {
	methods V
	size    uintptr
	align   uintptr
	drop    func(unsafe.Pointer)
}

// Methods returns the entry-point record. Callers must treat it as
// read-only.
func (t *VTable[V]) Methods() *V { return &t.methods }

// Size returns the concrete type's size in bytes.
func (t *VTable[V]) Size() uintptr { return t.size }

// Align returns the concrete type's alignment in bytes.
func (t *VTable[V]) Align() uintptr { return t.align }

// Drop invokes the destruction entry point against the object at base.
// Every table has one; for types without teardown it is a no-op.
func (t *VTable[V]) Drop(base unsafe.Pointer) { t.drop(base) }

// Descriptor binds a VTable to the byte offset of the embedded dispatch
// field within the concrete type's layout. One Descriptor exists per
// (concrete type, interface) pair, shared by every instance.
type Descriptor[V any] struct {
	table  *VTable[V]
	offset uintptr
}

// Table returns the pair's method table.
func (d *Descriptor[V]) Table() *VTable[V] { return d.table }

// Offset returns the byte offset of the embedded dispatch field within the
// concrete type.
func (d *Descriptor[V]) Offset() uintptr { return d.offset }

// Resolve recovers the object base address from the address of the embedded
// dispatch field. fieldAddr must be the address of the field this
// descriptor was registered for, inside a live instance.
func (d *Descriptor[V]) Resolve(fieldAddr unsafe.Pointer) unsafe.Pointer {
	return unsafe.Add(fieldAddr, -int(d.offset))
}
