package vptr

import "unsafe"

// Handle is a single-pointer, non-owning dynamic reference to one concrete
// instance, scoped to one interface. Its sole word is the address of the
// instance's embedded Field for that interface, so
// unsafe.Sizeof(Handle[V]{}) always equals the size of one native pointer.
//
// Handles compare equal exactly when they reference the same field of the
// same instance. A handle never outlives its instance; enforcing that is
// the caller's responsibility.
type Handle[V any] struct {
	slot *Field[V]
}

// Resolve performs one dispatch step: load the descriptor stored in the
// field, recover the object base from the field's address, and return the
// method table record alongside the base. The full sequence runs on every
// call; a handle caches nothing.
//
// Resolve panics if the handle is the zero Handle or if the underlying
// field was never bound.
func (h Handle[V]) Resolve() (*V, unsafe.Pointer) {
	d := h.descriptor()
	return &d.table.methods, d.Resolve(unsafe.Pointer(h.slot))
}

// Descriptor returns the descriptor the underlying field is bound to. It
// returns nil for the zero Handle or an unbound field.
func (h Handle[V]) Descriptor() *Descriptor[V] {
	if h.slot == nil {
		return nil
	}
	return h.slot.desc
}

// Drop invokes the table's destruction entry point against the resolved
// object base. The handle itself never owns the instance; a container that
// does own the underlying storage calls Drop to tear the instance down
// type-erased before reclaiming it.
func (h Handle[V]) Drop() {
	d := h.descriptor()
	d.table.drop(d.Resolve(unsafe.Pointer(h.slot)))
}

func (h Handle[V]) descriptor() *Descriptor[V] {
	if h.slot == nil {
		panic("vptr: dispatch through zero handle")
	}
	if h.slot.desc == nil {
		panic("vptr: dispatch through unassociated field")
	}
	return h.slot.desc
}
