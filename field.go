package vptr

// Field is the embedded dispatch slot a concrete type declares once per
// implemented interface: a single pointer-sized member holding a reference
// to the pair's static Descriptor.
//
// The zero Field is valid but unassociated; dispatching through a handle
// rooted at an unassociated field panics. Constructors must Bind every
// declared field (or assign NewField) before the instance is exposed to any
// code that might take a handle from it. A field is bound exactly once, at
// construction; it is never reassigned afterward, which is what makes
// unsynchronized concurrent dispatch safe.
type Field[V any] struct {
	desc *Descriptor[V]
}

// NewField returns a field already associated with d.
func NewField[V any](d *Descriptor[V]) Field[V] {
	return Field[V]{desc: d}
}

// Bind associates the field with its pair's descriptor.
func (f *Field[V]) Bind(d *Descriptor[V]) { f.desc = d }

// Bound reports whether the field has been associated with a descriptor.
func (f *Field[V]) Bound() bool { return f.desc != nil }

// Handle returns the single-pointer dynamic reference rooted at this field.
// The instance containing the field must outlive every handle taken from
// it.
func (f *Field[V]) Handle() Handle[V] {
	return Handle[V]{slot: f}
}
