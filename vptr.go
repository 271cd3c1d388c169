// Package vptr implements single-word dynamic-dispatch handles.
//
// A conventional Go interface value is a fat reference: two words, one for
// the data pointer and one for the table pointer. This package lets a
// concrete type opt into one-word handles instead. The type embeds one
// pointer-sized Field per implemented interface; the field holds a pointer
// to a static Descriptor that pairs the pair's method table with the field's
// byte offset inside the type. A Handle is then just the address of that
// field: following it yields the descriptor, and subtracting the recorded
// offset from the field's own address yields the object base, which together
// are everything dynamic dispatch needs.
//
// The method table for an interface is an ordinary struct whose fields are
// func values taking the object base address as their first argument. Tables
// and descriptors are registered once per (concrete type, interface) pair
// with Register and are immutable afterward, so any number of goroutines may
// dispatch through them without synchronization.
//
// Wiring a type up by hand is mechanical and error prone; the vptr-gen
// command generates the method-table type, the Register call, a typed
// reference wrapper, and a binder that initializes every embedded field.
// A hand-wired pair looks like this:
//
//	type quackerVTable struct {
//		Quack func(self unsafe.Pointer) string
//	}
//
//	type duck struct {
//		name string
//		vq   vptr.Field[quackerVTable]
//	}
//
//	var duckQuackerDesc = vptr.Register[duck](unsafe.Offsetof(duck{}.vq), quackerVTable{
//		Quack: func(self unsafe.Pointer) string { return (*duck)(self).Quack() },
//	}, nil)
//
//	func newDuck(name string) *duck {
//		d := &duck{name: name}
//		d.vq.Bind(duckQuackerDesc)
//		return d
//	}
//
// A handle taken with d.vq.Handle() is one pointer wide and dispatches
// Quack through the table while the duck is alive. The handle does not own
// the duck and must not outlive it.
package vptr
