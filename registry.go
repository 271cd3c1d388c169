package vptr

import (
	"fmt"
	"reflect"
	"sync"
	"unsafe"
)

const ptrSize = unsafe.Sizeof(uintptr(0))

type pairKey struct {
	concrete reflect.Type
	vtable   reflect.Type
}

func (k pairKey) String() string {
	return k.concrete.String() + "/" + k.vtable.String()
}

var (
	registryMu sync.Mutex
	registry   = map[pairKey]any{}
)

// Register creates the process-wide Descriptor for the (T, V) pair. offset
// is the byte offset of T's embedded Field[V], as produced by
// unsafe.Offsetof; methods is the fully populated entry-point record; drop
// is T's destruction entry point, or nil when T needs no teardown.
//
// Registration is idempotent and safe for concurrent use: repeat calls for
// the same pair return the descriptor created first. A repeat call with a
// different offset panics, as does a methods record that is not a struct of
// non-nil funcs or an offset that does not land on a pointer-aligned slot
// inside T. These are build-wiring defects, surfaced as soon as the
// generated package-level var initializers run.
func Register[T any, V any](offset uintptr, methods V, drop func(*T)) *Descriptor[V] {
	key := pairKey{
		concrete: reflect.TypeOf((*T)(nil)).Elem(),
		vtable:   reflect.TypeOf((*V)(nil)).Elem(),
	}
	checkMethods(key, reflect.ValueOf(methods))
	checkOffset(key, offset, unsafe.Sizeof(*new(T)))

	registryMu.Lock()
	defer registryMu.Unlock()

	if existing, ok := registry[key]; ok {
		d := existing.(*Descriptor[V])
		if d.offset != offset {
			panic(fmt.Sprintf("vptr: conflicting registration for %s: offset %d, previously %d", key, offset, d.offset))
		}
		return d
	}

	erased := func(unsafe.Pointer) {}
	if drop != nil {
		erased = func(base unsafe.Pointer) { drop((*T)(base)) }
	}

	d := &Descriptor[V]{
		table: &VTable[V]{
			methods: methods,
			size:    unsafe.Sizeof(*new(T)),
			align:   unsafe.Alignof(*new(T)),
			drop:    erased,
		},
		offset: offset,
	}
	registry[key] = d
	return d
}

func checkMethods(key pairKey, methods reflect.Value) {
	vt := methods.Type()
	if vt.Kind() != reflect.Struct {
		panic(fmt.Sprintf("vptr: %s: methods record is %s, want struct", key, vt.Kind()))
	}
	for i := 0; i < vt.NumField(); i++ {
		f := vt.Field(i)
		if f.Type.Kind() != reflect.Func {
			panic(fmt.Sprintf("vptr: %s: slot %s is %s, want func", key, f.Name, f.Type.Kind()))
		}
		if methods.Field(i).IsNil() {
			panic(fmt.Sprintf("vptr: %s: slot %s is nil", key, f.Name))
		}
	}
}

func checkOffset(key pairKey, offset, size uintptr) {
	if offset%unsafe.Alignof(uintptr(0)) != 0 {
		panic(fmt.Sprintf("vptr: %s: offset %d is not pointer aligned", key, offset))
	}
	if offset+ptrSize > size {
		panic(fmt.Sprintf("vptr: %s: offset %d leaves no room for a pointer in %d bytes", key, offset, size))
	}
}
