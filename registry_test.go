package vptr

import (
	"sync"
	"testing"
	"unsafe"
)

func TestRegisterIdempotent(t *testing.T) {
	d := Register[talker](unsafe.Offsetof(talker{}.vg), greeterVTable{
		Greet: func(self unsafe.Pointer, name string) string { return (*talker)(self).Greet(name) },
		Count: func(self unsafe.Pointer) int { return (*talker)(self).Count() },
	}, nil)
	if d != talkerGreeterDesc {
		t.Fatalf("repeat registration returned %p, want %p", d, talkerGreeterDesc)
	}
}

func TestRegisterConflictPanics(t *testing.T) {
	type twoSlots struct {
		a Field[markerVTable]
		b Field[markerVTable]
	}
	Register[twoSlots](unsafe.Offsetof(twoSlots{}.a), markerVTable{}, nil)
	mustPanic(t, "conflicting registration", func() {
		Register[twoSlots](unsafe.Offsetof(twoSlots{}.b), markerVTable{}, nil)
	})
}

func TestRegisterValidation(t *testing.T) {
	type holder struct {
		f Field[greeterVTable]
	}

	t.Run("nilSlot", func(t *testing.T) {
		mustPanic(t, "slot Greet is nil", func() {
			Register[holder](0, greeterVTable{
				Count: func(unsafe.Pointer) int { return 0 },
			}, nil)
		})
	})

	t.Run("nonStructRecord", func(t *testing.T) {
		mustPanic(t, "want struct", func() {
			Register[holder](0, 0, nil)
		})
	})

	t.Run("misalignedOffset", func(t *testing.T) {
		mustPanic(t, "not pointer aligned", func() {
			Register[talker](1, greeterVTable{
				Greet: func(self unsafe.Pointer, name string) string { return "" },
				Count: func(self unsafe.Pointer) int { return 0 },
			}, nil)
		})
	})

	t.Run("offsetPastEnd", func(t *testing.T) {
		mustPanic(t, "no room for a pointer", func() {
			Register[holder](unsafe.Sizeof(holder{}), greeterVTable{
				Greet: func(self unsafe.Pointer, name string) string { return "" },
				Count: func(self unsafe.Pointer) int { return 0 },
			}, nil)
		})
	})
}

func TestRegisterConcurrent(t *testing.T) {
	type parallel struct {
		m Field[markerVTable]
	}

	const n = 16
	results := make([]*Descriptor[markerVTable], n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = Register[parallel](unsafe.Offsetof(parallel{}.m), markerVTable{}, nil)
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if results[i] != results[0] {
			t.Fatalf("concurrent registration %d produced %p, want %p", i, results[i], results[0])
		}
	}
}
