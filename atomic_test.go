package mmio_test

import (
	"sync"
	"testing"

	"github.com/halvard/mmio"
)

func TestAtomicRejectedOnReadOnly(t *testing.T) {
	assert := newAsserter(t)
	fname := createFile(t, randBytes(int(_PAGE)))

	m, err := mmio.OpenRO(fname)
	assert(err == nil, "open-ro: %s", err)
	defer m.Close()

	_, err = m.NewAtomicU32(0)
	assert(err != nil, "NewAtomicU32 on a read-only mapping should fail")

	_, err = m.NewAtomicU64(0)
	assert(err != nil, "NewAtomicU64 on a read-only mapping should fail")

	_, err = m.NewAtomicU32Slice(0, 2)
	assert(err != nil, "NewAtomicU32Slice on a read-only mapping should fail")

	_, err = m.NewAtomicU64Slice(0, 2)
	assert(err != nil, "NewAtomicU64Slice on a read-only mapping should fail")
}

func TestAtomicU32MisalignedOffset(t *testing.T) {
	assert := newAsserter(t)
	fname := tmpName(t)

	m, err := mmio.CreateRW(fname, _PAGE)
	assert(err == nil, "create-rw: %s", err)
	defer m.Close()

	_, err = m.NewAtomicU32(1)
	assert(err != nil, "misaligned offset must be rejected")

	var mis *mmio.ErrMisaligned
	e, ok := err.(*mmio.ErrMisaligned)
	if ok {
		mis = e
	}
	assert(mis != nil, "expected ErrMisaligned, got %T: %v", err, err)
}

func TestAtomicU64LoadStoreAdd(t *testing.T) {
	assert := newAsserter(t)
	fname := tmpName(t)

	m, err := mmio.CreateRW(fname, _PAGE)
	assert(err == nil, "create-rw: %s", err)
	defer m.Close()

	cell, err := m.NewAtomicU64(0)
	assert(err == nil, "new-atomic-u64: %s", err)

	assert(cell.Load() == 0, "expected zero-initialized cell")
	cell.Store(42)
	assert(cell.Load() == 42, "expected 42, saw %d", cell.Load())

	v := cell.Add(8)
	assert(v == 50, "expected 50 after add, saw %d", v)

	ok2 := cell.CompareAndSwap(50, 100)
	assert(ok2, "compare-and-swap should have succeeded")
	assert(cell.Load() == 100, "expected 100, saw %d", cell.Load())
}

func TestAtomicU32ConcurrentFetchAdd(t *testing.T) {
	assert := newAsserter(t)
	fname := tmpName(t)

	m, err := mmio.CreateRW(fname, _PAGE)
	assert(err == nil, "create-rw: %s", err)
	defer m.Close()

	cell, err := m.NewAtomicU32(0)
	assert(err == nil, "new-atomic-u32: %s", err)

	const goroutines = 50
	const perGoroutine = 200

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				cell.Add(1)
			}
		}()
	}
	wg.Wait()

	assert(cell.Load() == goroutines*perGoroutine, "expected %d, saw %d", goroutines*perGoroutine, cell.Load())
}

func TestAtomicU64SliceIndependentCells(t *testing.T) {
	assert := newAsserter(t)
	fname := tmpName(t)

	m, err := mmio.CreateRW(fname, _PAGE)
	assert(err == nil, "create-rw: %s", err)
	defer m.Close()

	cells, err := m.NewAtomicU64Slice(0, 4)
	assert(err == nil, "new-atomic-u64-slice: %s", err)
	assert(cells.Len() == 4, "expected 4 cells, saw %d", cells.Len())

	for i := 0; i < 4; i++ {
		cells.Store(i, uint64(i*10))
	}
	for i := 0; i < 4; i++ {
		assert(cells.Load(i) == uint64(i*10), "cell %d: expected %d, saw %d", i, i*10, cells.Load(i))
	}

	v := cells.Add(2, 5)
	assert(v == 25, "expected 25, saw %d", v)
}
