package mmio

import (
	"sync/atomic"
	"unsafe"
)

// AtomicU32 is an atomic view of a 4-byte-aligned uint32 cell inside
// a mapping's memory. It performs no locking of its own: the mapping
// guarantees the backing slice's address is stable for the lifetime
// of the view (resizes replace m.data wholesale under exclusive lock,
// which callers must not race with an outstanding AtomicU32).
type AtomicU32 struct {
	p *uint32
}

// AtomicU64 is an atomic view of an 8-byte-aligned uint64 cell.
type AtomicU64 struct {
	p *uint64
}

// NewAtomicU32 returns an atomic view of the 4 bytes at offset.
// offset must be a multiple of 4; violating this returns
// ErrMisaligned rather than silently tearing on architectures that
// don't support unaligned atomics. Rejected on ModeReadOnly mappings:
// Store/Add would otherwise write through a PROT_READ page and crash
// the process rather than return a Go error.
func (m *Mapping) NewAtomicU32(offset int64) (*AtomicU32, error) {
	if err := m.checkLive(); err != nil {
		return nil, err
	}
	if m.mode == ModeReadOnly {
		return nil, &ErrInvalidMode{Mode: m.mode, Operation: "NewAtomicU32"}
	}
	if offset%4 != 0 {
		return nil, &ErrMisaligned{Required: 4, Offset: offset}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkBounds(offset, 4); err != nil {
		return nil, err
	}
	return &AtomicU32{p: (*uint32)(unsafe.Pointer(&m.data[offset]))}, nil
}

// NewAtomicU64 returns an atomic view of the 8 bytes at offset.
// offset must be a multiple of 8.
func (m *Mapping) NewAtomicU64(offset int64) (*AtomicU64, error) {
	if err := m.checkLive(); err != nil {
		return nil, err
	}
	if m.mode == ModeReadOnly {
		return nil, &ErrInvalidMode{Mode: m.mode, Operation: "NewAtomicU64"}
	}
	if offset%8 != 0 {
		return nil, &ErrMisaligned{Required: 8, Offset: offset}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkBounds(offset, 8); err != nil {
		return nil, err
	}
	return &AtomicU64{p: (*uint64)(unsafe.Pointer(&m.data[offset]))}, nil
}

// Load atomically reads the cell.
func (a *AtomicU32) Load() uint32 { return atomic.LoadUint32(a.p) }

// Store atomically writes the cell. Durability still requires the
// owning Mapping's Flush/FlushRange or flush policy.
func (a *AtomicU32) Store(v uint32) { atomic.StoreUint32(a.p, v) }

// Add atomically adds delta and returns the new value.
func (a *AtomicU32) Add(delta uint32) uint32 { return atomic.AddUint32(a.p, delta) }

// CompareAndSwap atomically compares the cell to old and, if equal,
// swaps in new.
func (a *AtomicU32) CompareAndSwap(old, new uint32) bool {
	return atomic.CompareAndSwapUint32(a.p, old, new)
}

// Load atomically reads the cell.
func (a *AtomicU64) Load() uint64 { return atomic.LoadUint64(a.p) }

// Store atomically writes the cell.
func (a *AtomicU64) Store(v uint64) { atomic.StoreUint64(a.p, v) }

// Add atomically adds delta and returns the new value.
func (a *AtomicU64) Add(delta uint64) uint64 { return atomic.AddUint64(a.p, delta) }

// CompareAndSwap atomically compares the cell to old and, if equal,
// swaps in new.
func (a *AtomicU64) CompareAndSwap(old, new uint64) bool {
	return atomic.CompareAndSwapUint64(a.p, old, new)
}

// AtomicU32Slice is a contiguous run of independently atomic uint32
// cells, e.g. a counter table or ring-buffer index block.
type AtomicU32Slice struct {
	p []uint32
}

// AtomicU64Slice is a contiguous run of independently atomic uint64
// cells.
type AtomicU64Slice struct {
	p []uint64
}

// NewAtomicU32Slice returns an atomic view of n consecutive uint32
// cells starting at offset. offset must be a multiple of 4.
func (m *Mapping) NewAtomicU32Slice(offset int64, n int) (*AtomicU32Slice, error) {
	if err := m.checkLive(); err != nil {
		return nil, err
	}
	if m.mode == ModeReadOnly {
		return nil, &ErrInvalidMode{Mode: m.mode, Operation: "NewAtomicU32Slice"}
	}
	if offset%4 != 0 {
		return nil, &ErrMisaligned{Required: 4, Offset: offset}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkBounds(offset, int64(n)*4); err != nil {
		return nil, err
	}
	base := (*uint32)(unsafe.Pointer(&m.data[offset]))
	return &AtomicU32Slice{p: unsafe.Slice(base, n)}, nil
}

// NewAtomicU64Slice returns an atomic view of n consecutive uint64
// cells starting at offset. offset must be a multiple of 8.
func (m *Mapping) NewAtomicU64Slice(offset int64, n int) (*AtomicU64Slice, error) {
	if err := m.checkLive(); err != nil {
		return nil, err
	}
	if m.mode == ModeReadOnly {
		return nil, &ErrInvalidMode{Mode: m.mode, Operation: "NewAtomicU64Slice"}
	}
	if offset%8 != 0 {
		return nil, &ErrMisaligned{Required: 8, Offset: offset}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkBounds(offset, int64(n)*8); err != nil {
		return nil, err
	}
	base := (*uint64)(unsafe.Pointer(&m.data[offset]))
	return &AtomicU64Slice{p: unsafe.Slice(base, n)}, nil
}

// Len returns the number of cells in the slice.
func (s *AtomicU32Slice) Len() int { return len(s.p) }

// Load atomically reads the cell at index i.
func (s *AtomicU32Slice) Load(i int) uint32 { return atomic.LoadUint32(&s.p[i]) }

// Store atomically writes the cell at index i.
func (s *AtomicU32Slice) Store(i int, v uint32) { atomic.StoreUint32(&s.p[i], v) }

// Add atomically adds delta to the cell at index i and returns the
// new value.
func (s *AtomicU32Slice) Add(i int, delta uint32) uint32 { return atomic.AddUint32(&s.p[i], delta) }

// Len returns the number of cells in the slice.
func (s *AtomicU64Slice) Len() int { return len(s.p) }

// Load atomically reads the cell at index i.
func (s *AtomicU64Slice) Load(i int) uint64 { return atomic.LoadUint64(&s.p[i]) }

// Store atomically writes the cell at index i.
func (s *AtomicU64Slice) Store(i int, v uint64) { atomic.StoreUint64(&s.p[i], v) }

// Add atomically adds delta to the cell at index i and returns the
// new value.
func (s *AtomicU64Slice) Add(i int, delta uint64) uint64 { return atomic.AddUint64(&s.p[i], delta) }
