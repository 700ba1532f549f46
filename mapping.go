// Package mmio provides a cross-platform, memory-mapped file core:
// safe concurrent access to file-backed memory with configurable
// durability semantics, atomic views, and an in-place resize
// protocol. It targets embedded key-value stores, binary asset
// caches, telemetry ring buffers, and concurrent counters that
// benefit from the kernel's unified page cache.
package mmio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	zlog "github.com/semihalev/log"
)

// Mode is a mapping's access mode. It is fixed for the lifetime of a
// mapping and determines which operations are legal.
type Mode int

const (
	// ModeReadOnly shares the mapping for read-only access. Any
	// mutation operation fails with ErrInvalidMode.
	ModeReadOnly Mode = iota

	// ModeReadWrite shares the mapping; writes are visible to other
	// mappings of the same file after a successful Flush and are
	// carried through to the file.
	ModeReadWrite

	// ModeCopyOnWrite creates a process-private mapping. Writes are
	// visible through this mapping only; Flush is a no-op and writes
	// never reach the file.
	ModeCopyOnWrite
)

func (m Mode) String() string {
	switch m {
	case ModeReadOnly:
		return "read-only"
	case ModeReadWrite:
		return "read-write"
	case ModeCopyOnWrite:
		return "copy-on-write"
	default:
		return "unknown"
	}
}

// Advice is a kernel hint about expected access patterns.
type Advice int

const (
	AdviceNormal Advice = iota
	AdviceRandom
	AdviceSequential
	AdviceWillNeed
	AdviceDontNeed
)

// TouchHint controls whether a mapping is pre-warmed at construction.
type TouchHint int

const (
	// TouchNever never touches the region.
	TouchNever TouchHint = iota
	// TouchEager reads the first byte of every page at construction.
	TouchEager
	// TouchLazy defers residency entirely to page faults.
	TouchLazy
)

// state is the lifecycle state of a Mapping (spec.md 4.2 state
// machine, collapsed to what's externally observable: Active and
// Unmapped/fatal are the only states callers can detect via errors,
// since Writing/Reading are just the RWMutex held by a live guard).
type state int32

const (
	stateActive state = iota
	stateDraining
	stateUnmapped
)

// Mapping owns one open file and one mapped region. It is safe for
// concurrent use by multiple goroutines: reads may proceed in
// parallel, but at most one writer guard is live at a time.
type Mapping struct {
	mu sync.RWMutex

	path string
	mode Mode
	perm os.FileMode
	file *os.File

	data     []byte
	plat     platformState
	pageSize int

	hugePages bool
	tier      hugePageTier
	advice    *Advice
	populate  bool
	touchHint TouchHint

	logger *zlog.StructuredLogger

	flushCtl *flushController

	lockedPages bool

	st    atomic.Int32
	fatal atomic.Pointer[error]
}

// Len returns the mapped length in bytes.
func (m *Mapping) Len() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.data))
}

// IsEmpty reports whether the mapped length is zero. A successfully
// constructed mapping is never empty (spec.md 3 invariants), but a
// mapping whose resize failed after the old region was unmapped, or
// one that has been closed, reports zero length from then on.
func (m *Mapping) IsEmpty() bool {
	return m.Len() == 0
}

// Path returns the absolute file path this mapping was opened from.
func (m *Mapping) Path() string { return m.path }

// Mode returns the mapping's access mode.
func (m *Mapping) Mode() Mode { return m.mode }

func (m *Mapping) checkLive() error {
	if p := m.fatal.Load(); p != nil {
		return *p
	}
	if state(m.st.Load()) != stateActive {
		return &ErrClosed{}
	}
	return nil
}

func (m *Mapping) setFatal(err error) {
	m.fatal.Store(&err)
}

func (m *Mapping) checkBounds(offset, length int64) error {
	total := int64(len(m.data))
	if offset < 0 || length < 0 || offset+length > total {
		return &ErrOutOfBounds{Offset: offset, Len: length, Total: total}
	}
	return nil
}

// open is the common constructor path shared by CreateRW/OpenRO/
// OpenRW/OpenCOW: open the file, size it, establish the mapping, and
// apply the construction-time options.
func open(path string, mode Mode, create bool, size int64, opts *options) (*Mapping, error) {
	flag := os.O_RDONLY
	switch mode {
	case ModeReadWrite, ModeCopyOnWrite:
		flag = os.O_RDWR
	}
	if create {
		flag |= os.O_CREATE
	}

	f, err := os.OpenFile(path, flag, opts.perm)
	if err != nil {
		return nil, ioErr("open", err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ioErr("stat", err)
	}

	fileSize := fi.Size()
	if create {
		if size <= 0 {
			f.Close()
			return nil, &ErrResizeFailed{Detail: "create size must be > 0"}
		}
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, ioErr("truncate", err)
		}
		fileSize = size
	}
	if mode != ModeReadOnly && fileSize == 0 {
		f.Close()
		return nil, &ErrResizeFailed{Detail: "writable mapping of zero-length file rejected"}
	}
	if mode == ModeReadOnly && fileSize == 0 {
		f.Close()
		return nil, &ErrResizeFailed{Detail: "mapped file must have positive length"}
	}
	if fileSize > maxMappingSize {
		f.Close()
		return nil, &ErrResizeFailed{Detail: fmt.Sprintf("size %d exceeds the %d-byte limit for this architecture", fileSize, maxMappingSize)}
	}

	data, plat, tier, err := mapRegion(f, fileSize, mode, opts.hugePages, opts.populate)
	if err != nil {
		f.Close()
		return nil, ioErr("mmap", err)
	}

	absPath := path
	if abs, aerr := filepath.Abs(path); aerr == nil {
		absPath = abs
	}

	m := &Mapping{
		path:      absPath,
		mode:      mode,
		perm:      opts.perm,
		file:      f,
		data:      data,
		plat:      plat,
		pageSize:  osPageSize(),
		hugePages: opts.hugePages,
		tier:      tier,
		advice:    opts.advice,
		populate:  opts.populate,
		touchHint: opts.touchHint,
		logger:    opts.logger,
	}
	m.flushCtl = newFlushController(m, opts.policy)

	if m.advice != nil {
		if err := m.advise(*m.advice); err != nil {
			m.logger.Warn("initial advise failed", zlog.String("path", absPath), zlog.String("err", err.Error()))
		}
	}
	if opts.touchHint == TouchEager {
		if err := touchRegion(m.data, m.pageSize); err != nil {
			m.logger.Warn("eager touch failed", zlog.String("path", absPath), zlog.String("err", err.Error()))
		}
	}

	return m, nil
}

// CreateRW creates (or truncates) a file of the given size and opens
// it read-write. size must be >= 1.
func CreateRW(path string, size int64, opts ...Option) (*Mapping, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return open(path, ModeReadWrite, true, size, o)
}

// OpenRO opens an existing file read-only. The file must have
// positive length.
func OpenRO(path string, opts ...Option) (*Mapping, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return open(path, ModeReadOnly, false, 0, o)
}

// OpenRW opens an existing file read-write. The file must have
// positive length.
func OpenRW(path string, opts ...Option) (*Mapping, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return open(path, ModeReadWrite, false, 0, o)
}

// OpenCOW opens an existing file as a private copy-on-write mapping.
// Writes are visible through this mapping only and never reach the
// file.
func OpenCOW(path string, opts ...Option) (*Mapping, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return open(path, ModeCopyOnWrite, false, 0, o)
}

// AsSlice returns a read-only guard over [offset, offset+length) of
// the mapping. Not allowed on ModeReadWrite mappings: exposing an
// immutable borrow into a region another caller may mutate
// concurrently would require ordering contracts this library doesn't
// promise. Use ReadInto for an unsynchronized copy, or AsSliceMut
// while holding the writer guard.
func (m *Mapping) AsSlice(offset, length int64) (*ReadGuard, error) {
	if err := m.checkLive(); err != nil {
		return nil, err
	}
	if m.mode == ModeReadWrite {
		return nil, &ErrInvalidMode{Mode: m.mode, Operation: "AsSlice"}
	}
	m.mu.RLock()
	if err := m.checkBounds(offset, length); err != nil {
		m.mu.RUnlock()
		return nil, err
	}
	return &ReadGuard{m: m, data: m.data[offset : offset+length]}, nil
}

// AsSliceMut returns a mutable guard over [offset, offset+length) of
// the mapping. Only one writer guard may be live at a time.
func (m *Mapping) AsSliceMut(offset, length int64) (*WriteGuard, error) {
	if err := m.checkLive(); err != nil {
		return nil, err
	}
	if m.mode != ModeReadWrite && m.mode != ModeCopyOnWrite {
		return nil, &ErrInvalidMode{Mode: m.mode, Operation: "AsSliceMut"}
	}
	m.mu.Lock()
	if err := m.checkBounds(offset, length); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	return &WriteGuard{m: m, data: m.data[offset : offset+length]}, nil
}

// ReadInto copies len(buf) bytes starting at offset into buf. Legal
// in every mode; unlike AsSlice it does not hold the lock past the
// call and gives no ordering guarantee against a concurrent writer.
func (m *Mapping) ReadInto(offset int64, buf []byte) error {
	if err := m.checkLive(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkBounds(offset, int64(len(buf))); err != nil {
		return err
	}
	copy(buf, m.data[offset:offset+int64(len(buf))])
	return nil
}

// UpdateRegion writes data at offset under the exclusive lock, then
// notifies the Flush Controller of the write.
func (m *Mapping) UpdateRegion(offset int64, data []byte) error {
	if err := m.checkLive(); err != nil {
		return err
	}
	if m.mode != ModeReadWrite && m.mode != ModeCopyOnWrite {
		return &ErrInvalidMode{Mode: m.mode, Operation: "UpdateRegion"}
	}
	m.mu.Lock()
	if err := m.checkBounds(offset, int64(len(data))); err != nil {
		m.mu.Unlock()
		return err
	}
	copy(m.data[offset:offset+int64(len(data))], data)
	m.mu.Unlock()

	m.flushCtl.noteWrite(uint64(len(data)))
	return nil
}

// Flush durably publishes all dirty bytes to the file. A no-op on
// read-only and copy-on-write mappings.
func (m *Mapping) Flush() error {
	if err := m.checkLive(); err != nil {
		return err
	}
	if m.mode != ModeReadWrite {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := flushRegion(m.file, m.data, m.plat); err != nil {
		return &ErrFlushFailed{Detail: "flush", Err: err}
	}
	m.flushCtl.reset()
	return nil
}

// FlushRange durably publishes dirty bytes within [offset,
// offset+length) to the file, expanding to page boundaries as
// needed. A no-op on read-only and copy-on-write mappings.
func (m *Mapping) FlushRange(offset, length int64) error {
	if err := m.checkLive(); err != nil {
		return err
	}
	if m.mode != ModeReadWrite {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkBounds(offset, length); err != nil {
		return err
	}
	if err := flushRangeRegion(m.file, m.data, m.plat, offset, length, m.pageSize); err != nil {
		return &ErrFlushFailed{Detail: "flush range", Err: err}
	}
	return nil
}

func (m *Mapping) advise(hint Advice) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := adviseRegion(m.data, m.plat, 0, int64(len(m.data)), hint); err != nil {
		return &ErrAdviceFailed{Detail: "advise", Err: err}
	}
	return nil
}

// Advise applies a kernel hint about expected access patterns over
// the whole mapping.
func (m *Mapping) Advise(hint Advice) error {
	if err := m.checkLive(); err != nil {
		return err
	}
	return m.advise(hint)
}

// Lock pins the mapping's pages in physical memory.
func (m *Mapping) Lock() error {
	if err := m.checkLive(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := lockRegion(m.data, m.plat); err != nil {
		return &ErrLockFailed{Detail: "mlock", Err: err}
	}
	m.lockedPages = true
	return nil
}

// Unlock unpins previously locked pages.
func (m *Mapping) Unlock() error {
	if err := m.checkLive(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := unlockRegion(m.data, m.plat); err != nil {
		return &ErrUnlockFailed{Detail: "munlock", Err: err}
	}
	m.lockedPages = false
	return nil
}

// TouchPages reads the first byte of every page in the mapping to
// force residency.
func (m *Mapping) TouchPages() error {
	return m.TouchPagesRange(0, m.Len())
}

// TouchPagesRange reads the first byte of every page within [offset,
// offset+length).
func (m *Mapping) TouchPagesRange(offset, length int64) error {
	if err := m.checkLive(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkBounds(offset, length); err != nil {
		return err
	}
	if err := touchRegion(m.data[offset:offset+length], m.pageSize); err != nil {
		return ioErr("touch", err)
	}
	return nil
}

// Close stops the background flusher (if any), flushes pending dirty
// bytes, unmaps the region, and closes the file descriptor. It is
// safe to call more than once; subsequent calls return ErrClosed.
func (m *Mapping) Close() error {
	if !m.st.CompareAndSwap(int32(stateActive), int32(stateDraining)) {
		return &ErrClosed{}
	}

	m.flushCtl.stop()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mode == ModeReadWrite {
		if err := flushRegion(m.file, m.data, m.plat); err != nil {
			m.logger.Warn("flush on close failed",
				zlog.String("path", m.path), zlog.String("err", err.Error()))
		}
	}
	if m.lockedPages {
		if err := unlockRegion(m.data, m.plat); err != nil {
			m.logger.Warn("unlock on close failed",
				zlog.String("path", m.path), zlog.String("err", err.Error()))
		}
		m.lockedPages = false
	}
	if err := unmapRegion(m.data, m.plat); err != nil {
		m.logger.Warn("unmap on close failed",
			zlog.String("path", m.path), zlog.String("err", err.Error()))
	}
	m.data = nil

	err := m.file.Close()
	m.st.Store(int32(stateUnmapped))
	if err != nil {
		return ioErr("close", err)
	}
	return nil
}

// Begin starts a transaction: a buffered snapshot of [offset,
// offset+length) that can be rolled back or committed atomically. See
// Transaction.
func (m *Mapping) Begin(offset, length int64) (*Transaction, error) {
	return newTransaction(m, offset, length)
}

// NewSegment returns a stable (owner, offset, length) view that
// revalidates bounds lazily on each access, suitable for handing to
// callers that outlive a single call.
func (m *Mapping) NewSegment(offset, length int64) (*Segment, error) {
	if err := m.checkLive(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	err := m.checkBounds(offset, length)
	m.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	return &Segment{m: m, offset: offset, length: length}, nil
}

// DeviceSize returns the size in bytes of the block device backing
// fd, for callers mapping whole devices rather than regular files.
// Only implemented on Linux; elsewhere it returns ErrUnsupported.
func DeviceSize(fd *os.File) (int64, error) {
	return deviceSizeImpl(fd)
}

var _ io.Closer = (*Mapping)(nil)
