package mmio

// ReadGuard is a shared-lock borrow of a region of a mapping. The
// backing RWMutex is held for reading until Release is called; other
// readers may hold a ReadGuard concurrently, but no writer guard can
// be acquired until every ReadGuard over the mapping is released.
type ReadGuard struct {
	m    *Mapping
	data []byte

	released bool
}

// Bytes returns the guarded region. The slice aliases the mapping and
// must not be used after Release.
func (g *ReadGuard) Bytes() []byte { return g.data }

// Release drops the shared lock. Safe to call more than once.
func (g *ReadGuard) Release() {
	if g.released {
		return
	}
	g.released = true
	g.data = nil
	g.m.mu.RUnlock()
}

// Close is an alias for Release, satisfying io.Closer.
func (g *ReadGuard) Close() error {
	g.Release()
	return nil
}

// WriteGuard is an exclusive-lock borrow of a mutable region of a
// mapping. Exactly one WriteGuard (and no ReadGuard) can be live over
// a given mapping at a time. On Release, the number of bytes guarded
// is reported to the Flush Controller, which may trigger an automatic
// flush per the mapping's Policy.
type WriteGuard struct {
	m    *Mapping
	data []byte

	released bool
}

// Bytes returns the guarded region for in-place mutation. The slice
// aliases the mapping and must not be used after Release.
func (g *WriteGuard) Bytes() []byte { return g.data }

// Release drops the exclusive lock and notifies the Flush Controller
// of the guarded length. Safe to call more than once.
func (g *WriteGuard) Release() {
	if g.released {
		return
	}
	g.released = true
	n := len(g.data)
	g.data = nil
	g.m.mu.Unlock()
	g.m.flushCtl.noteWrite(uint64(n))
}

// Close is an alias for Release, satisfying io.Closer.
func (g *WriteGuard) Close() error {
	g.Release()
	return nil
}
