package mmio

import "io"

// Segment is a stable (owner, offset, length) view into a Mapping. It
// outlives any single guard acquisition: every access re-takes the
// owning mapping's lock and revalidates bounds, so a Segment handed
// to a long-lived caller degrades to an error instead of reading
// stale or out-of-bounds memory after a Resize.
type Segment struct {
	m      *Mapping
	offset int64
	length int64
}

// Offset returns the segment's starting offset within the owning
// mapping.
func (s *Segment) Offset() int64 { return s.offset }

// Len returns the segment's length in bytes.
func (s *Segment) Len() int64 { return s.length }

func (s *Segment) revalidate() error {
	if err := s.m.checkLive(); err != nil {
		return err
	}
	if s.offset+s.length > s.m.Len() {
		return &ErrOutOfBounds{Offset: s.offset, Len: s.length, Total: s.m.Len()}
	}
	return nil
}

// ReadAt implements io.ReaderAt, revalidating bounds against the
// owning mapping's current size on every call.
func (s *Segment) ReadAt(buf []byte, off int64) (int, error) {
	if err := s.revalidate(); err != nil {
		return 0, err
	}
	if off < 0 || off >= s.length {
		return 0, &ErrOutOfBounds{Offset: s.offset + off, Len: int64(len(buf)), Total: s.length}
	}
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	n := copy(buf, s.m.data[s.offset+off:s.offset+s.length])
	if n < len(buf) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements io.WriterAt, revalidating bounds and rejecting
// writes against read-only mappings.
func (s *Segment) WriteAt(buf []byte, off int64) (int, error) {
	if err := s.revalidate(); err != nil {
		return 0, err
	}
	if s.m.mode != ModeReadWrite && s.m.mode != ModeCopyOnWrite {
		return 0, &ErrInvalidMode{Mode: s.m.mode, Operation: "Segment.WriteAt"}
	}
	if off < 0 || off >= s.length {
		return 0, &ErrOutOfBounds{Offset: s.offset + off, Len: int64(len(buf)), Total: s.length}
	}
	s.m.mu.Lock()
	n := copy(s.m.data[s.offset+off:s.offset+s.length], buf)
	s.m.mu.Unlock()
	if n > 0 {
		s.m.flushCtl.noteWrite(uint64(n))
	}
	if n < len(buf) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

var (
	_ io.ReaderAt = (*Segment)(nil)
	_ io.WriterAt = (*Segment)(nil)
)
