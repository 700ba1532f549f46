package mmio

import (
	"fmt"

	zlog "github.com/semihalev/log"
)

// Resize changes the size of the backing file and re-establishes the
// mapping at the new size, following spec.md 4.5's protocol: flush,
// unmap, truncate/grow the file, remap, then reset flush state. It
// takes the mapping's exclusive lock for the entire sequence, so no
// guard, atomic view, or Segment access can observe a half-resized
// mapping. Not available on ModeReadOnly or ModeCopyOnWrite mappings.
//
// If the remap step fails, the mapping has no file descriptor's worth
// of valid memory left to fall back to; it is marked permanently
// fatal and every subsequent call returns the remap error.
func (m *Mapping) Resize(newSize int64) error {
	if err := m.checkLive(); err != nil {
		return err
	}
	if m.mode != ModeReadWrite {
		return &ErrInvalidMode{Mode: m.mode, Operation: "Resize"}
	}
	if newSize <= 0 {
		return &ErrResizeFailed{Detail: "new size must be > 0"}
	}
	if newSize > maxMappingSize {
		return &ErrResizeFailed{Detail: fmt.Sprintf("size %d exceeds the %d-byte limit for this architecture", newSize, maxMappingSize)}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := flushRegion(m.file, m.data, m.plat); err != nil {
		return &ErrResizeFailed{Detail: "pre-resize flush", Err: err}
	}

	if err := unmapRegion(m.data, m.plat); err != nil {
		return &ErrResizeFailed{Detail: "unmap", Err: err}
	}
	m.data = nil

	if err := m.file.Truncate(newSize); err != nil {
		m.setFatal(&ErrResizeFailed{Detail: "truncate", Err: err})
		return m.fatalErr()
	}

	data, plat, tier, err := mapRegion(m.file, newSize, m.mode, m.hugePages, m.populate)
	if err != nil {
		fatal := &ErrResizeFailed{Detail: "remap", Err: err}
		m.setFatal(fatal)
		return fatal
	}

	m.data = data
	m.plat = plat
	m.tier = tier
	m.flushCtl.reset()

	if m.lockedPages {
		if err := lockRegion(m.data, m.plat); err != nil {
			m.logger.Warn("re-lock after resize failed",
				zlog.String("path", m.path), zlog.String("err", err.Error()))
			m.lockedPages = false
		}
	}
	if m.advice != nil {
		if err := adviseRegion(m.data, m.plat, 0, int64(len(m.data)), *m.advice); err != nil {
			m.logger.Warn("re-advise after resize failed",
				zlog.String("path", m.path), zlog.String("err", err.Error()))
		}
	}

	return nil
}

func (m *Mapping) fatalErr() error {
	if p := m.fatal.Load(); p != nil {
		return *p
	}
	return nil
}
