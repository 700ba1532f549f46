package mmio_test

import (
	"bytes"
	"os"
	"testing"

	"github.com/halvard/mmio"
)

var _PAGE int64 = int64(os.Getpagesize())

func TestCreateRWRejectsNonPositiveSize(t *testing.T) {
	assert := newAsserter(t)
	fname := tmpName(t)

	_, err := mmio.CreateRW(fname, 0)
	assert(err != nil, "CreateRW with size 0 should fail")

	_, err = mmio.CreateRW(fname, -1)
	assert(err != nil, "CreateRW with negative size should fail")
}

func TestCreateRWThenReadBack(t *testing.T) {
	assert := newAsserter(t)
	fname := tmpName(t)

	var sz int64 = 3*_PAGE + (_PAGE / 3)
	m, err := mmio.CreateRW(fname, sz)
	assert(err == nil, "create-rw %s: %s", fname, err)
	defer m.Close()

	assert(m.Len() == sz, "len: exp %d, saw %d", sz, m.Len())
	assert(m.Mode() == mmio.ModeReadWrite, "mode: exp read-write, saw %s", m.Mode())

	payload := randBytes(int(sz))
	assert(m.UpdateRegion(0, payload) == nil, "update region failed")
	assert(m.Flush() == nil, "flush failed")

	buf := make([]byte, sz)
	assert(m.ReadInto(0, buf) == nil, "read into failed")
	assert(bytes.Equal(buf, payload), "content mismatch after flush")
}

func TestOpenROIsReadOnly(t *testing.T) {
	assert := newAsserter(t)

	orig := randBytes(int(2 * _PAGE))
	fname := createFile(t, orig)

	m, err := mmio.OpenRO(fname)
	assert(err == nil, "open-ro %s: %s", fname, err)
	defer m.Close()

	buf := make([]byte, len(orig))
	assert(m.ReadInto(0, buf) == nil, "read into failed")
	assert(bytes.Equal(buf, orig), "content mismatch")

	err = m.UpdateRegion(0, []byte{0})
	assert(err != nil, "update region on read-only mapping should fail")

	g, err := m.AsSlice(0, 1)
	assert(err == nil, "AsSlice on a read-only mapping should succeed: %s", err)
	g.Release()
}

func TestAsSliceRejectedOnReadWrite(t *testing.T) {
	assert := newAsserter(t)
	fname := tmpName(t)

	m, err := mmio.CreateRW(fname, _PAGE)
	assert(err == nil, "create-rw: %s", err)
	defer m.Close()

	_, err = m.AsSlice(0, 1)
	assert(err != nil, "AsSlice on read-write mapping must be rejected")

	var invalidMode *mmio.ErrInvalidMode
	assert(asErrInvalidMode(err, &invalidMode), "expected ErrInvalidMode, got %T: %v", err, err)
}

func asErrInvalidMode(err error, target **mmio.ErrInvalidMode) bool {
	e, ok := err.(*mmio.ErrInvalidMode)
	if ok {
		*target = e
	}
	return ok
}

func TestAsSliceMutRoundTrip(t *testing.T) {
	assert := newAsserter(t)
	fname := tmpName(t)

	m, err := mmio.CreateRW(fname, _PAGE)
	assert(err == nil, "create-rw: %s", err)
	defer m.Close()

	g, err := m.AsSliceMut(0, 16)
	assert(err == nil, "as-slice-mut: %s", err)
	copy(g.Bytes(), []byte("0123456789abcdef"))
	g.Release()

	buf := make([]byte, 16)
	assert(m.ReadInto(0, buf) == nil, "read into failed")
	assert(bytes.Equal(buf, []byte("0123456789abcdef")), "content mismatch")
}

func TestBoundsChecking(t *testing.T) {
	assert := newAsserter(t)
	fname := tmpName(t)

	m, err := mmio.CreateRW(fname, _PAGE)
	assert(err == nil, "create-rw: %s", err)
	defer m.Close()

	err = m.UpdateRegion(_PAGE-1, []byte{1, 2, 3})
	assert(err != nil, "write past end of mapping should fail")

	var oob *mmio.ErrOutOfBounds
	assert(asErrOutOfBounds(err, &oob), "expected ErrOutOfBounds, got %T: %v", err, err)

	err = m.ReadInto(-1, make([]byte, 1))
	assert(err != nil, "read at negative offset should fail")
}

func asErrOutOfBounds(err error, target **mmio.ErrOutOfBounds) bool {
	e, ok := err.(*mmio.ErrOutOfBounds)
	if ok {
		*target = e
	}
	return ok
}

func TestCopyOnWriteIsolatesFile(t *testing.T) {
	assert := newAsserter(t)

	orig := randBytes(int(3 * _PAGE))
	fname := createFile(t, orig)

	m, err := mmio.OpenCOW(fname)
	assert(err == nil, "open-cow %s: %s", fname, err)

	mutated := randBytes(len(orig))
	assert(m.UpdateRegion(0, mutated) == nil, "update region failed")
	assert(m.Flush() == nil, "flush on cow mapping must be a no-op, not an error")
	assert(m.Close() == nil, "close failed")

	onDisk, err := os.ReadFile(fname)
	assert(err == nil, "read back %s: %s", fname, err)
	assert(bytes.Equal(onDisk, orig), "copy-on-write mutation leaked to the backing file")
}

func TestCloseIsIdempotentAndRejectsFurtherUse(t *testing.T) {
	assert := newAsserter(t)
	fname := tmpName(t)

	m, err := mmio.CreateRW(fname, _PAGE)
	assert(err == nil, "create-rw: %s", err)

	assert(m.Close() == nil, "first close failed")
	assert(m.Close() != nil, "second close should report ErrClosed")
	assert(m.UpdateRegion(0, []byte{1}) != nil, "use after close should fail")
}

func TestSegmentRevalidatesAfterResize(t *testing.T) {
	assert := newAsserter(t)
	fname := tmpName(t)

	m, err := mmio.CreateRW(fname, 2*_PAGE)
	assert(err == nil, "create-rw: %s", err)
	defer m.Close()

	seg, err := m.NewSegment(_PAGE, _PAGE/2)
	assert(err == nil, "new-segment: %s", err)

	buf := make([]byte, 16)
	_, err = seg.ReadAt(buf, 0)
	assert(err == nil, "segment read before resize: %s", err)

	assert(m.Resize(_PAGE/2) == nil, "resize: %s", err)

	_, err = seg.ReadAt(buf, 0)
	assert(err != nil, "segment read past a shrunk mapping should fail")
}

func TestDeviceSizeUnsupportedOnRegularFile(t *testing.T) {
	assert := newAsserter(t)
	fname := tmpName(t)
	f, err := os.OpenFile(fname, os.O_CREATE|os.O_RDWR, 0o600)
	assert(err == nil, "open %s: %s", fname, err)
	defer f.Close()

	_, err = mmio.DeviceSize(f)
	assert(err != nil, "DeviceSize on a regular, non-block-device file should fail")
}
