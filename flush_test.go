package mmio_test

import (
	"testing"
	"time"

	"github.com/halvard/mmio"
)

func TestFlushPolicyEveryBytes(t *testing.T) {
	assert := newAsserter(t)
	fname := tmpName(t)

	m, err := mmio.CreateRW(fname, _PAGE, mmio.WithFlushPolicy(mmio.EveryBytes(64)))
	assert(err == nil, "create-rw: %s", err)
	defer m.Close()

	assert(m.UpdateRegion(0, make([]byte, 32)) == nil, "write 1 failed")
	assert(m.FlushCount() == 0, "should not have flushed yet, saw %d", m.FlushCount())

	assert(m.UpdateRegion(32, make([]byte, 32)) == nil, "write 2 failed")
	assert(m.FlushCount() == 1, "expected exactly one flush, saw %d", m.FlushCount())
}

func TestFlushPolicyEveryWrites(t *testing.T) {
	assert := newAsserter(t)
	fname := tmpName(t)

	m, err := mmio.CreateRW(fname, _PAGE, mmio.WithFlushPolicy(mmio.EveryWrites(3)))
	assert(err == nil, "create-rw: %s", err)
	defer m.Close()

	for i := 0; i < 2; i++ {
		assert(m.UpdateRegion(0, []byte{byte(i)}) == nil, "write %d failed", i)
	}
	assert(m.FlushCount() == 0, "should not have flushed yet, saw %d", m.FlushCount())

	assert(m.UpdateRegion(0, []byte{9}) == nil, "write 3 failed")
	assert(m.FlushCount() == 1, "expected exactly one flush after 3 writes, saw %d", m.FlushCount())
}

func TestFlushPolicyAlways(t *testing.T) {
	assert := newAsserter(t)
	fname := tmpName(t)

	m, err := mmio.CreateRW(fname, _PAGE, mmio.WithFlushPolicy(mmio.Always()))
	assert(err == nil, "create-rw: %s", err)
	defer m.Close()

	assert(m.UpdateRegion(0, []byte{1}) == nil, "write 1 failed")
	assert(m.UpdateRegion(1, []byte{2}) == nil, "write 2 failed")
	assert(m.FlushCount() == 2, "expected a flush per write, saw %d", m.FlushCount())
}

func TestFlushPolicyManualNeverAutoFlushes(t *testing.T) {
	assert := newAsserter(t)
	fname := tmpName(t)

	m, err := mmio.CreateRW(fname, _PAGE)
	assert(err == nil, "create-rw: %s", err)
	defer m.Close()

	for i := 0; i < 10; i++ {
		assert(m.UpdateRegion(0, []byte{byte(i)}) == nil, "write %d failed", i)
	}
	assert(m.FlushCount() == 0, "manual policy must never auto-flush, saw %d", m.FlushCount())

	assert(m.Flush() == nil, "explicit flush failed")
}

func TestFlushPolicyEveryMillis(t *testing.T) {
	assert := newAsserter(t)
	fname := tmpName(t)

	m, err := mmio.CreateRW(fname, _PAGE, mmio.WithFlushPolicy(mmio.EveryMillis(20)))
	assert(err == nil, "create-rw: %s", err)
	defer m.Close()

	assert(m.UpdateRegion(0, []byte{1}) == nil, "write failed")

	deadline := time.Now().Add(2 * time.Second)
	for m.FlushCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert(m.FlushCount() >= 1, "background flusher never ran")
}

func TestWriteGuardNotifiesFlushController(t *testing.T) {
	assert := newAsserter(t)
	fname := tmpName(t)

	m, err := mmio.CreateRW(fname, _PAGE, mmio.WithFlushPolicy(mmio.EveryBytes(8)))
	assert(err == nil, "create-rw: %s", err)
	defer m.Close()

	g, err := m.AsSliceMut(0, 8)
	assert(err == nil, "as-slice-mut: %s", err)
	copy(g.Bytes(), []byte("deadbeef"))
	g.Release()

	assert(m.FlushCount() == 1, "expected write guard release to trigger flush, saw %d", m.FlushCount())
}
