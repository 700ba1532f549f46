package mmio

import (
	"sync/atomic"
	"time"

	zlog "github.com/semihalev/log"
)

type policyKind int

const (
	policyManual policyKind = iota
	policyAlways
	policyEveryBytes
	policyEveryWrites
	policyEveryMillis
)

// Policy is a tagged value selecting when the Flush Controller issues
// an automatic flush (spec.md 3, 4.4).
type Policy struct {
	kind policyKind
	n    uint64
	ms   int64
}

// Never disables automatic flushing; callers must call Flush/
// FlushRange explicitly. Equivalent to Manual.
func Never() Policy { return Policy{kind: policyManual} }

// Manual is an alias for Never, matching spec.md 4.4's "Never /
// Manual: return" step.
func Manual() Policy { return Policy{kind: policyManual} }

// Always flushes after every write.
func Always() Policy { return Policy{kind: policyAlways} }

// EveryBytes flushes once bytesSinceFlush reaches n.
func EveryBytes(n uint64) Policy { return Policy{kind: policyEveryBytes, n: n} }

// EveryWrites flushes once writesSinceFlush reaches w.
func EveryWrites(w uint64) Policy { return Policy{kind: policyEveryWrites, n: w} }

// EveryMillis starts a background worker that flushes a dirty mapping
// at most once every ms milliseconds.
func EveryMillis(ms int64) Policy { return Policy{kind: policyEveryMillis, ms: ms} }

// flushController tracks dirty bytes/writes and triggers flushes per
// policy, optionally via a background time-based worker (spec.md 4.4).
// Counter updates are lock-free; the flush itself goes through
// Mapping.Flush, which takes the mapping's exclusive lock only on
// threshold crossings.
type flushController struct {
	m      *Mapping
	policy Policy

	bytesSinceFlush  atomic.Uint64
	writesSinceFlush atomic.Uint64
	dirty            atomic.Bool
	flushCount       atomic.Uint64

	stopCh chan struct{}
	doneCh chan struct{}
}

func newFlushController(m *Mapping, p Policy) *flushController {
	fc := &flushController{m: m, policy: p}
	if p.kind == policyEveryMillis && p.ms > 0 && m.mode == ModeReadWrite {
		fc.stopCh = make(chan struct{})
		fc.doneCh = make(chan struct{})
		go fc.run(time.Duration(p.ms) * time.Millisecond)
	}
	return fc
}

// noteWrite is called after every successful UpdateRegion (or mutable
// guard release carrying a nonzero write count).
func (fc *flushController) noteWrite(n uint64) {
	if n == 0 {
		return
	}
	fc.bytesSinceFlush.Add(n)
	fc.writesSinceFlush.Add(1)
	fc.dirty.Store(true)

	switch fc.policy.kind {
	case policyManual:
		return
	case policyAlways:
		fc.flushNow()
	case policyEveryBytes:
		if fc.bytesSinceFlush.Load() >= fc.policy.n {
			fc.flushNow()
		}
	case policyEveryWrites:
		if fc.writesSinceFlush.Load() >= fc.policy.n {
			fc.flushNow()
		}
	case policyEveryMillis:
		// Deferred to the background worker.
	}
}

// flushNow is the only path that calls Mapping.Flush on the
// controller's behalf. On ModeReadOnly/ModeCopyOnWrite mappings,
// Flush is a documented no-op — nothing was ever going to reach the
// file — so it doesn't count as a flush and the dirty counters are
// cleared directly; otherwise every subsequent write on a COW mapping
// past the threshold would re-trigger flushNow forever, since
// Mapping.Flush only resets the counters on its ModeReadWrite path.
func (fc *flushController) flushNow() {
	if fc.m.mode != ModeReadWrite {
		fc.reset()
		return
	}
	if err := fc.m.Flush(); err != nil {
		fc.m.logger.Warn("flush failed",
			zlog.String("path", fc.m.path), zlog.String("err", err.Error()))
		return
	}
	fc.flushCount.Add(1)
}

// reset clears the counters. Called by Mapping.Flush on success and
// by the resize protocol once a fresh mapping is established.
func (fc *flushController) reset() {
	fc.bytesSinceFlush.Store(0)
	fc.writesSinceFlush.Store(0)
	fc.dirty.Store(false)
}

func (fc *flushController) run(interval time.Duration) {
	defer close(fc.doneCh)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-fc.stopCh:
			return
		case <-ticker.C:
			if !fc.dirty.Load() {
				continue
			}
			fc.flushNow()
		}
	}
}

// stop signals the background worker (if any) and joins it. Called
// by Mapping.Close before unmapping.
func (fc *flushController) stop() {
	if fc.stopCh == nil {
		return
	}
	close(fc.stopCh)
	<-fc.doneCh
}

// FlushCount returns the number of flushes the controller has issued,
// whether threshold-triggered or from the background worker. Exposed
// for tests verifying the policy properties in spec.md 8.
func (m *Mapping) FlushCount() uint64 {
	return m.flushCtl.flushCount.Load()
}
