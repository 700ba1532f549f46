// Package watch provides a boundary for observing out-of-process
// changes to a mapped file: another process truncating, growing, or
// rewriting it underneath a live mapping. Delivery is at-least-once
// and unordered; callers that need exact byte-level change tracking
// should pair a Watcher with their own checksum or generation counter.
package watch

import (
	"os"
	"sync"
	"time"
)

// EventKind classifies a change observed on the watched file.
type EventKind int

const (
	// Modified indicates the file's content or size changed.
	Modified EventKind = iota
	// MetadataChanged indicates permissions or other metadata changed
	// without a corresponding size change.
	MetadataChanged
	// Removed indicates the file no longer exists.
	Removed
)

func (k EventKind) String() string {
	switch k {
	case Modified:
		return "modified"
	case MetadataChanged:
		return "metadata-changed"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is a single observed change.
type Event struct {
	Kind EventKind
	Size int64
	// ModTime is the file's modification time at observation, zero for
	// a Removed event.
	ModTime time.Time
}

// ErrUnsupported is returned by constructors with no implementation
// on the current platform.
type ErrUnsupported struct{ Operation string }

func (e *ErrUnsupported) Error() string {
	return "watch: " + e.Operation + " not supported on this platform"
}

// Handle represents one live subscription. Closing it stops delivery;
// it is safe to call Close more than once.
type Handle struct {
	close func() error
}

// Close stops delivery for this subscription.
func (h *Handle) Close() error { return h.close() }

// Watcher accepts an opaque owner reference (the poller ignores it)
// and a callback invoked for every observed Event, and returns a
// Handle whose Close stops delivery.
type Watcher interface {
	Watch(owner interface{}, callback func(Event)) (*Handle, error)
}

// poller polls os.Stat at a fixed interval and diffs size/mtime/mode
// against the previous observation. It is the portable fallback: it
// works identically on every OS since it only depends on os.Stat, at
// the cost of latency bounded by interval and the inability to
// distinguish multiple changes that happen between polls.
type poller struct {
	path     string
	interval time.Duration
}

// NewPoller returns a Watcher that polls path every interval.
func NewPoller(path string, interval time.Duration) (Watcher, error) {
	if interval <= 0 {
		interval = time.Second
	}
	return &poller{path: path, interval: interval}, nil
}

func (p *poller) Watch(owner interface{}, callback func(Event)) (*Handle, error) {
	stop := make(chan struct{})
	done := make(chan struct{})

	go p.run(stop, done, callback)

	var once sync.Once
	return &Handle{close: func() error {
		once.Do(func() {
			close(stop)
			<-done
		})
		return nil
	}}, nil
}

func (p *poller) run(stop, done chan struct{}, callback func(Event)) {
	defer close(done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var lastSize int64
	var lastMod time.Time
	var lastMode os.FileMode
	var existed bool
	if fi, err := os.Stat(p.path); err == nil {
		lastSize = fi.Size()
		lastMod = fi.ModTime()
		lastMode = fi.Mode()
		existed = true
	}

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			fi, err := os.Stat(p.path)
			if err != nil {
				if os.IsNotExist(err) {
					if existed {
						existed = false
						callback(Event{Kind: Removed})
					}
					continue
				}
				continue
			}
			switch {
			case !existed:
				existed = true
				lastSize, lastMod, lastMode = fi.Size(), fi.ModTime(), fi.Mode()
				callback(Event{Kind: Modified, Size: lastSize, ModTime: lastMod})
			case fi.Size() != lastSize || !fi.ModTime().Equal(lastMod):
				lastSize, lastMod, lastMode = fi.Size(), fi.ModTime(), fi.Mode()
				callback(Event{Kind: Modified, Size: lastSize, ModTime: lastMod})
			case fi.Mode() != lastMode:
				lastMode = fi.Mode()
				callback(Event{Kind: MetadataChanged, Size: lastSize, ModTime: lastMod})
			}
		}
	}
}

// nativeWatcher is the hook for a platform-native implementation
// (inotify, kqueue, ReadDirectoryChangesW). None of this module's
// dependencies provide one, so NewNative always reports
// ErrUnsupported; callers fall back to NewPoller.
type nativeWatcher struct{}

func (nativeWatcher) Watch(owner interface{}, callback func(Event)) (*Handle, error) {
	return nil, &ErrUnsupported{Operation: "Watch"}
}

// NewNative returns a platform-native Watcher where one is wired in.
// Today it always returns ErrUnsupported.
func NewNative(path string) (Watcher, error) {
	return nil, &ErrUnsupported{Operation: "NewNative"}
}
