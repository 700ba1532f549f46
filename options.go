package mmio

import (
	"os"
	"sync"

	zlog "github.com/semihalev/log"
)

// options holds every construction-time configuration knob from
// spec.md 6: mode is implied by the constructor used, size only
// applies to CreateRW.
type options struct {
	perm      os.FileMode
	policy    Policy
	touchHint TouchHint
	hugePages bool
	advice    *Advice
	populate  bool
	logger    *zlog.StructuredLogger
}

func defaultOptions() *options {
	return &options{
		perm:      0o644,
		policy:    Manual(),
		touchHint: TouchNever,
		logger:    discardLogger(),
	}
}

var (
	sharedDiscardLoggerOnce sync.Once
	sharedDiscardLogger     *zlog.StructuredLogger
)

func discardLogger() *zlog.StructuredLogger {
	sharedDiscardLoggerOnce.Do(func() {
		l := zlog.NewStructured()
		l.SetWriter(zlog.DiscardWriter)
		sharedDiscardLogger = l
	})
	return sharedDiscardLogger
}

// Option configures a Mapping at construction time.
type Option func(*options)

// WithPerm sets the file permission bits used by CreateRW. Go's
// os.OpenFile requires a mode argument the language-neutral spec
// elides; defaults to 0644.
func WithPerm(perm os.FileMode) Option {
	return func(o *options) { o.perm = perm }
}

// WithFlushPolicy sets the Flush Controller's policy. Defaults to
// Manual (never flush automatically).
func WithFlushPolicy(p Policy) Option {
	return func(o *options) { o.policy = p }
}

// WithTouchHint controls whether the mapping is pre-warmed at
// construction. Defaults to TouchNever.
func WithTouchHint(h TouchHint) Option {
	return func(o *options) { o.touchHint = h }
}

// WithHugePages enables the three-tier best-effort huge page policy
// at map time. Construction never fails over this; see spec.md 4.1.
func WithHugePages(enabled bool) Option {
	return func(o *options) { o.hugePages = enabled }
}

// WithAdvice applies a kernel hint once, immediately after mapping.
func WithAdvice(a Advice) Option {
	return func(o *options) { o.advice = &a }
}

// WithPopulate requests pre-faulting of pages at map time on systems
// that support it (MAP_POPULATE on Linux; ignored elsewhere).
func WithPopulate(populate bool) Option {
	return func(o *options) { o.populate = populate }
}

// WithLogger sets the structured logger used for background-worker
// and resize diagnostics. Defaults to a discarding logger.
func WithLogger(l *zlog.StructuredLogger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
