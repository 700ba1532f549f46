package mmio

// ErrUnsupported is returned by platform-boundary helpers that have
// no equivalent on the current OS.
type ErrUnsupported struct{ Operation string }

func (e *ErrUnsupported) Error() string { return "mmio: " + e.Operation + " not supported on this platform" }
