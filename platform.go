package mmio

import "os"

// hugePageTier records which tier of the three-tier best-effort huge
// page policy (spec.md 4.1) was actually used. Construction never
// fails over the choice of tier; this is diagnostic only.
type hugePageTier int

const (
	tierDefault hugePageTier = iota
	tierTransparentHint
	tierExplicitHugePages
)

func (t hugePageTier) String() string {
	switch t {
	case tierExplicitHugePages:
		return "explicit"
	case tierTransparentHint:
		return "transparent-hint"
	default:
		return "default"
	}
}

// osPageSize is queried once per process and cached by callers.
func osPageSize() int {
	return os.Getpagesize()
}

// touchRegion reads the first byte of every page to force residency,
// per spec.md 4.1's touch contract. Identical on every platform: it
// only ever dereferences the Go slice the platform layer already
// produced.
func touchRegion(data []byte, pageSize int) error {
	if pageSize <= 0 {
		pageSize = 4096
	}
	var sink byte
	for i := 0; i < len(data); i += pageSize {
		sink += data[i]
	}
	_ = sink
	return nil
}

func alignDown(v, align int64) int64 {
	return v - (v % align)
}

func alignUp(v, align int64) int64 {
	rem := v % align
	if rem == 0 {
		return v
	}
	return v + (align - rem)
}
