//go:build darwin || linux || freebsd || openbsd || solaris || netbsd || dragonfly

package mmio

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// platformState carries nothing extra on unix: the mmap(2) result is
// already a usable []byte, and msync/munmap/mlock operate directly on
// it.
type platformState struct{}

func protFor(mode Mode) int {
	switch mode {
	case ModeReadOnly:
		return unix.PROT_READ
	case ModeReadWrite, ModeCopyOnWrite:
		return unix.PROT_READ | unix.PROT_WRITE
	default:
		return unix.PROT_READ
	}
}

// mapRegion establishes the mapping and attempts the requested
// huge-page tier without ever failing construction over it.
func mapRegion(f *os.File, length int64, mode Mode, hugePages, populate bool) ([]byte, platformState, hugePageTier, error) {
	prot := protFor(mode)
	flags := unix.MAP_SHARED
	if mode == ModeCopyOnWrite {
		flags = unix.MAP_PRIVATE
	}
	if populate {
		flags |= _MAP_POPULATE
	}

	tier := tierDefault
	if hugePages && _MAP_HUGETLB != 0 {
		data, err := unix.Mmap(int(f.Fd()), 0, int(length), prot, flags|_MAP_HUGETLB)
		if err == nil {
			return data, platformState{}, tierExplicitHugePages, nil
		}
		// Tier 1 declined; fall through to tier 2/3.
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(length), prot, flags)
	if err != nil {
		return nil, platformState{}, tier, fmt.Errorf("mmap %d bytes: %w", length, err)
	}
	if hugePages {
		// Tier 2: hint the range as eligible for transparent huge
		// pages. Best-effort; a failure here is swallowed.
		if madviseErr := unix.Madvise(data, unix.MADV_HUGEPAGE); madviseErr == nil {
			tier = tierTransparentHint
		}
	}
	return data, platformState{}, tier, nil
}

func unmapRegion(data []byte, _ platformState) error {
	if len(data) == 0 {
		return nil
	}
	return unix.Munmap(data)
}

func flushRegion(_ *os.File, data []byte, _ platformState) error {
	if len(data) == 0 {
		return nil
	}
	return unix.Msync(data, unix.MS_SYNC)
}

// flushRangeRegion expands [offset, offset+length) to page-aligned
// boundaries before issuing msync, per spec.md's microflush rule.
func flushRangeRegion(_ *os.File, data []byte, _ platformState, offset, length int64, pageSize int) error {
	if length == 0 {
		return nil
	}
	start := alignDown(offset, int64(pageSize))
	end := alignUp(offset+length, int64(pageSize))
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	return unix.Msync(data[start:end], unix.MS_SYNC)
}

func adviseRegion(data []byte, _ platformState, offset, length int64, hint Advice) error {
	if length == 0 {
		return nil
	}
	end := offset + length
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	var madv int
	switch hint {
	case AdviceNormal:
		madv = unix.MADV_NORMAL
	case AdviceRandom:
		madv = unix.MADV_RANDOM
	case AdviceSequential:
		madv = unix.MADV_SEQUENTIAL
	case AdviceWillNeed:
		madv = unix.MADV_WILLNEED
	case AdviceDontNeed:
		madv = unix.MADV_DONTNEED
	default:
		madv = unix.MADV_NORMAL
	}
	return unix.Madvise(data[offset:end], madv)
}

func lockRegion(data []byte, _ platformState) error {
	if len(data) == 0 {
		return nil
	}
	return unix.Mlock(data)
}

func unlockRegion(data []byte, _ platformState) error {
	if len(data) == 0 {
		return nil
	}
	return unix.Munlock(data)
}
