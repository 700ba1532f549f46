//go:build windows

package mmio

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

// platformState carries what the unix side gets for free from the
// []byte mmap(2) returns: the file mapping handle and writability,
// needed to flush and unmap correctly.
type platformState struct {
	mapping  windows.Handle
	writable bool
}

// Missing constants in x/sys/windows.
const (
	_SEC_COMMIT      uint32 = 0x08000000
	_SEC_LARGE_PAGES uint32 = 0x80000000
)

func protAndAccess(mode Mode) (prot uint32, access uint32) {
	switch mode {
	case ModeReadOnly:
		return windows.PAGE_READONLY, windows.FILE_MAP_READ
	case ModeReadWrite:
		return windows.PAGE_READWRITE, windows.FILE_MAP_WRITE
	case ModeCopyOnWrite:
		return windows.PAGE_WRITECOPY, windows.FILE_MAP_COPY
	default:
		return windows.PAGE_READONLY, windows.FILE_MAP_READ
	}
}

func mapRegion(f *os.File, length int64, mode Mode, hugePages, populate bool) ([]byte, platformState, hugePageTier, error) {
	prot, access := protAndAccess(mode)
	tier := tierDefault
	if hugePages {
		// Tier 1: large pages require SEC_COMMIT|SEC_LARGE_PAGES and a
		// privilege most processes don't hold; attempt it and silently
		// fall back on failure.
		if h, addr, err := createAndMap(f, length, prot|_SEC_COMMIT|_SEC_LARGE_PAGES, access); err == nil {
			data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(length))
			return data, platformState{mapping: h, writable: mode != ModeReadOnly}, tierExplicitHugePages, nil
		}
	}

	h, addr, err := createAndMap(f, length, prot, access)
	if err != nil {
		return nil, platformState{}, tier, err
	}
	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(length))
	return data, platformState{mapping: h, writable: mode != ModeReadOnly}, tier, nil
}

func createAndMap(f *os.File, length int64, prot, access uint32) (windows.Handle, uintptr, error) {
	fd := windows.Handle(f.Fd())
	maxH := uint32(uint64(length) >> 32)
	maxL := uint32(uint64(length) & 0xffffffff)

	h, err := windows.CreateFileMapping(fd, nil, prot, maxH, maxL, nil)
	if h == 0 {
		return 0, 0, fmt.Errorf("%s: CreateFileMapping: %w", f.Name(), os.NewSyscallError("CreateFileMapping", err))
	}

	addr, err := windows.MapViewOfFile(h, access, 0, 0, uintptr(length))
	if addr == 0 {
		windows.CloseHandle(h)
		return 0, 0, fmt.Errorf("%s: MapViewOfFile: %w", f.Name(), os.NewSyscallError("MapViewOfFile", err))
	}
	return h, addr, nil
}

func baseAddr(data []byte) uintptr {
	if len(data) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&data[0]))
}

func unmapRegion(data []byte, plat platformState) error {
	if len(data) == 0 {
		return nil
	}
	addr := baseAddr(data)
	if err := windows.UnmapViewOfFile(addr); err != nil {
		return fmt.Errorf("UnmapViewOfFile: %w", os.NewSyscallError("UnmapViewOfFile", err))
	}
	if plat.mapping != 0 {
		if err := windows.CloseHandle(plat.mapping); err != nil {
			return fmt.Errorf("CloseHandle: %w", os.NewSyscallError("CloseHandle", err))
		}
	}
	return nil
}

func flushRegion(f *os.File, data []byte, plat platformState) error {
	if len(data) == 0 {
		return nil
	}
	addr := baseAddr(data)
	if err := windows.FlushViewOfFile(addr, uintptr(len(data))); err != nil {
		return fmt.Errorf("FlushViewOfFile: %w", os.NewSyscallError("FlushViewOfFile", err))
	}
	return flushFileBuffers(f, plat)
}

// flushRangeRegion: Windows' FlushViewOfFile already operates on the
// dirty pages within the given range; expanding to page boundaries is
// still required since offset/length may be sub-page.
func flushRangeRegion(f *os.File, data []byte, plat platformState, offset, length int64, pageSize int) error {
	if length == 0 {
		return nil
	}
	start := alignDown(offset, int64(pageSize))
	end := alignUp(offset+length, int64(pageSize))
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	addr := baseAddr(data) + uintptr(start)
	if err := windows.FlushViewOfFile(addr, uintptr(end-start)); err != nil {
		return fmt.Errorf("FlushViewOfFile: %w", os.NewSyscallError("FlushViewOfFile", err))
	}
	return flushFileBuffers(f, plat)
}

// flushFileBuffers gives write-mode mappings parity with msync(2)'s
// durability: FlushViewOfFile alone only flushes to the system cache.
func flushFileBuffers(f *os.File, plat platformState) error {
	if !plat.writable {
		return nil
	}
	h := windows.Handle(f.Fd())
	if err := windows.FlushFileBuffers(h); err != nil {
		return fmt.Errorf("FlushFileBuffers: %w", os.NewSyscallError("FlushFileBuffers", err))
	}
	return nil
}

// adviseRegion: Windows has no madvise(2) equivalent exposed by
// x/sys/windows for WillNeed/DontNeed/Random/Sequential hints on an
// existing view. Degrades to a successful no-op, as spec.md 9 permits
// for platforms lacking an equivalent. There is no strict advice mode:
// every hint succeeds here without effect.
func adviseRegion(data []byte, _ platformState, offset, length int64, hint Advice) error {
	return nil
}

func lockRegion(data []byte, _ platformState) error {
	if len(data) == 0 {
		return nil
	}
	addr := baseAddr(data)
	if err := windows.VirtualLock(addr, uintptr(len(data))); err != nil {
		return fmt.Errorf("VirtualLock: %w", os.NewSyscallError("VirtualLock", err))
	}
	return nil
}

func unlockRegion(data []byte, _ platformState) error {
	if len(data) == 0 {
		return nil
	}
	addr := baseAddr(data)
	if err := windows.VirtualUnlock(addr, uintptr(len(data))); err != nil {
		return fmt.Errorf("VirtualUnlock: %w", os.NewSyscallError("VirtualUnlock", err))
	}
	return nil
}
