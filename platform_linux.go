//go:build linux

package mmio

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	_MAP_HUGETLB  = unix.MAP_HUGETLB
	_MAP_POPULATE = unix.MAP_POPULATE
)

// deviceSize returns the size in bytes of a block device, for callers
// that want to map a whole device rather than a regular file.
func deviceSize(fd *os.File) (int64, error) {
	var sz int64
	psz := uintptr(unsafe.Pointer(&sz))

	if _, _, err := unix.Syscall(unix.SYS_IOCTL, fd.Fd(), unix.BLKGETSIZE64, psz); err != 0 {
		return 0, fmt.Errorf("block device size: %w", err)
	}
	return sz, nil
}
