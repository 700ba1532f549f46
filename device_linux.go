//go:build linux

package mmio

import "os"

func deviceSizeImpl(fd *os.File) (int64, error) {
	return deviceSize(fd)
}
