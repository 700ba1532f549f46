//go:build !linux

package mmio

import "os"

func deviceSizeImpl(fd *os.File) (int64, error) {
	return 0, &ErrUnsupported{Operation: "DeviceSize"}
}
