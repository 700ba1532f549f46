//go:build 386 || amd64p32 || arm || wasm

package mmio

// maxMappingSize bounds a single mapping on 32-bit address spaces,
// where the virtual address range is too small to safely reserve
// multi-gigabyte regions.
const maxMappingSize int64 = 1 * 1024 * 1048576
