//go:build amd64 || arm64 || mips64 || ppc64

package mmio

// maxMappingSize bounds a single mapping. 64-bit address spaces can
// comfortably reserve much larger regions than 32-bit ones.
const maxMappingSize int64 = 1024 * 1024 * 1048576
