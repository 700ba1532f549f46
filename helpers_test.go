package mmio_test

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func newAsserter(t *testing.T) func(cond bool, format string, args ...interface{}) {
	t.Helper()
	return func(cond bool, format string, args ...interface{}) {
		if !cond {
			t.Helper()
			t.Fatalf(format, args...)
		}
	}
}

func tmpName(t *testing.T) string {
	dn := t.TempDir()
	bn := fmt.Sprintf("tmp%d-%x", os.Getpid(), randU32())
	return filepath.Join(dn, bn)
}

func randU32() uint32 {
	var b [4]byte
	if _, err := io.ReadFull(rand.Reader, b[:]); err != nil {
		panic(fmt.Sprintf("can't read 4 rand bytes: %s", err))
	}
	return binary.LittleEndian.Uint32(b[:])
}

func randBytes(n int) []byte {
	b := make([]byte, n)
	rand.Read(b)
	return b
}

func createFile(t *testing.T, data []byte) string {
	t.Helper()
	name := tmpName(t)
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		t.Fatalf("create %s: %s", name, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		t.Fatalf("write %s: %s", name, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		t.Fatalf("sync %s: %s", name, err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close %s: %s", name, err)
	}
	return name
}
