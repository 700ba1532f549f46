// Package layout provides a typed, sequential field accessor over any
// io.ReaderAt/io.WriterAt, for reading and writing fixed binary
// records directly against mapped memory (via a Segment or a
// Transaction) without hand-rolled offset arithmetic at every call
// site.
package layout

import (
	"encoding/binary"
	"io"
)

// ReadWriterAt groups io.ReaderAt and io.WriterAt. *mmio.Segment and
// *mmio.Transaction both satisfy it.
type ReadWriterAt interface {
	io.ReaderAt
	io.WriterAt
}

// Accessor reads and writes sequential fixed-width fields, in
// big-endian byte order, against a backing ReadWriterAt. Supported
// field types are uint8, uint16, uint32 and uint64.
type Accessor struct {
	buf ReadWriterAt
}

// New returns an Accessor over buf.
func New(buf ReadWriterAt) *Accessor {
	return &Accessor{buf: buf}
}

func (a *Accessor) read(buf []byte, offset int64, index int) error {
	n, err := a.buf.ReadAt(buf, offset)
	if err != nil {
		return err
	}
	if n < len(buf) {
		return &ErrPartialRead{Index: index, Offset: offset, NumBytes: n}
	}
	return nil
}

func (a *Accessor) write(buf []byte, offset int64, index int) error {
	n, err := a.buf.WriteAt(buf, offset)
	if err != nil {
		return err
	}
	if n < len(buf) {
		return &ErrPartialWrite{Index: index, Offset: offset, NumBytes: n}
	}
	return nil
}

func advance(buf []byte, offset *int64) {
	*offset += int64(len(buf))
}

// Get sequentially reads fields starting at offset into the pointers
// in v, advancing offset by each field's width as it goes.
func (a *Accessor) Get(offset int64, v ...interface{}) error {
	for i, val := range v {
		switch p := val.(type) {
		default:
			return &ErrUnsupportedType{Index: i}
		case *uint8:
			buf := make([]byte, 1)
			if err := a.read(buf, offset, i); err != nil {
				return err
			}
			*p = buf[0]
			advance(buf, &offset)
		case *uint16:
			buf := make([]byte, 2)
			if err := a.read(buf, offset, i); err != nil {
				return err
			}
			*p = binary.BigEndian.Uint16(buf)
			advance(buf, &offset)
		case *uint32:
			buf := make([]byte, 4)
			if err := a.read(buf, offset, i); err != nil {
				return err
			}
			*p = binary.BigEndian.Uint32(buf)
			advance(buf, &offset)
		case *uint64:
			buf := make([]byte, 8)
			if err := a.read(buf, offset, i); err != nil {
				return err
			}
			*p = binary.BigEndian.Uint64(buf)
			advance(buf, &offset)
		}
	}
	return nil
}

// Set sequentially writes the values in v starting at offset.
func (a *Accessor) Set(offset int64, v ...interface{}) error {
	for i, val := range v {
		switch x := val.(type) {
		default:
			return &ErrUnsupportedType{Index: i}
		case uint8:
			buf := []byte{x}
			if err := a.write(buf, offset, i); err != nil {
				return err
			}
			advance(buf, &offset)
		case uint16:
			buf := make([]byte, 2)
			binary.BigEndian.PutUint16(buf, x)
			if err := a.write(buf, offset, i); err != nil {
				return err
			}
			advance(buf, &offset)
		case uint32:
			buf := make([]byte, 4)
			binary.BigEndian.PutUint32(buf, x)
			if err := a.write(buf, offset, i); err != nil {
				return err
			}
			advance(buf, &offset)
		case uint64:
			buf := make([]byte, 8)
			binary.BigEndian.PutUint64(buf, x)
			if err := a.write(buf, offset, i); err != nil {
				return err
			}
			advance(buf, &offset)
		}
	}
	return nil
}

// Inc sequentially adds the deltas in v to the fields starting at
// offset, read-modify-write.
func (a *Accessor) Inc(offset int64, v ...interface{}) error {
	return a.rmw(offset, v, func(a, b uint64) uint64 { return a + b })
}

// Dec sequentially subtracts the deltas in v from the fields starting
// at offset, read-modify-write.
func (a *Accessor) Dec(offset int64, v ...interface{}) error {
	return a.rmw(offset, v, func(a, b uint64) uint64 { return a - b })
}

func (a *Accessor) rmw(offset int64, v []interface{}, op func(a, b uint64) uint64) error {
	for i, val := range v {
		switch x := val.(type) {
		default:
			return &ErrUnsupportedType{Index: i}
		case uint8:
			buf := make([]byte, 1)
			if err := a.read(buf, offset, i); err != nil {
				return err
			}
			buf[0] = byte(op(uint64(buf[0]), uint64(x)))
			if err := a.write(buf, offset, i); err != nil {
				return err
			}
			advance(buf, &offset)
		case uint16:
			buf := make([]byte, 2)
			if err := a.read(buf, offset, i); err != nil {
				return err
			}
			binary.BigEndian.PutUint16(buf, uint16(op(uint64(binary.BigEndian.Uint16(buf)), uint64(x))))
			if err := a.write(buf, offset, i); err != nil {
				return err
			}
			advance(buf, &offset)
		case uint32:
			buf := make([]byte, 4)
			if err := a.read(buf, offset, i); err != nil {
				return err
			}
			binary.BigEndian.PutUint32(buf, uint32(op(uint64(binary.BigEndian.Uint32(buf)), uint64(x))))
			if err := a.write(buf, offset, i); err != nil {
				return err
			}
			advance(buf, &offset)
		case uint64:
			buf := make([]byte, 8)
			if err := a.read(buf, offset, i); err != nil {
				return err
			}
			binary.BigEndian.PutUint64(buf, op(binary.BigEndian.Uint64(buf), x))
			if err := a.write(buf, offset, i); err != nil {
				return err
			}
			advance(buf, &offset)
		}
	}
	return nil
}
