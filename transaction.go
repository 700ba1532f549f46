package mmio

import (
	"io"
	"runtime"
)

// Transaction is a buffered snapshot of a region of a Mapping. Writes
// go to the snapshot, not the mapping, until Commit copies them back
// under the mapping's exclusive lock; Rollback discards them. Adapted
// from the copy-on-begin transaction model, offered as a convenience
// alongside WriteGuard: it does not use WriteGuard, but takes the
// mapping's lock itself on Begin and Commit.
type Transaction struct {
	m      *Mapping
	offset int64
	length int64

	snapshot []byte
}

// ErrTransactionClosed is returned by any Transaction operation after
// Commit or Rollback has already run.
type ErrTransactionClosed struct{}

func (e *ErrTransactionClosed) Error() string { return "mmio: transaction already closed" }

func newTransaction(m *Mapping, offset, length int64) (*Transaction, error) {
	if err := m.checkLive(); err != nil {
		return nil, err
	}
	if m.mode != ModeReadWrite && m.mode != ModeCopyOnWrite {
		return nil, &ErrInvalidMode{Mode: m.mode, Operation: "Begin"}
	}
	m.mu.RLock()
	err := m.checkBounds(offset, length)
	var snapshot []byte
	if err == nil {
		snapshot = make([]byte, length)
		copy(snapshot, m.data[offset:offset+length])
	}
	m.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	tx := &Transaction{m: m, offset: offset, length: length, snapshot: snapshot}
	runtime.SetFinalizer(tx, (*Transaction).Rollback)
	return tx, nil
}

// Offset returns the transaction's starting offset within the parent
// mapping.
func (tx *Transaction) Offset() int64 { return tx.offset }

// Length returns the snapshot length in bytes.
func (tx *Transaction) Length() int64 { return tx.length }

// ReadAt implements io.ReaderAt against the in-memory snapshot. offset
// is relative to the parent mapping, matching the Offset/Length
// window the transaction was opened with.
func (tx *Transaction) ReadAt(buf []byte, offset int64) (int, error) {
	if tx.snapshot == nil {
		return 0, &ErrTransactionClosed{}
	}
	rel := offset - tx.offset
	if rel < 0 || rel >= tx.length {
		return 0, &ErrOutOfBounds{Offset: offset, Len: int64(len(buf)), Total: tx.length}
	}
	n := copy(buf, tx.snapshot[rel:])
	if n < len(buf) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements io.WriterAt against the in-memory snapshot;
// nothing reaches the mapping until Commit.
func (tx *Transaction) WriteAt(buf []byte, offset int64) (int, error) {
	if tx.snapshot == nil {
		return 0, &ErrTransactionClosed{}
	}
	rel := offset - tx.offset
	if rel < 0 || rel >= tx.length {
		return 0, &ErrOutOfBounds{Offset: offset, Len: int64(len(buf)), Total: tx.length}
	}
	n := copy(tx.snapshot[rel:], buf)
	if n < len(buf) {
		return n, io.EOF
	}
	return n, nil
}

// Commit copies the snapshot back to the mapping under its exclusive
// lock and notifies the Flush Controller, then closes the
// transaction. Partial copies (which should not happen for an
// in-bounds snapshot) are reported rather than silently ignored.
func (tx *Transaction) Commit() error {
	if tx.snapshot == nil {
		return &ErrTransactionClosed{}
	}
	if err := tx.m.checkLive(); err != nil {
		return err
	}
	tx.m.mu.Lock()
	if err := tx.m.checkBounds(tx.offset, tx.length); err != nil {
		tx.m.mu.Unlock()
		return err
	}
	n := copy(tx.m.data[tx.offset:tx.offset+tx.length], tx.snapshot)
	tx.m.mu.Unlock()
	if n < len(tx.snapshot) {
		return &ErrIO{Op: "commit", Err: io.ErrShortWrite}
	}
	tx.m.flushCtl.noteWrite(uint64(n))
	tx.snapshot = nil
	runtime.SetFinalizer(tx, nil)
	return nil
}

// Rollback discards the snapshot without touching the mapping. Safe
// to call more than once; the finalizer calls it automatically if
// neither Commit nor Rollback ran.
func (tx *Transaction) Rollback() error {
	if tx.snapshot == nil {
		return nil
	}
	tx.snapshot = nil
	runtime.SetFinalizer(tx, nil)
	return nil
}
