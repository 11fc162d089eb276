// Package common holds the sentinel error values and row/value types shared
// by every layer of the storage core.
package common

import "errors"

// Sentinel errors raised by the storage core. Call sites wrap these with
// fmt.Errorf("...: %w", Err...) for context; callers compare with errors.Is.
var (
	// ErrOutOfRange is raised by the Pager, HeapFile, and PageBTree when a
	// referenced page or slot id exceeds what the file holds.
	ErrOutOfRange = errors.New("storage: out of range")

	// ErrSizeMismatch is raised by the Pager when a write buffer is not
	// exactly one page in length.
	ErrSizeMismatch = errors.New("storage: page size mismatch")

	// ErrDeleted is raised by the HeapFile when a slot carries the
	// tombstone sentinel.
	ErrDeleted = errors.New("storage: slot deleted")

	// ErrOversize is raised by the HeapFile and Table when an update's
	// encoded length exceeds the original slot length.
	ErrOversize = errors.New("storage: update exceeds slot capacity")

	// ErrDuplicate is raised by Table.Insert when the primary key already
	// maps to a row.
	ErrDuplicate = errors.New("storage: duplicate primary key")

	// ErrMissingKey is raised by Table.Insert when the row lacks the
	// primary-key column.
	ErrMissingKey = errors.New("storage: missing primary key")

	// ErrWrongType is raised by Table.Insert when the primary-key value is
	// not an integer.
	ErrWrongType = errors.New("storage: primary key is not an integer")

	// ErrPrimaryKeyImmutable is raised by Table.Update when the caller
	// attempts to change the primary-key column.
	ErrPrimaryKeyImmutable = errors.New("storage: primary key is immutable")

	// ErrCorrupt is raised by the PageBTree and HeapFile when a decoded
	// page header fails structural validation.
	ErrCorrupt = errors.New("storage: corrupt page")

	// ErrNotFound is raised by Database when asked to operate on an
	// unknown table, and by Table.Update and Table.Delete when no row has
	// the given primary key.
	ErrNotFound = errors.New("storage: not found")

	// ErrClosed is raised by any core component once it has been closed.
	ErrClosed = errors.New("storage: closed")
)
