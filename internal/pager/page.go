// Package pager implements raw fixed-size page I/O against a single file.
//
// A Pager knows nothing about what a page contains — that is the job of the
// heap and B+Tree layers built on top of it. It only guarantees that every
// page is exactly PageSize bytes, that reads and writes are page-aligned,
// and that a write is flushed to the OS before it returns.
package pager

import "fmt"

// PageSize is the fixed size of every page, in bytes. Every file this
// package manages — heap files and B+Tree index files alike — is a stream
// of PageSize-byte pages.
const PageSize = 4096

// PageID identifies a page by its zero-based position in the file.
type PageID uint32

// NoPage is the sentinel "no page" pointer. Its bit pattern is the same as
// the on-disk i32 value -1 (two's-complement 0xFFFFFFFF), so it round-trips
// through the binary layouts in internal/btree without a separate signed
// encoding path.
const NoPage PageID = PageID(^uint32(0))

// String implements fmt.Stringer for debugging and log output.
func (id PageID) String() string {
	if id == NoPage {
		return "<none>"
	}
	return fmt.Sprintf("%d", uint32(id))
}
