package common

import "fmt"

// RID is a row identifier: the (page, slot) pair a B+Tree leaf entry points
// at and a HeapFile operation accepts. It is stable for the lifetime of a
// row — updates either rewrite in place (RID preserved) or fail.
type RID struct {
	PageID uint32
	Slot   uint32
}

// String renders the RID for log and debug output.
func (r RID) String() string { return fmt.Sprintf("(%d,%d)", r.PageID, r.Slot) }
