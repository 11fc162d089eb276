// Package heap implements the slotted-page row store (HeapFile) on top of
// the Pager, plus the binary row codec used to serialize rows into slots.
package heap

import (
	"encoding/binary"
	"fmt"
)

// Heap-page layout (bit-exact, little-endian):
//
//	[0:2]  NumSlots  (uint16)
//	[2:4]  Reserved  (uint16, must be 0)
//	[4:4+4*NumSlots] slot directory, 4 bytes per slot:
//	    [0:2] Offset (uint16)
//	    [2:4] Length (uint16)   — (0, 0) is the tombstone sentinel
//	... free space ...
//	Record payloads are packed from the end of the page toward the middle.
//
// There is no stored "free space end" field: it is derived from the
// smallest offset among live slots (spec §4.2's "free-space computation is
// deterministic" note), defaulting to the page size when there are no live
// slots yet.

const (
	heapHeaderSize = 4
	slotEntrySize  = 4
)

// slotEntry is a single directory record.
type slotEntry struct {
	Offset uint16
	Length uint16
}

func (e slotEntry) isTombstone() bool { return e.Offset == 0 && e.Length == 0 }

// slottedPage wraps a raw page buffer with record-level accessors.
type slottedPage struct {
	buf []byte
}

// initSlottedPage zeroes buf's header to make it an empty slotted page.
func initSlottedPage(buf []byte) *slottedPage {
	binary.LittleEndian.PutUint16(buf[0:2], 0)
	binary.LittleEndian.PutUint16(buf[2:4], 0)
	return &slottedPage{buf: buf}
}

func wrapSlottedPage(buf []byte) *slottedPage { return &slottedPage{buf: buf} }

func (sp *slottedPage) numSlots() int {
	return int(binary.LittleEndian.Uint16(sp.buf[0:2]))
}

func (sp *slottedPage) setNumSlots(n int) {
	binary.LittleEndian.PutUint16(sp.buf[0:2], uint16(n))
}

func (sp *slottedPage) getSlot(i int) slotEntry {
	off := heapHeaderSize + i*slotEntrySize
	return slotEntry{
		Offset: binary.LittleEndian.Uint16(sp.buf[off : off+2]),
		Length: binary.LittleEndian.Uint16(sp.buf[off+2 : off+4]),
	}
}

func (sp *slottedPage) setSlot(i int, e slotEntry) {
	off := heapHeaderSize + i*slotEntrySize
	binary.LittleEndian.PutUint16(sp.buf[off:off+2], e.Offset)
	binary.LittleEndian.PutUint16(sp.buf[off+2:off+4], e.Length)
}

func (sp *slottedPage) directoryEnd() int {
	return heapHeaderSize + sp.numSlots()*slotEntrySize
}

// freeSpaceEnd returns the offset where the next record would be placed:
// the smallest offset among live slots, or the page size if none exist.
func (sp *slottedPage) freeSpaceEnd() int {
	end := len(sp.buf)
	for i := 0; i < sp.numSlots(); i++ {
		e := sp.getSlot(i)
		if e.isTombstone() {
			continue
		}
		if int(e.Offset) < end {
			end = int(e.Offset)
		}
	}
	return end
}

// freeSpace returns bytes available for a new record, reserving room for
// one additional slot-directory entry.
func (sp *slottedPage) freeSpace() int {
	return sp.freeSpaceEnd() - sp.directoryEnd() - slotEntrySize
}

func (sp *slottedPage) isTombstone(i int) bool {
	return sp.getSlot(i).isTombstone()
}

// getRecord returns the raw bytes of slot i, or nil if tombstoned.
func (sp *slottedPage) getRecord(i int) []byte {
	e := sp.getSlot(i)
	if e.isTombstone() {
		return nil
	}
	return sp.buf[e.Offset : int(e.Offset)+int(e.Length)]
}

// insertRecord writes data into the page's free region and appends a new
// slot entry; tombstoned slots are never reused. Returns the slot index.
func (sp *slottedPage) insertRecord(data []byte) (int, error) {
	needed := len(data)
	if sp.freeSpace() < needed {
		return -1, fmt.Errorf("heap: page full: need %d bytes, have %d: %w", needed, sp.freeSpace(), errPageFull)
	}
	newEnd := sp.freeSpaceEnd() - needed
	copy(sp.buf[newEnd:], data)

	idx := sp.numSlots()
	sp.setSlot(idx, slotEntry{Offset: uint16(newEnd), Length: uint16(needed)})
	sp.setNumSlots(idx + 1)
	return idx, nil
}

// updateRecordInPlace overwrites slot i's payload, zero-padding any bytes
// left over from a shorter replacement. The caller must have already
// confirmed len(data) <= the slot's current length.
func (sp *slottedPage) updateRecordInPlace(i int, data []byte) {
	e := sp.getSlot(i)
	copy(sp.buf[e.Offset:], data)
	for j := int(e.Offset) + len(data); j < int(e.Offset)+int(e.Length); j++ {
		sp.buf[j] = 0
	}
	sp.setSlot(i, slotEntry{Offset: e.Offset, Length: uint16(len(data))})
}

// deleteRecord writes the tombstone sentinel into slot i's directory entry.
func (sp *slottedPage) deleteRecord(i int) {
	sp.setSlot(i, slotEntry{})
}

// errPageFull is an internal signal distinguished from common.ErrOutOfRange:
// it means "allocate another page and retry", not a caller-visible error.
var errPageFull = fmt.Errorf("heap page full")
