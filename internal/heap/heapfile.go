package heap

import (
	"errors"
	"fmt"

	"github.com/relicdb/relic/internal/common"
	"github.com/relicdb/relic/internal/pager"
)

// HeapFile stores row payloads keyed by common.RID on top of a Pager. Rows
// are encoded with the binary row codec in row_codec.go; pages are the
// slotted-page layout in slotted_page.go.
type HeapFile struct {
	pager *pager.Pager
}

// Open opens (or creates) a heap file at path.
func Open(path string) (*HeapFile, error) {
	p, err := pager.Open(path)
	if err != nil {
		return nil, fmt.Errorf("heap: open %s: %w", path, err)
	}
	return &HeapFile{pager: p}, nil
}

// Insert encodes row and places it in the first page with enough free
// space, allocating a new page if none qualifies. Returns the RID assigned
// to the new row.
func (h *HeapFile) Insert(row common.Row) (common.RID, error) {
	data := encodeRow(row)

	n := h.pager.NumPages()
	for pid := int64(0); pid < n; pid++ {
		buf, err := h.pager.ReadPage(pager.PageID(pid))
		if err != nil {
			return common.RID{}, fmt.Errorf("heap: insert: %w", err)
		}
		sp := wrapSlottedPage(buf)
		slot, err := sp.insertRecord(data)
		if err != nil {
			if errors.Is(err, errPageFull) {
				continue
			}
			return common.RID{}, err
		}
		if err := h.pager.WritePage(pager.PageID(pid), buf); err != nil {
			return common.RID{}, fmt.Errorf("heap: insert: %w", err)
		}
		return common.RID{PageID: uint32(pid), Slot: uint32(slot)}, nil
	}

	// No existing page had room — allocate a fresh one.
	pid, err := h.pager.AllocatePage()
	if err != nil {
		return common.RID{}, fmt.Errorf("heap: insert: allocate page: %w", err)
	}
	buf := make([]byte, pager.PageSize)
	sp := initSlottedPage(buf)
	slot, err := sp.insertRecord(data)
	if err != nil {
		return common.RID{}, fmt.Errorf("heap: insert: row too large for an empty page: %w", err)
	}
	if err := h.pager.WritePage(pid, buf); err != nil {
		return common.RID{}, fmt.Errorf("heap: insert: %w", err)
	}
	return common.RID{PageID: uint32(pid), Slot: uint32(slot)}, nil
}

// Get returns the row at rid, or (_, false, nil) if the page doesn't exist,
// the slot is out of range, or the slot is tombstoned.
func (h *HeapFile) Get(rid common.RID) (common.Row, bool, error) {
	buf, ok, err := h.readPage(rid.PageID)
	if err != nil || !ok {
		return common.Row{}, false, err
	}
	sp := wrapSlottedPage(buf)
	if int(rid.Slot) >= sp.numSlots() {
		return common.Row{}, false, nil
	}
	data := sp.getRecord(int(rid.Slot))
	if data == nil {
		return common.Row{}, false, nil
	}
	row, err := decodeRow(data)
	if err != nil {
		return common.Row{}, false, err
	}
	return row, true, nil
}

// Update overwrites the row at rid in place. Fails with ErrOutOfRange on a
// missing page/slot, ErrDeleted on a tombstoned slot, and ErrOversize if
// the new encoding does not fit the slot's current length.
func (h *HeapFile) Update(rid common.RID, row common.Row) error {
	buf, ok, err := h.readPage(rid.PageID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("heap: update %s: %w", rid, common.ErrOutOfRange)
	}
	sp := wrapSlottedPage(buf)
	if int(rid.Slot) >= sp.numSlots() {
		return fmt.Errorf("heap: update %s: %w", rid, common.ErrOutOfRange)
	}
	if sp.isTombstone(int(rid.Slot)) {
		return fmt.Errorf("heap: update %s: %w", rid, common.ErrDeleted)
	}
	data := encodeRow(row)
	old := sp.getSlot(int(rid.Slot))
	if len(data) > int(old.Length) {
		return fmt.Errorf("heap: update %s: need %d bytes, slot holds %d: %w", rid, len(data), old.Length, common.ErrOversize)
	}
	sp.updateRecordInPlace(int(rid.Slot), data)
	return h.pager.WritePage(pager.PageID(rid.PageID), buf)
}

// Delete tombstones the slot at rid. Fails with ErrOutOfRange on a missing
// page/slot, ErrDeleted if the slot is already a tombstone.
func (h *HeapFile) Delete(rid common.RID) error {
	buf, ok, err := h.readPage(rid.PageID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("heap: delete %s: %w", rid, common.ErrOutOfRange)
	}
	sp := wrapSlottedPage(buf)
	if int(rid.Slot) >= sp.numSlots() {
		return fmt.Errorf("heap: delete %s: %w", rid, common.ErrOutOfRange)
	}
	if sp.isTombstone(int(rid.Slot)) {
		return fmt.Errorf("heap: delete %s: %w", rid, common.ErrDeleted)
	}
	sp.deleteRecord(int(rid.Slot))
	return h.pager.WritePage(pager.PageID(rid.PageID), buf)
}

// Scan calls fn for every live row in page-then-slot order. Scanning stops
// early if fn returns false.
func (h *HeapFile) Scan(fn func(rid common.RID, row common.Row) bool) error {
	n := h.pager.NumPages()
	for pid := int64(0); pid < n; pid++ {
		buf, err := h.pager.ReadPage(pager.PageID(pid))
		if err != nil {
			return fmt.Errorf("heap: scan: %w", err)
		}
		sp := wrapSlottedPage(buf)
		for slot := 0; slot < sp.numSlots(); slot++ {
			data := sp.getRecord(slot)
			if data == nil {
				continue
			}
			row, err := decodeRow(data)
			if err != nil {
				return fmt.Errorf("heap: scan: %w", err)
			}
			if !fn(common.RID{PageID: uint32(pid), Slot: uint32(slot)}, row) {
				return nil
			}
		}
	}
	return nil
}

// readPage fetches the page for a page id, reporting (nil, false, nil) if
// the page id is out of range rather than an error — Get/Update/Delete
// distinguish "out of range" from I/O failure via the bool/err pair.
func (h *HeapFile) readPage(pageID uint32) ([]byte, bool, error) {
	if int64(pageID) >= h.pager.NumPages() {
		return nil, false, nil
	}
	buf, err := h.pager.ReadPage(pager.PageID(pageID))
	if err != nil {
		return nil, false, fmt.Errorf("heap: read page %d: %w", pageID, err)
	}
	return buf, true, nil
}

// Sync flushes the backing file.
func (h *HeapFile) Sync() error { return h.pager.Sync() }

// Close releases the backing file handle.
func (h *HeapFile) Close() error { return h.pager.Close() }

// Path returns the backing file path.
func (h *HeapFile) Path() string { return h.pager.Path() }
