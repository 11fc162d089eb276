// Package btree implements PageBTree, a disk-resident B+Tree over signed
// 64-bit integer keys mapping to common.RID, page-resident on top of the
// Pager. Every node occupies exactly one page; the root always lives at
// page 0.
package btree

import (
	"encoding/binary"
	"fmt"

	"github.com/relicdb/relic/internal/common"
	"github.com/relicdb/relic/internal/pager"
)

// Node layout (bit-exact, little-endian), shared by leaf and internal pages:
//
//	[0]    IsLeaf   (uint8, 0/1)
//	[1:3]  NumKeys  (uint16)
//	[3:7]  NextPage (int32; -1 = none) — meaningful only for leaves
//
// Leaf entries start at offset 7, 16 bytes each:
//
//	[0:8]  Key     (int64)
//	[8:12] PageID  (uint32)
//	[12:16] Slot   (uint32)
//
// Internal layout starts at offset 7: a child pointer (4 bytes), then
// NumKeys pairs of (key int64, child uint32):
//
//	[7:11] Child0
//	[11:19] Key0, [19:23] Child1
//	[23:31] Key1, [31:35] Child2
//	...
const (
	nodeHeaderSize    = 7
	leafEntrySize     = 16
	internalEntrySize = 12 // key(8) + child(4)
	firstChildSize    = 4
)

// hardLeafCapacity is the maximum number of leaf entries a page can hold.
func hardLeafCapacity() int {
	return (pager.PageSize - nodeHeaderSize) / leafEntrySize
}

// hardInternalCapacity is the maximum number of separator keys an internal
// page can hold (children = keys + 1).
func hardInternalCapacity() int {
	return (pager.PageSize - nodeHeaderSize - firstChildSize) / internalEntrySize
}

// minKeysFor returns the minimum occupancy for a node of the given hard
// capacity: half the capacity, never less than one.
func minKeysFor(capacity int) int {
	m := capacity / 2
	if m < 1 {
		m = 1
	}
	return m
}

// leafEntry is a decoded (key, RID) pair.
type leafEntry struct {
	Key int64
	RID common.RID
}

// node wraps a raw page buffer with header- and entry-level accessors.
type node struct {
	buf []byte
}

func wrapNode(buf []byte) *node { return &node{buf: buf} }

func initLeafNode(buf []byte) *node {
	n := &node{buf: buf}
	n.setLeaf(true)
	n.setNumKeys(0)
	n.setNextPage(pager.NoPage)
	return n
}

func initInternalNode(buf []byte) *node {
	n := &node{buf: buf}
	n.setLeaf(false)
	n.setNumKeys(0)
	n.setNextPage(pager.NoPage)
	return n
}

func (n *node) isLeaf() bool { return n.buf[0] == 1 }

func (n *node) setLeaf(b bool) {
	if b {
		n.buf[0] = 1
	} else {
		n.buf[0] = 0
	}
}

func (n *node) numKeys() int {
	return int(binary.LittleEndian.Uint16(n.buf[1:3]))
}

func (n *node) setNumKeys(k int) {
	binary.LittleEndian.PutUint16(n.buf[1:3], uint16(k))
}

func (n *node) nextPage() pager.PageID {
	return pager.PageID(binary.LittleEndian.Uint32(n.buf[3:7]))
}

func (n *node) setNextPage(p pager.PageID) {
	binary.LittleEndian.PutUint32(n.buf[3:7], uint32(p))
}

// --- leaf entries ---

func (n *node) leafEntryOffset(i int) int {
	return nodeHeaderSize + i*leafEntrySize
}

func (n *node) leafEntryAt(i int) leafEntry {
	off := n.leafEntryOffset(i)
	return leafEntry{
		Key: int64(binary.LittleEndian.Uint64(n.buf[off : off+8])),
		RID: common.RID{
			PageID: binary.LittleEndian.Uint32(n.buf[off+8 : off+12]),
			Slot:   binary.LittleEndian.Uint32(n.buf[off+12 : off+16]),
		},
	}
}

// allLeafEntries decodes every live entry in key order (the on-disk order
// is always kept sorted, so no re-sort is needed here).
func (n *node) allLeafEntries() []leafEntry {
	nk := n.numKeys()
	entries := make([]leafEntry, nk)
	for i := 0; i < nk; i++ {
		entries[i] = n.leafEntryAt(i)
	}
	return entries
}

// rebuildLeaf rewrites the node's entries and header from scratch.
func (n *node) rebuildLeaf(entries []leafEntry, next pager.PageID) error {
	if len(entries) > hardLeafCapacity() {
		return fmt.Errorf("btree: leaf rebuild: %d entries exceeds page capacity %d: %w", len(entries), hardLeafCapacity(), common.ErrCorrupt)
	}
	n.setLeaf(true)
	n.setNumKeys(len(entries))
	n.setNextPage(next)
	for i, e := range entries {
		off := n.leafEntryOffset(i)
		binary.LittleEndian.PutUint64(n.buf[off:off+8], uint64(e.Key))
		binary.LittleEndian.PutUint32(n.buf[off+8:off+12], e.RID.PageID)
		binary.LittleEndian.PutUint32(n.buf[off+12:off+16], e.RID.Slot)
	}
	return nil
}

// --- internal entries ---

// internalChildren returns the numKeys()+1 child pointers.
func (n *node) internalChildren() []pager.PageID {
	nk := n.numKeys()
	children := make([]pager.PageID, nk+1)
	children[0] = pager.PageID(binary.LittleEndian.Uint32(n.buf[nodeHeaderSize : nodeHeaderSize+4]))
	for i := 0; i < nk; i++ {
		off := nodeHeaderSize + firstChildSize + i*internalEntrySize + 8
		children[i+1] = pager.PageID(binary.LittleEndian.Uint32(n.buf[off : off+4]))
	}
	return children
}

// internalKeys returns the numKeys() separator keys.
func (n *node) internalKeys() []int64 {
	nk := n.numKeys()
	keys := make([]int64, nk)
	for i := 0; i < nk; i++ {
		off := nodeHeaderSize + firstChildSize + i*internalEntrySize
		keys[i] = int64(binary.LittleEndian.Uint64(n.buf[off : off+8]))
	}
	return keys
}

// rebuildInternal rewrites the node's children/keys and header from scratch.
// len(children) must equal len(keys)+1.
func (n *node) rebuildInternal(children []pager.PageID, keys []int64) error {
	if len(children) != len(keys)+1 {
		return fmt.Errorf("btree: internal rebuild: %d children, %d keys: %w", len(children), len(keys), common.ErrCorrupt)
	}
	if len(keys) > hardInternalCapacity() {
		return fmt.Errorf("btree: internal rebuild: %d keys exceeds page capacity %d: %w", len(keys), hardInternalCapacity(), common.ErrCorrupt)
	}
	n.setLeaf(false)
	n.setNumKeys(len(keys))
	n.setNextPage(pager.NoPage)
	binary.LittleEndian.PutUint32(n.buf[nodeHeaderSize:nodeHeaderSize+4], uint32(children[0]))
	for i, k := range keys {
		off := nodeHeaderSize + firstChildSize + i*internalEntrySize
		binary.LittleEndian.PutUint64(n.buf[off:off+8], uint64(k))
		binary.LittleEndian.PutUint32(n.buf[off+8:off+12], uint32(children[i+1]))
	}
	return nil
}

// findChildIndex returns the index i of the child subtree that must contain
// key: the first index where key < keys[i], or len(keys) if key is greater
// than or equal to every separator. On key == keys[i] this descends right
// (into children[i+1]), consistent with leaf-smallest-key separators.
func (n *node) findChildIndex(key int64) int {
	nk := n.numKeys()
	lo, hi := 0, nk
	for lo < hi {
		mid := (lo + hi) / 2
		off := nodeHeaderSize + firstChildSize + mid*internalEntrySize
		k := int64(binary.LittleEndian.Uint64(n.buf[off : off+8]))
		if key < k {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

// findLeafPos returns the position of key among the leaf's sorted entries,
// or the insertion position and found=false if absent.
func (n *node) findLeafPos(key int64) (pos int, found bool) {
	nk := n.numKeys()
	lo, hi := 0, nk
	for lo < hi {
		mid := (lo + hi) / 2
		off := n.leafEntryOffset(mid)
		k := int64(binary.LittleEndian.Uint64(n.buf[off : off+8]))
		if k < key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < nk {
		off := n.leafEntryOffset(lo)
		if int64(binary.LittleEndian.Uint64(n.buf[off:off+8])) == key {
			return lo, true
		}
	}
	return lo, false
}
