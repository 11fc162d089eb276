package btree

import (
	"errors"
	"fmt"

	"github.com/relicdb/relic/internal/common"
	"github.com/relicdb/relic/internal/pager"
)

// PageBTree maps signed 64-bit integer keys to common.RID values. The tree
// is entirely page-resident: every node read or write goes through the
// Pager, and the root always lives at page 0.
type PageBTree struct {
	pager       *pager.Pager
	leafCap     int
	internalCap int
}

// Open opens (or creates) a B+Tree index file at path. order, if greater
// than zero and smaller than the hard page-derived capacity, caps the
// number of keys a node may hold before splitting — useful for exercising
// split/merge behavior without filling a full 4096-byte page. order <= 0
// uses the hard capacity.
func Open(path string, order int) (*PageBTree, error) {
	p, err := pager.Open(path)
	if err != nil {
		return nil, fmt.Errorf("btree: open %s: %w", path, err)
	}
	bt := &PageBTree{
		pager:       p,
		leafCap:     hardLeafCapacity(),
		internalCap: hardInternalCapacity(),
	}
	if order > 0 {
		if order < bt.leafCap {
			bt.leafCap = order
		}
		if order < bt.internalCap {
			bt.internalCap = order
		}
	}
	if p.NumPages() == 0 {
		id, err := p.AllocatePage()
		if err != nil {
			return nil, fmt.Errorf("btree: init root: %w", err)
		}
		if id != 0 {
			return nil, fmt.Errorf("btree: init root: expected page 0, got %d: %w", id, common.ErrCorrupt)
		}
		buf := make([]byte, pager.PageSize)
		initLeafNode(buf)
		if err := p.WritePage(0, buf); err != nil {
			return nil, fmt.Errorf("btree: init root: %w", err)
		}
	}
	return bt, nil
}

func (bt *PageBTree) readNode(id pager.PageID) (*node, error) {
	buf, err := bt.pager.ReadPage(id)
	if err != nil {
		if errors.Is(err, common.ErrOutOfRange) {
			return nil, fmt.Errorf("btree: read page %d: %w: %w", id, common.ErrCorrupt, err)
		}
		return nil, fmt.Errorf("btree: read page %d: %w", id, err)
	}
	return wrapNode(buf), nil
}

func (bt *PageBTree) writeNode(id pager.PageID, n *node) error {
	if err := bt.pager.WritePage(id, n.buf); err != nil {
		return fmt.Errorf("btree: write page %d: %w", id, err)
	}
	return nil
}

func (bt *PageBTree) capacityFor(isLeaf bool) int {
	if isLeaf {
		return bt.leafCap
	}
	return bt.internalCap
}

func (bt *PageBTree) isFull(n *node) bool {
	return n.numKeys() >= bt.capacityFor(n.isLeaf())
}

func (bt *PageBTree) atMinimum(n *node) bool {
	return n.numKeys() <= minKeysFor(bt.capacityFor(n.isLeaf()))
}

// Search performs a point lookup.
func (bt *PageBTree) Search(key int64) (common.RID, bool, error) {
	nodeID := pager.PageID(0)
	for {
		n, err := bt.readNode(nodeID)
		if err != nil {
			return common.RID{}, false, err
		}
		if n.isLeaf() {
			pos, found := n.findLeafPos(key)
			if !found {
				return common.RID{}, false, nil
			}
			return n.leafEntryAt(pos).RID, true, nil
		}
		idx := n.findChildIndex(key)
		nodeID = n.internalChildren()[idx]
	}
}

// Insert adds key → rid, or overwrites the RID if key is already present
// (duplicate rejection is the table layer's responsibility; this layer
// assumes distinct keys but tolerates a repeat by updating in place rather
// than corrupting the tree).
func (bt *PageBTree) Insert(key int64, rid common.RID) error {
	if err := bt.splitRootIfFull(); err != nil {
		return fmt.Errorf("btree: insert %d: %w", key, err)
	}

	nodeID := pager.PageID(0)
	for {
		n, err := bt.readNode(nodeID)
		if err != nil {
			return fmt.Errorf("btree: insert %d: %w", key, err)
		}
		if n.isLeaf() {
			entries := n.allLeafEntries()
			pos, found := n.findLeafPos(key)
			if found {
				entries[pos].RID = rid
			} else {
				entries = append(entries, leafEntry{})
				copy(entries[pos+1:], entries[pos:len(entries)-1])
				entries[pos] = leafEntry{Key: key, RID: rid}
			}
			if err := n.rebuildLeaf(entries, n.nextPage()); err != nil {
				return fmt.Errorf("btree: insert %d: %w", key, err)
			}
			return bt.writeNode(nodeID, n)
		}

		idx := n.findChildIndex(key)
		children := n.internalChildren()
		childID := children[idx]
		child, err := bt.readNode(childID)
		if err != nil {
			return fmt.Errorf("btree: insert %d: %w", key, err)
		}
		if bt.isFull(child) {
			if err := bt.splitChild(nodeID, idx, childID); err != nil {
				return fmt.Errorf("btree: insert %d: %w", key, err)
			}
			n, err = bt.readNode(nodeID)
			if err != nil {
				return fmt.Errorf("btree: insert %d: %w", key, err)
			}
			idx = n.findChildIndex(key)
			childID = n.internalChildren()[idx]
		}
		nodeID = childID
	}
}

// splitRootIfFull implements spec step 1 of the insert algorithm: if the
// root (always page 0) is at capacity, its contents are moved to a freshly
// allocated page, page 0 is rewritten as an internal node with that page as
// its sole child, and that child is split via the normal splitChild path —
// preserving the "root is page 0" invariant.
func (bt *PageBTree) splitRootIfFull() error {
	root, err := bt.readNode(0)
	if err != nil {
		return err
	}
	if !bt.isFull(root) {
		return nil
	}

	movedID, err := bt.pager.AllocatePage()
	if err != nil {
		return fmt.Errorf("split root: %w", err)
	}
	if err := bt.pager.WritePage(movedID, root.buf); err != nil {
		return fmt.Errorf("split root: %w", err)
	}

	newRootBuf := make([]byte, pager.PageSize)
	newRoot := initInternalNode(newRootBuf)
	if err := newRoot.rebuildInternal([]pager.PageID{movedID}, nil); err != nil {
		return fmt.Errorf("split root: %w", err)
	}
	if err := bt.writeNode(0, newRoot); err != nil {
		return fmt.Errorf("split root: %w", err)
	}

	return bt.splitChild(0, 0, movedID)
}

// splitChild splits the node at childID (the idx'th child of parentID) into
// two siblings and inserts the separator into the parent. The caller
// guarantees the parent has room for one more entry.
func (bt *PageBTree) splitChild(parentID pager.PageID, idx int, childID pager.PageID) error {
	child, err := bt.readNode(childID)
	if err != nil {
		return fmt.Errorf("split child: %w", err)
	}

	if child.isLeaf() {
		entries := child.allLeafEntries()
		mid := len(entries) / 2
		leftEntries, rightEntries := entries[:mid], entries[mid:]
		splitKey := rightEntries[0].Key
		oldNext := child.nextPage()

		rightID, err := bt.pager.AllocatePage()
		if err != nil {
			return fmt.Errorf("split child: %w", err)
		}
		left := wrapNode(child.buf)
		if err := left.rebuildLeaf(leftEntries, rightID); err != nil {
			return fmt.Errorf("split child: %w", err)
		}
		rightBuf := make([]byte, pager.PageSize)
		right := initLeafNode(rightBuf)
		if err := right.rebuildLeaf(rightEntries, oldNext); err != nil {
			return fmt.Errorf("split child: %w", err)
		}
		if err := bt.writeNode(childID, left); err != nil {
			return fmt.Errorf("split child: %w", err)
		}
		if err := bt.writeNode(rightID, right); err != nil {
			return fmt.Errorf("split child: %w", err)
		}
		return bt.insertSeparator(parentID, idx, splitKey, rightID)
	}

	children := child.internalChildren()
	keys := child.internalKeys()
	mid := len(keys) / 2
	pushKey := keys[mid]

	leftChildren, leftKeys := children[:mid+1], keys[:mid]
	rightChildren, rightKeys := children[mid+1:], keys[mid+1:]

	rightID, err := bt.pager.AllocatePage()
	if err != nil {
		return fmt.Errorf("split child: %w", err)
	}
	left := wrapNode(child.buf)
	if err := left.rebuildInternal(leftChildren, leftKeys); err != nil {
		return fmt.Errorf("split child: %w", err)
	}
	rightBuf := make([]byte, pager.PageSize)
	right := initInternalNode(rightBuf)
	if err := right.rebuildInternal(rightChildren, rightKeys); err != nil {
		return fmt.Errorf("split child: %w", err)
	}
	if err := bt.writeNode(childID, left); err != nil {
		return fmt.Errorf("split child: %w", err)
	}
	if err := bt.writeNode(rightID, right); err != nil {
		return fmt.Errorf("split child: %w", err)
	}
	return bt.insertSeparator(parentID, idx, pushKey, rightID)
}

// insertSeparator inserts key as the new separator at position idx in
// parentID's key array, with rightChildID becoming children[idx+1].
func (bt *PageBTree) insertSeparator(parentID pager.PageID, idx int, key int64, rightChildID pager.PageID) error {
	parent, err := bt.readNode(parentID)
	if err != nil {
		return fmt.Errorf("insert separator: %w", err)
	}
	children := parent.internalChildren()
	keys := parent.internalKeys()

	newKeys := make([]int64, 0, len(keys)+1)
	newKeys = append(newKeys, keys[:idx]...)
	newKeys = append(newKeys, key)
	newKeys = append(newKeys, keys[idx:]...)

	newChildren := make([]pager.PageID, 0, len(children)+1)
	newChildren = append(newChildren, children[:idx+1]...)
	newChildren = append(newChildren, rightChildID)
	newChildren = append(newChildren, children[idx+1:]...)

	if err := parent.rebuildInternal(newChildren, newKeys); err != nil {
		return fmt.Errorf("insert separator: %w", err)
	}
	return bt.writeNode(parentID, parent)
}

// Delete removes key, reporting whether it was present. Rebalancing
// (borrow-left, borrow-right, merge) happens preemptively while descending,
// and the root is collapsed afterward if it became an empty internal node
// with a single child.
func (bt *PageBTree) Delete(key int64) (bool, error) {
	removed, err := bt.deleteDescend(pager.PageID(0), key)
	if err != nil {
		return false, fmt.Errorf("btree: delete %d: %w", key, err)
	}
	if err := bt.collapseRootIfNeeded(); err != nil {
		return false, fmt.Errorf("btree: delete %d: %w", key, err)
	}
	return removed, nil
}

func (bt *PageBTree) deleteDescend(nodeID pager.PageID, key int64) (bool, error) {
	n, err := bt.readNode(nodeID)
	if err != nil {
		return false, err
	}
	if n.isLeaf() {
		pos, found := n.findLeafPos(key)
		if !found {
			return false, nil
		}
		entries := n.allLeafEntries()
		entries = append(entries[:pos], entries[pos+1:]...)
		if err := n.rebuildLeaf(entries, n.nextPage()); err != nil {
			return false, err
		}
		return true, bt.writeNode(nodeID, n)
	}

	idx := n.findChildIndex(key)
	childID := n.internalChildren()[idx]
	child, err := bt.readNode(childID)
	if err != nil {
		return false, err
	}
	if bt.atMinimum(child) {
		if err := bt.rebalanceChild(nodeID, idx); err != nil {
			return false, err
		}
		n, err = bt.readNode(nodeID)
		if err != nil {
			return false, err
		}
		idx = n.findChildIndex(key)
		childID = n.internalChildren()[idx]
	}
	return bt.deleteDescend(childID, key)
}

// rebalanceChild restores minimum occupancy for parentID's idx'th child by
// borrowing from a sibling that has more than the minimum, or merging with
// a sibling otherwise.
func (bt *PageBTree) rebalanceChild(parentID pager.PageID, idx int) error {
	parent, err := bt.readNode(parentID)
	if err != nil {
		return err
	}
	children := parent.internalChildren()

	if idx > 0 {
		left, err := bt.readNode(children[idx-1])
		if err != nil {
			return err
		}
		if left.numKeys() > minKeysFor(bt.capacityFor(left.isLeaf())) {
			return bt.borrowFromLeft(parentID, idx)
		}
	}
	if idx < len(children)-1 {
		right, err := bt.readNode(children[idx+1])
		if err != nil {
			return err
		}
		if right.numKeys() > minKeysFor(bt.capacityFor(right.isLeaf())) {
			return bt.borrowFromRight(parentID, idx)
		}
	}
	if idx > 0 {
		return bt.mergeChildren(parentID, idx-1)
	}
	return bt.mergeChildren(parentID, idx)
}

// borrowFromLeft rotates one entry from children[idx-1] through the parent
// separator at keys[idx-1] into children[idx].
func (bt *PageBTree) borrowFromLeft(parentID pager.PageID, idx int) error {
	parent, err := bt.readNode(parentID)
	if err != nil {
		return err
	}
	children := parent.internalChildren()
	keys := parent.internalKeys()
	sepIdx := idx - 1
	leftID, childID := children[idx-1], children[idx]

	left, err := bt.readNode(leftID)
	if err != nil {
		return err
	}
	child, err := bt.readNode(childID)
	if err != nil {
		return err
	}

	if child.isLeaf() {
		leftEntries := left.allLeafEntries()
		moved := leftEntries[len(leftEntries)-1]
		leftEntries = leftEntries[:len(leftEntries)-1]
		if err := left.rebuildLeaf(leftEntries, left.nextPage()); err != nil {
			return err
		}
		childEntries := append([]leafEntry{moved}, child.allLeafEntries()...)
		if err := child.rebuildLeaf(childEntries, child.nextPage()); err != nil {
			return err
		}
		keys[sepIdx] = moved.Key
	} else {
		leftChildren := left.internalChildren()
		leftKeys := left.internalKeys()
		movedChild := leftChildren[len(leftChildren)-1]
		movedKey := leftKeys[len(leftKeys)-1]
		leftChildren = leftChildren[:len(leftChildren)-1]
		leftKeys = leftKeys[:len(leftKeys)-1]
		if err := left.rebuildInternal(leftChildren, leftKeys); err != nil {
			return err
		}
		childChildren := append([]pager.PageID{movedChild}, child.internalChildren()...)
		childKeys := append([]int64{keys[sepIdx]}, child.internalKeys()...)
		if err := child.rebuildInternal(childChildren, childKeys); err != nil {
			return err
		}
		keys[sepIdx] = movedKey
	}

	if err := bt.writeNode(leftID, left); err != nil {
		return err
	}
	if err := bt.writeNode(childID, child); err != nil {
		return err
	}
	if err := parent.rebuildInternal(children, keys); err != nil {
		return err
	}
	return bt.writeNode(parentID, parent)
}

// borrowFromRight rotates one entry from children[idx+1] through the parent
// separator at keys[idx] into children[idx].
func (bt *PageBTree) borrowFromRight(parentID pager.PageID, idx int) error {
	parent, err := bt.readNode(parentID)
	if err != nil {
		return err
	}
	children := parent.internalChildren()
	keys := parent.internalKeys()
	sepIdx := idx
	childID, rightID := children[idx], children[idx+1]

	child, err := bt.readNode(childID)
	if err != nil {
		return err
	}
	right, err := bt.readNode(rightID)
	if err != nil {
		return err
	}

	if child.isLeaf() {
		rightEntries := right.allLeafEntries()
		moved := rightEntries[0]
		rightEntries = rightEntries[1:]
		if err := right.rebuildLeaf(rightEntries, right.nextPage()); err != nil {
			return err
		}
		childEntries := append(child.allLeafEntries(), moved)
		if err := child.rebuildLeaf(childEntries, child.nextPage()); err != nil {
			return err
		}
		keys[sepIdx] = rightEntries[0].Key
	} else {
		rightChildren := right.internalChildren()
		rightKeys := right.internalKeys()
		movedChild := rightChildren[0]
		movedKey := rightKeys[0]
		rightChildren = rightChildren[1:]
		rightKeys = rightKeys[1:]
		if err := right.rebuildInternal(rightChildren, rightKeys); err != nil {
			return err
		}
		childChildren := append(child.internalChildren(), movedChild)
		childKeys := append(child.internalKeys(), keys[sepIdx])
		if err := child.rebuildInternal(childChildren, childKeys); err != nil {
			return err
		}
		keys[sepIdx] = movedKey
	}

	if err := bt.writeNode(childID, child); err != nil {
		return err
	}
	if err := bt.writeNode(rightID, right); err != nil {
		return err
	}
	if err := parent.rebuildInternal(children, keys); err != nil {
		return err
	}
	return bt.writeNode(parentID, parent)
}

// mergeChildren concatenates children[leftIdx] and children[leftIdx+1] into
// children[leftIdx], pulling the parent separator down (internal nodes) or
// preserving the leaf chain (leaves), then removes the now-unused slot from
// the parent. The right sibling's page is not reclaimed.
func (bt *PageBTree) mergeChildren(parentID pager.PageID, leftIdx int) error {
	parent, err := bt.readNode(parentID)
	if err != nil {
		return err
	}
	children := parent.internalChildren()
	keys := parent.internalKeys()
	leftID, rightID := children[leftIdx], children[leftIdx+1]
	sepKey := keys[leftIdx]

	left, err := bt.readNode(leftID)
	if err != nil {
		return err
	}
	right, err := bt.readNode(rightID)
	if err != nil {
		return err
	}

	if left.isLeaf() {
		merged := append(left.allLeafEntries(), right.allLeafEntries()...)
		if err := left.rebuildLeaf(merged, right.nextPage()); err != nil {
			return err
		}
	} else {
		mergedChildren := append(left.internalChildren(), right.internalChildren()...)
		mergedKeys := append(append(left.internalKeys(), sepKey), right.internalKeys()...)
		if err := left.rebuildInternal(mergedChildren, mergedKeys); err != nil {
			return err
		}
	}
	if err := bt.writeNode(leftID, left); err != nil {
		return err
	}

	newChildren := make([]pager.PageID, 0, len(children)-1)
	newChildren = append(newChildren, children[:leftIdx+1]...)
	newChildren = append(newChildren, children[leftIdx+2:]...)
	newKeys := make([]int64, 0, len(keys)-1)
	newKeys = append(newKeys, keys[:leftIdx]...)
	newKeys = append(newKeys, keys[leftIdx+1:]...)

	if err := parent.rebuildInternal(newChildren, newKeys); err != nil {
		return err
	}
	return bt.writeNode(parentID, parent)
}

// collapseRootIfNeeded replaces page 0's contents with its sole child's
// contents if the root became an empty internal node with one child,
// preserving the "root is page 0" invariant. The vacated child page is not
// reclaimed.
func (bt *PageBTree) collapseRootIfNeeded() error {
	root, err := bt.readNode(0)
	if err != nil {
		return err
	}
	if root.isLeaf() || root.numKeys() != 0 {
		return nil
	}
	children := root.internalChildren()
	if len(children) != 1 {
		return nil
	}
	child, err := bt.readNode(children[0])
	if err != nil {
		return err
	}
	return bt.pager.WritePage(0, child.buf)
}

// RangeScan calls fn for every (key, RID) pair with low <= key <= high, in
// ascending key order, by locating the leaf that would contain low and then
// walking the leaf linked list. Scanning stops early if fn returns false.
func (bt *PageBTree) RangeScan(low, high int64, fn func(key int64, rid common.RID) bool) error {
	nodeID := pager.PageID(0)
	for {
		n, err := bt.readNode(nodeID)
		if err != nil {
			return fmt.Errorf("btree: range scan: %w", err)
		}
		if n.isLeaf() {
			break
		}
		idx := n.findChildIndex(low)
		nodeID = n.internalChildren()[idx]
	}

	for nodeID != pager.NoPage {
		n, err := bt.readNode(nodeID)
		if err != nil {
			return fmt.Errorf("btree: range scan: %w", err)
		}
		for _, e := range n.allLeafEntries() {
			if e.Key < low {
				continue
			}
			if e.Key > high {
				return nil
			}
			if !fn(e.Key, e.RID) {
				return nil
			}
		}
		nodeID = n.nextPage()
	}
	return nil
}

// Sync flushes the backing file.
func (bt *PageBTree) Sync() error { return bt.pager.Sync() }

// Close releases the backing file handle.
func (bt *PageBTree) Close() error { return bt.pager.Close() }

// Path returns the backing file path.
func (bt *PageBTree) Path() string { return bt.pager.Path() }
