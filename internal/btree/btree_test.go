package btree

import (
	"path/filepath"
	"testing"

	"github.com/relicdb/relic/internal/common"
)

func mustOpen(t *testing.T, order int) *PageBTree {
	t.Helper()
	bt, err := Open(filepath.Join(t.TempDir(), "pk.idx"), order)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { bt.Close() })
	return bt
}

func rid(n int64) common.RID { return common.RID{PageID: uint32(n), Slot: 0} }

func TestBTreeInsertSearch(t *testing.T) {
	bt := mustOpen(t, 0)
	for i := int64(0); i < 20; i++ {
		if err := bt.Insert(i, rid(i)); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	for i := int64(0); i < 20; i++ {
		got, found, err := bt.Search(i)
		if err != nil {
			t.Fatalf("Search(%d): %v", i, err)
		}
		if !found {
			t.Fatalf("Search(%d): not found", i)
		}
		if got != rid(i) {
			t.Fatalf("Search(%d): got %v, want %v", i, got, rid(i))
		}
	}
	if _, found, _ := bt.Search(999); found {
		t.Fatalf("Search(999): expected not found")
	}
}

func TestBTreeSplitStressDescendingOrder4(t *testing.T) {
	bt := mustOpen(t, 4)
	for k := int64(100); k >= 1; k-- {
		if err := bt.Insert(k, rid(k)); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
		for check := k; check <= 100; check++ {
			if _, found, err := bt.Search(check); err != nil || !found {
				t.Fatalf("after inserting %d: Search(%d) found=%v err=%v", k, check, found, err)
			}
		}
	}

	var got []int64
	err := bt.RangeScan(25, 75, func(key int64, r common.RID) bool {
		got = append(got, key)
		if r != rid(key) {
			t.Fatalf("RangeScan(%d): rid mismatch got %v want %v", key, r, rid(key))
		}
		return true
	})
	if err != nil {
		t.Fatalf("RangeScan: %v", err)
	}
	if len(got) != 51 {
		t.Fatalf("RangeScan: got %d keys, want 51", len(got))
	}
	for i, k := range got {
		want := int64(25 + i)
		if k != want {
			t.Fatalf("RangeScan[%d]: got %d, want %d", i, k, want)
		}
	}
}

func TestBTreeDeleteWithRebalance(t *testing.T) {
	bt := mustOpen(t, 4)
	for k := int64(1); k <= 50; k++ {
		if err := bt.Insert(k, rid(k)); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}

	for k := int64(1); k <= 40; k++ {
		removed, err := bt.Delete(k)
		if err != nil {
			t.Fatalf("Delete(%d): %v", k, err)
		}
		if !removed {
			t.Fatalf("Delete(%d): expected removed=true", k)
		}
	}

	for k := int64(1); k <= 40; k++ {
		if _, found, _ := bt.Search(k); found {
			t.Fatalf("Search(%d): expected deleted", k)
		}
	}
	for k := int64(41); k <= 50; k++ {
		if _, found, err := bt.Search(k); err != nil || !found {
			t.Fatalf("Search(%d): expected present, found=%v err=%v", k, found, err)
		}
	}

	removed, err := bt.Delete(999)
	if err != nil {
		t.Fatalf("Delete(999): %v", err)
	}
	if removed {
		t.Fatalf("Delete(999): expected removed=false for missing key")
	}
}

func TestBTreeRangeScanUnbounded(t *testing.T) {
	bt := mustOpen(t, 4)
	for k := int64(1); k <= 30; k++ {
		if err := bt.Insert(k*2, rid(k)); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	var got []int64
	err := bt.RangeScan(0, 1000, func(key int64, _ common.RID) bool {
		got = append(got, key)
		return true
	})
	if err != nil {
		t.Fatalf("RangeScan: %v", err)
	}
	if len(got) != 30 {
		t.Fatalf("RangeScan: got %d keys, want 30", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i] <= got[i-1] {
			t.Fatalf("RangeScan: not ascending at %d: %d <= %d", i, got[i], got[i-1])
		}
	}
}

func TestBTreeUpdateExistingKeyOverwritesRID(t *testing.T) {
	bt := mustOpen(t, 0)
	if err := bt.Insert(1, rid(1)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := bt.Insert(1, rid(2)); err != nil {
		t.Fatalf("Insert (overwrite): %v", err)
	}
	got, found, err := bt.Search(1)
	if err != nil || !found {
		t.Fatalf("Search: found=%v err=%v", found, err)
	}
	if got != rid(2) {
		t.Fatalf("Search: got %v, want %v", got, rid(2))
	}
}
