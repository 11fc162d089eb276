package table

import (
	"fmt"
	"sort"
	"sync"

	"github.com/relicdb/relic/internal/common"
)

// MemTable is the in-memory dual-mode variant of DiskTable: rows live in an
// append-only slice (a nil entry is a tombstone) and the primary-key index
// is a sorted key slice plus a key→index map, the in-memory equivalent of
// the disk PageBTree's sorted leaf chain. Operations, ordering guarantees,
// and the error taxonomy match DiskTable exactly; only persistence differs
// — Flush and Close are no-ops, and there is no physical slot size, so
// Update can never fail with ErrOversize here.
type MemTable struct {
	mu     sync.Mutex
	schema Schema
	rows   []*common.Row
	index  map[int64]int
	sorted []int64
}

// NewMemTable creates an empty in-memory table for schema.
func NewMemTable(schema Schema) *MemTable {
	return &MemTable{schema: schema, index: make(map[int64]int)}
}

func (t *MemTable) primaryKey(row common.Row) (int64, error) {
	pk, err := t.schema.PrimaryKey()
	if err != nil {
		return 0, err
	}
	v, ok := row.Get(pk.Name)
	if !ok {
		return 0, fmt.Errorf("table: row missing primary key %q: %w", pk.Name, common.ErrMissingKey)
	}
	key, ok := v.AsInt64()
	if !ok {
		return 0, fmt.Errorf("table: primary key %q is not integral: %w", pk.Name, common.ErrWrongType)
	}
	return key, nil
}

func (t *MemTable) insertSorted(key int64) {
	i := sort.Search(len(t.sorted), func(i int) bool { return t.sorted[i] >= key })
	t.sorted = append(t.sorted, 0)
	copy(t.sorted[i+1:], t.sorted[i:len(t.sorted)-1])
	t.sorted[i] = key
}

func (t *MemTable) removeSorted(key int64) {
	i := sort.Search(len(t.sorted), func(i int) bool { return t.sorted[i] >= key })
	if i < len(t.sorted) && t.sorted[i] == key {
		t.sorted = append(t.sorted[:i], t.sorted[i+1:]...)
	}
}

// Insert implements Relation.
func (t *MemTable) Insert(row common.Row) (common.RID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key, err := t.primaryKey(row)
	if err != nil {
		return common.RID{}, err
	}
	if _, ok := t.index[key]; ok {
		return common.RID{}, fmt.Errorf("table: key %d already exists: %w", key, common.ErrDuplicate)
	}

	r := row.Clone()
	t.rows = append(t.rows, &r)
	idx := len(t.rows) - 1
	t.index[key] = idx
	t.insertSorted(key)
	return common.RID{PageID: 0, Slot: uint32(idx)}, nil
}

// Select implements Relation.
func (t *MemTable) Select(key int64) (common.Row, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx, ok := t.index[key]
	if !ok {
		return common.Row{}, false, nil
	}
	row := t.rows[idx]
	if row == nil {
		return common.Row{}, false, nil
	}
	return row.Clone(), true, nil
}

// SelectRange implements Relation.
func (t *MemTable) SelectRange(low, high int64) ([]common.Row, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	start := sort.Search(len(t.sorted), func(i int) bool { return t.sorted[i] >= low })
	var rows []common.Row
	for i := start; i < len(t.sorted) && t.sorted[i] <= high; i++ {
		row := t.rows[t.index[t.sorted[i]]]
		if row == nil {
			continue
		}
		rows = append(rows, row.Clone())
	}
	return rows, nil
}

// SelectAll implements Relation.
func (t *MemTable) SelectAll() ([]common.Row, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var rows []common.Row
	for _, row := range t.rows {
		if row == nil {
			continue
		}
		rows = append(rows, row.Clone())
	}
	return rows, nil
}

// Update implements Relation.
func (t *MemTable) Update(key int64, partial common.Row) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	pk, err := t.schema.PrimaryKey()
	if err != nil {
		return err
	}
	if v, ok := partial.Get(pk.Name); ok {
		newKey, isInt := v.AsInt64()
		if !isInt || newKey != key {
			return fmt.Errorf("table: update may not change primary key %q: %w", pk.Name, common.ErrPrimaryKeyImmutable)
		}
	}

	idx, ok := t.index[key]
	if !ok {
		return fmt.Errorf("table: key %d: %w", key, common.ErrNotFound)
	}
	current := t.rows[idx]
	if current == nil {
		return fmt.Errorf("table: key %d: %w", key, common.ErrDeleted)
	}

	merged := current.Clone()
	for i, col := range partial.Columns {
		merged = merged.Set(col, partial.Values[i])
	}
	t.rows[idx] = &merged
	return nil
}

// Delete implements Relation.
func (t *MemTable) Delete(key int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx, ok := t.index[key]
	if !ok {
		return fmt.Errorf("table: key %d: %w", key, common.ErrNotFound)
	}
	t.rows[idx] = nil
	delete(t.index, key)
	t.removeSorted(key)
	return nil
}

// Flush implements Relation; ephemeral tables have nothing to persist.
func (t *MemTable) Flush() error { return nil }

// Close implements Relation; ephemeral tables have nothing to release.
func (t *MemTable) Close() error { return nil }
