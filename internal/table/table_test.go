package table

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/relicdb/relic/internal/common"
)

func testSchema() Schema {
	return Schema{Columns: []Column{
		{Name: "id", Type: ColInt},
		{Name: "name", Type: ColText},
	}}
}

func newRow(id int64, name string) common.Row {
	return common.NewRow([]string{"id", "name"}, []common.Value{common.IntValue(id), common.TextValue(name)})
}

// relationFactories lets every Relation-level test run against both
// DiskTable and MemTable with identical assertions.
func relationFactories(t *testing.T) map[string]func() Relation {
	return map[string]func() Relation{
		"disk": func() Relation {
			dt, err := OpenDiskTable(t.TempDir(), testSchema(), 0)
			if err != nil {
				t.Fatalf("OpenDiskTable: %v", err)
			}
			t.Cleanup(func() { dt.Close() })
			return dt
		},
		"mem": func() Relation {
			return NewMemTable(testSchema())
		},
	}
}

func TestRelationInsertSelect(t *testing.T) {
	for name, factory := range relationFactories(t) {
		t.Run(name, func(t *testing.T) {
			rel := factory()
			if _, err := rel.Insert(newRow(1, "alice")); err != nil {
				t.Fatalf("Insert: %v", err)
			}
			row, found, err := rel.Select(1)
			if err != nil || !found {
				t.Fatalf("Select: found=%v err=%v", found, err)
			}
			v, _ := row.Get("name")
			if v.S != "alice" {
				t.Fatalf("Select: want alice, got %v", v)
			}
			if _, found, _ := rel.Select(999); found {
				t.Fatalf("Select(999): expected not found")
			}
		})
	}
}

func TestRelationDuplicateKeyRejected(t *testing.T) {
	for name, factory := range relationFactories(t) {
		t.Run(name, func(t *testing.T) {
			rel := factory()
			if _, err := rel.Insert(newRow(1, "alice")); err != nil {
				t.Fatalf("Insert: %v", err)
			}
			_, err := rel.Insert(newRow(1, "bob"))
			if !errors.Is(err, common.ErrDuplicate) {
				t.Fatalf("want ErrDuplicate, got %v", err)
			}
		})
	}
}

func TestRelationMissingKeyAndWrongType(t *testing.T) {
	for name, factory := range relationFactories(t) {
		t.Run(name, func(t *testing.T) {
			rel := factory()
			noKey := common.NewRow([]string{"name"}, []common.Value{common.TextValue("alice")})
			if _, err := rel.Insert(noKey); !errors.Is(err, common.ErrMissingKey) {
				t.Fatalf("want ErrMissingKey, got %v", err)
			}
			wrongType := common.NewRow([]string{"id", "name"}, []common.Value{common.TextValue("x"), common.TextValue("alice")})
			if _, err := rel.Insert(wrongType); !errors.Is(err, common.ErrWrongType) {
				t.Fatalf("want ErrWrongType, got %v", err)
			}
		})
	}
}

func TestRelationUpdateAndPrimaryKeyImmutable(t *testing.T) {
	for name, factory := range relationFactories(t) {
		t.Run(name, func(t *testing.T) {
			rel := factory()
			if _, err := rel.Insert(newRow(1, "alice")); err != nil {
				t.Fatalf("Insert: %v", err)
			}

			patch := common.NewRow([]string{"name"}, []common.Value{common.TextValue("al")})
			if err := rel.Update(1, patch); err != nil {
				t.Fatalf("Update: %v", err)
			}
			row, _, _ := rel.Select(1)
			v, _ := row.Get("name")
			if v.S != "al" {
				t.Fatalf("Update: want al, got %v", v)
			}

			badPatch := common.NewRow([]string{"id"}, []common.Value{common.IntValue(2)})
			if err := rel.Update(1, badPatch); !errors.Is(err, common.ErrPrimaryKeyImmutable) {
				t.Fatalf("want ErrPrimaryKeyImmutable, got %v", err)
			}

			if err := rel.Update(999, patch); !errors.Is(err, common.ErrNotFound) {
				t.Fatalf("want ErrNotFound, got %v", err)
			}
		})
	}
}

func TestRelationDeleteAndSelectAllRange(t *testing.T) {
	for name, factory := range relationFactories(t) {
		t.Run(name, func(t *testing.T) {
			rel := factory()
			for i := int64(1); i <= 10; i++ {
				if _, err := rel.Insert(newRow(i, "row")); err != nil {
					t.Fatalf("Insert(%d): %v", i, err)
				}
			}

			if err := rel.Delete(5); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if err := rel.Delete(5); !errors.Is(err, common.ErrNotFound) {
				t.Fatalf("Delete again: want ErrNotFound, got %v", err)
			}

			all, err := rel.SelectAll()
			if err != nil {
				t.Fatalf("SelectAll: %v", err)
			}
			if len(all) != 9 {
				t.Fatalf("SelectAll: got %d rows, want 9", len(all))
			}

			rng, err := rel.SelectRange(3, 7)
			if err != nil {
				t.Fatalf("SelectRange: %v", err)
			}
			wantKeys := map[int64]bool{3: true, 4: true, 6: true, 7: true}
			if len(rng) != len(wantKeys) {
				t.Fatalf("SelectRange: got %d rows, want %d", len(rng), len(wantKeys))
			}
			for _, row := range rng {
				v, _ := row.Get("id")
				if !wantKeys[v.I] {
					t.Fatalf("SelectRange: unexpected key %d", v.I)
				}
			}
		})
	}
}

func TestDiskTablePersistsAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "orders")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	dt, err := OpenDiskTable(dir, testSchema(), 0)
	if err != nil {
		t.Fatalf("OpenDiskTable: %v", err)
	}
	if _, err := dt.Insert(newRow(1, "alice")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := dt.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := dt.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenDiskTable(dir, testSchema(), 0)
	if err != nil {
		t.Fatalf("reopen OpenDiskTable: %v", err)
	}
	defer reopened.Close()

	row, found, err := reopened.Select(1)
	if err != nil || !found {
		t.Fatalf("Select after reopen: found=%v err=%v", found, err)
	}
	v, _ := row.Get("name")
	if v.S != "alice" {
		t.Fatalf("Select after reopen: want alice, got %v", v)
	}
}
