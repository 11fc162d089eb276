package engine

import (
	"database/sql"
	"sort"
	"strconv"
	"testing"

	"github.com/relicdb/relic/internal/catalog"

	_ "modernc.org/sqlite"
)

// TestCrossValidationAgainstSQLite runs the same fixture through this
// engine and through a real SQL engine (modernc.org/sqlite, test-only) and
// checks the two agree on every query in §6A's subset. This is a
// differential check, not a correctness proof on its own — it catches
// divergence between this engine's semantics and an established SQL
// engine's on the shared subset of behavior both implement.
func TestCrossValidationAgainstSQLite(t *testing.T) {
	sdb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("sqlite open: %v", err)
	}
	defer sdb.Close()
	if _, err := sdb.Exec(`CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)`); err != nil {
		t.Fatalf("sqlite create: %v", err)
	}

	cdb, err := catalog.Open(t.TempDir())
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	defer cdb.Close()
	e := NewEngine(cdb)
	if _, err := e.Exec(`CREATE TABLE t (id INT, name TEXT)`); err != nil {
		t.Fatalf("engine create: %v", err)
	}

	inserts := []struct {
		id   int
		name string
	}{
		{1, "alice"}, {2, "bob"}, {3, "carol"}, {4, "dave"}, {5, "erin"},
	}
	for _, row := range inserts {
		if _, err := sdb.Exec(`INSERT INTO t (id, name) VALUES (?, ?)`, row.id, row.name); err != nil {
			t.Fatalf("sqlite insert: %v", err)
		}
		insertSQL := "INSERT INTO t VALUES (" + strconv.Itoa(row.id) + ", '" + row.name + "')"
		if _, err := e.Exec(insertSQL); err != nil {
			t.Fatalf("engine insert: %v", err)
		}
	}

	if _, err := sdb.Exec(`UPDATE t SET name = ? WHERE id = ?`, "ali", 1); err != nil {
		t.Fatalf("sqlite update: %v", err)
	}
	if _, err := e.Exec(`UPDATE t SET name = 'ali' WHERE id = 1`); err != nil {
		t.Fatalf("engine update: %v", err)
	}

	if _, err := sdb.Exec(`DELETE FROM t WHERE id = ?`, 3); err != nil {
		t.Fatalf("sqlite delete: %v", err)
	}
	if _, err := e.Exec(`DELETE FROM t WHERE id = 3`); err != nil {
		t.Fatalf("engine delete: %v", err)
	}

	compareSelectAll(t, sdb, e)
	compareSelectByID(t, sdb, e, 2)
	compareSelectByID(t, sdb, e, 3) // deleted row, both sides must agree on absence
	compareSelectRange(t, sdb, e, 1, 5)
}

func compareSelectAll(t *testing.T, sdb *sql.DB, e *Engine) {
	t.Helper()
	want := sqliteRows(t, sdb, `SELECT id, name FROM t ORDER BY id`)
	res, err := e.Query(`SELECT * FROM t ORDER BY id ASC`)
	if err != nil {
		t.Fatalf("engine select all: %v", err)
	}
	got := engineRows(t, res)
	assertSameRows(t, "select all", want, got)
}

func compareSelectByID(t *testing.T, sdb *sql.DB, e *Engine, id int) {
	t.Helper()
	want := sqliteRows(t, sdb, `SELECT id, name FROM t WHERE id = `+strconv.Itoa(id))
	res, err := e.Query(`SELECT * FROM t WHERE id = ` + strconv.Itoa(id))
	if err != nil {
		t.Fatalf("engine select(%d): %v", id, err)
	}
	got := engineRows(t, res)
	assertSameRows(t, "select by id", want, got)
}

func compareSelectRange(t *testing.T, sdb *sql.DB, e *Engine, low, high int) {
	t.Helper()
	want := sqliteRows(t, sdb, `SELECT id, name FROM t WHERE id BETWEEN `+strconv.Itoa(low)+` AND `+strconv.Itoa(high)+` ORDER BY id`)
	res, err := e.Query(`SELECT * FROM t WHERE id BETWEEN ` + strconv.Itoa(low) + ` AND ` + strconv.Itoa(high) + ` ORDER BY id ASC`)
	if err != nil {
		t.Fatalf("engine select range: %v", err)
	}
	got := engineRows(t, res)
	assertSameRows(t, "select range", want, got)
}

type nameRow struct {
	id   int64
	name string
}

func sqliteRows(t *testing.T, sdb *sql.DB, query string) []nameRow {
	t.Helper()
	rows, err := sdb.Query(query)
	if err != nil {
		t.Fatalf("sqlite query %q: %v", query, err)
	}
	defer rows.Close()
	var out []nameRow
	for rows.Next() {
		var r nameRow
		if err := rows.Scan(&r.id, &r.name); err != nil {
			t.Fatalf("sqlite scan: %v", err)
		}
		out = append(out, r)
	}
	return out
}

func engineRows(t *testing.T, res *Result) []nameRow {
	t.Helper()
	out := make([]nameRow, len(res.Rows))
	for i, row := range res.Rows {
		idVal, _ := row.Get("id")
		nameVal, _ := row.Get("name")
		out[i] = nameRow{id: idVal.I, name: nameVal.S}
	}
	return out
}

func assertSameRows(t *testing.T, label string, want, got []nameRow) {
	t.Helper()
	if len(want) != len(got) {
		t.Fatalf("%s: row count mismatch: sqlite=%d engine=%d", label, len(want), len(got))
	}
	sort.Slice(want, func(i, j int) bool { return want[i].id < want[j].id })
	sort.Slice(got, func(i, j int) bool { return got[i].id < got[j].id })
	for i := range want {
		if want[i] != got[i] {
			t.Fatalf("%s: row %d mismatch: sqlite=%+v engine=%+v", label, i, want[i], got[i])
		}
	}
}

