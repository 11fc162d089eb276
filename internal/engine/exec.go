package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/relicdb/relic/internal/catalog"
	"github.com/relicdb/relic/internal/common"
	"github.com/relicdb/relic/internal/table"
)

// Result is the outcome of running one statement: either a row set (SELECT)
// or an affected-row count (everything else).
type Result struct {
	Columns      []string
	Rows         []common.Row
	RowsAffected int
}

// Engine compiles and runs statements from the SQL subset in §6A directly
// against a Database's tables — there is no general predicate evaluator or
// intermediate query plan; each statement shape maps onto exactly one
// Relation operation, except CREATE TABLE and DROP TABLE, which map onto
// one Database call.
type Engine struct {
	db *catalog.Database
}

// NewEngine wraps db for SQL execution.
func NewEngine(db *catalog.Database) *Engine {
	return &Engine{db: db}
}

// Exec runs a non-SELECT statement (CREATE TABLE, DROP TABLE, INSERT,
// UPDATE, DELETE).
func (e *Engine) Exec(sql string) (*Result, error) {
	stmt, err := parse(sql)
	if err != nil {
		return nil, err
	}
	switch s := stmt.(type) {
	case *CreateTableStmt:
		return e.execCreateTable(s)
	case *InsertStmt:
		return e.execInsert(s)
	case *UpdateStmt:
		return e.execUpdate(s)
	case *DeleteStmt:
		return e.execDelete(s)
	case *DropTableStmt:
		return e.execDropTable(s)
	case *SelectStmt:
		return nil, fmt.Errorf("engine: use Query for SELECT statements")
	default:
		return nil, fmt.Errorf("engine: unsupported statement %T", stmt)
	}
}

// Query runs a SELECT statement and returns its row set.
func (e *Engine) Query(sql string) (*Result, error) {
	stmt, err := parse(sql)
	if err != nil {
		return nil, err
	}
	sel, ok := stmt.(*SelectStmt)
	if !ok {
		return nil, fmt.Errorf("engine: use Exec for non-SELECT statements")
	}
	return e.execSelect(sel)
}

func parse(sql string) (Statement, error) {
	return NewParser(strings.TrimRight(strings.TrimSpace(sql), ";")).ParseStatement()
}

func (e *Engine) execCreateTable(s *CreateTableStmt) (*Result, error) {
	cols := make([]table.Column, len(s.Cols))
	for i, c := range s.Cols {
		typ, ok := table.ParseColumnType(strings.ToLower(c.Type))
		if !ok {
			return nil, fmt.Errorf("engine: unknown column type %q", c.Type)
		}
		cols[i] = table.Column{Name: c.Name, Type: typ}
	}
	schema := table.Schema{Columns: cols}
	if _, err := e.db.CreateTable(s.Table, schema, 0); err != nil {
		return nil, err
	}
	return &Result{}, nil
}

func (e *Engine) execDropTable(s *DropTableStmt) (*Result, error) {
	if err := e.db.DropTable(s.Table); err != nil {
		return nil, err
	}
	return &Result{}, nil
}

func (e *Engine) resolveTable(name string) (table.Relation, table.Schema, error) {
	t, ok := e.db.GetTable(name)
	if !ok {
		return nil, table.Schema{}, fmt.Errorf("engine: no such table %q", name)
	}
	schema, ok := e.db.TableSchema(name)
	if !ok {
		return nil, table.Schema{}, fmt.Errorf("engine: no such table %q", name)
	}
	return t, schema, nil
}

func literalToValue(lit Literal, want table.ColumnType) (common.Value, error) {
	switch lit.Kind {
	case "null":
		return common.Null, nil
	case "int":
		if want == table.ColFloat {
			return common.FloatValue(float64(lit.I)), nil
		}
		return common.IntValue(lit.I), nil
	case "float":
		return common.FloatValue(lit.F), nil
	case "text":
		return common.TextValue(lit.S), nil
	default:
		return common.Value{}, fmt.Errorf("engine: unknown literal kind %q", lit.Kind)
	}
}

func (e *Engine) execInsert(s *InsertStmt) (*Result, error) {
	t, schema, err := e.resolveTable(s.Table)
	if err != nil {
		return nil, err
	}
	if len(s.Vals) != len(schema.Columns) {
		return nil, fmt.Errorf("engine: table %q has %d columns, got %d values", s.Table, len(schema.Columns), len(s.Vals))
	}
	values := make([]common.Value, len(s.Vals))
	for i, lit := range s.Vals {
		v, err := literalToValue(lit, schema.Columns[i].Type)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	row := common.NewRow(schema.ColumnNames(), values)
	if _, err := t.Insert(row); err != nil {
		return nil, err
	}
	return &Result{RowsAffected: 1}, nil
}

// whereKey extracts the primary-key literal from a WhereClause that must
// name the schema's primary-key column, per §6A's restriction to
// primary-key predicates only.
func whereKey(where *WhereClause, schema table.Schema) (int64, error) {
	pk, err := schema.PrimaryKey()
	if err != nil {
		return 0, err
	}
	if where.Col != pk.Name {
		return 0, fmt.Errorf("engine: predicate on %q is not compiled; only the primary key %q is supported", where.Col, pk.Name)
	}
	if where.Eq.Kind != "int" {
		return 0, fmt.Errorf("engine: primary-key predicate must be an integer literal")
	}
	return where.Eq.I, nil
}

func (e *Engine) execUpdate(s *UpdateStmt) (*Result, error) {
	t, schema, err := e.resolveTable(s.Table)
	if err != nil {
		return nil, err
	}
	key, err := whereKey(&s.Where, schema)
	if err != nil {
		return nil, err
	}
	var cols []string
	var vals []common.Value
	for _, a := range s.Sets {
		colType := table.ColText
		for _, c := range schema.Columns {
			if c.Name == a.Col {
				colType = c.Type
			}
		}
		v, err := literalToValue(a.Val, colType)
		if err != nil {
			return nil, err
		}
		cols = append(cols, a.Col)
		vals = append(vals, v)
	}
	partial := common.NewRow(cols, vals)
	if err := t.Update(key, partial); err != nil {
		return nil, err
	}
	return &Result{RowsAffected: 1}, nil
}

func (e *Engine) execDelete(s *DeleteStmt) (*Result, error) {
	t, schema, err := e.resolveTable(s.Table)
	if err != nil {
		return nil, err
	}
	key, err := whereKey(&s.Where, schema)
	if err != nil {
		return nil, err
	}
	if err := t.Delete(key); err != nil {
		return nil, err
	}
	return &Result{RowsAffected: 1}, nil
}

func (e *Engine) execSelect(s *SelectStmt) (*Result, error) {
	t, schema, err := e.resolveTable(s.Table)
	if err != nil {
		return nil, err
	}

	var rows []common.Row
	switch {
	case s.Where == nil:
		rows, err = t.SelectAll()
	case !s.Where.IsBetween:
		key, kerr := whereKey(s.Where, schema)
		if kerr != nil {
			return nil, kerr
		}
		row, found, serr := t.Select(key)
		if serr != nil {
			return nil, serr
		}
		if found {
			rows = []common.Row{row}
		}
	default:
		pk, perr := schema.PrimaryKey()
		if perr != nil {
			return nil, perr
		}
		if s.Where.Col != pk.Name {
			return nil, fmt.Errorf("engine: BETWEEN predicate on %q is not compiled; only the primary key %q is supported", s.Where.Col, pk.Name)
		}
		if s.Where.Low.Kind != "int" || s.Where.High.Kind != "int" {
			return nil, fmt.Errorf("engine: BETWEEN bounds must be integer literals")
		}
		rows, err = t.SelectRange(s.Where.Low.I, s.Where.High.I)
	}
	if err != nil {
		return nil, err
	}

	if s.OrderBy != "" {
		orderByColumn(rows, s.OrderBy, s.Desc)
	}
	if s.Limit != nil && *s.Limit < len(rows) {
		rows = rows[:*s.Limit]
	}
	return &Result{Columns: schema.ColumnNames(), Rows: rows}, nil
}

// orderByColumn sorts rows in place by the named column. ORDER BY and LIMIT
// are applied here, outside the table layer, which has no notion of either.
func orderByColumn(rows []common.Row, col string, desc bool) {
	sort.SliceStable(rows, func(i, j int) bool {
		vi, _ := rows[i].Get(col)
		vj, _ := rows[j].Get(col)
		less := compareValues(vi, vj)
		if desc {
			return less > 0
		}
		return less < 0
	})
}

// compareValues returns -1, 0, or 1 comparing two values of the same kind.
func compareValues(a, b common.Value) int {
	switch a.Kind {
	case common.KindInt:
		switch {
		case a.I < b.I:
			return -1
		case a.I > b.I:
			return 1
		default:
			return 0
		}
	case common.KindFloat:
		switch {
		case a.F < b.F:
			return -1
		case a.F > b.F:
			return 1
		default:
			return 0
		}
	case common.KindText:
		return strings.Compare(a.S, b.S)
	default:
		return 0
	}
}
