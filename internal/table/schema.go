package table

import "fmt"

// ColumnType is one of the three column types a table schema may declare.
type ColumnType int

const (
	ColInt ColumnType = iota
	ColFloat
	ColText
)

func (t ColumnType) String() string {
	switch t {
	case ColInt:
		return "int"
	case ColFloat:
		return "float"
	case ColText:
		return "text"
	default:
		return "unknown"
	}
}

// ParseColumnType parses the catalog.json spelling of a column type.
func ParseColumnType(s string) (ColumnType, bool) {
	switch s {
	case "int":
		return ColInt, true
	case "float":
		return ColFloat, true
	case "text":
		return ColText, true
	default:
		return 0, false
	}
}

// Column is one named, typed column in a table schema.
type Column struct {
	Name string
	Type ColumnType
}

// Schema describes a table's columns. Column order is preserved by
// insertion order and defines the primary key: the first column.
type Schema struct {
	Columns []Column
}

// PrimaryKey returns the schema's first column.
func (s Schema) PrimaryKey() (Column, error) {
	if len(s.Columns) == 0 {
		return Column{}, fmt.Errorf("table: schema has no columns")
	}
	return s.Columns[0], nil
}

// ColumnNames returns the schema's column names in declared order.
func (s Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}
