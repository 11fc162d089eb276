// Package catalog implements Database, the flat registry of tables that
// owns catalog.json and forwards DDL to the table layer.
package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/relicdb/relic/internal/common"
	"github.com/relicdb/relic/internal/table"
)

// catalogDoc is the on-disk shape of catalog.json: a flat map from table
// name to its entry, matching the external format exactly — there is no
// enclosing "tables" wrapper.
type catalogDoc map[string]tableDoc

type tableDoc struct {
	Schema     orderedSchema `json:"schema"`
	BTreeOrder int           `json:"btree_order"`
}

// orderedSchema is table.Schema's catalog.json representation: a JSON
// object `{col: type, ...}` whose key order is the schema's column order.
// encoding/json marshals a Go map's keys in an unspecified order and loses
// that order entirely on unmarshal, which would silently discard "first
// column is the primary key" across a save/load round trip — so this type
// hand-rolls ordered object encode/decode instead of using map[string]string.
type orderedSchema []table.Column

func (s orderedSchema) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(c.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		typ, err := json.Marshal(c.Type.String())
		if err != nil {
			return nil, err
		}
		buf.Write(typ)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s *orderedSchema) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil { // consume '{'
		return fmt.Errorf("catalog: schema: %w", err)
	}
	var cols []table.Column
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("catalog: schema: %w", err)
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("catalog: schema: non-string column name %v", keyTok)
		}
		valTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("catalog: schema: %w", err)
		}
		typeName, ok := valTok.(string)
		if !ok {
			return fmt.Errorf("catalog: schema: column %q: non-string type %v", name, valTok)
		}
		colType, ok := table.ParseColumnType(typeName)
		if !ok {
			return fmt.Errorf("catalog: schema: column %q: unknown type %q", name, typeName)
		}
		cols = append(cols, table.Column{Name: name, Type: colType})
	}
	*s = cols
	return nil
}

// Database is a flat, name-addressed registry of open tables, backed by a
// data directory containing catalog.json plus one subdirectory per table.
type Database struct {
	mu     sync.Mutex
	dir    string
	tables map[string]*table.DiskTable
	schema map[string]table.Schema
	order  map[string]int
}

// Open opens (or creates) a database rooted at dir, loading catalog.json
// and eagerly opening every table it names.
func Open(dir string) (*Database, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("catalog: create data dir: %w", err)
	}
	db := &Database{
		dir:    dir,
		tables: make(map[string]*table.DiskTable),
		schema: make(map[string]table.Schema),
		order:  make(map[string]int),
	}

	doc, err := readCatalogDoc(db.catalogPath())
	if err != nil {
		return nil, err
	}
	for name, td := range doc {
		schema := table.Schema{Columns: []table.Column(td.Schema)}
		t, err := table.OpenDiskTable(db.tableDir(name), schema, td.BTreeOrder)
		if err != nil {
			return nil, fmt.Errorf("catalog: open table %q: %w", name, err)
		}
		db.tables[name] = t
		db.schema[name] = schema
		db.order[name] = td.BTreeOrder
	}
	return db, nil
}

func (db *Database) catalogPath() string { return filepath.Join(db.dir, "catalog.json") }
func (db *Database) tableDir(name string) string { return filepath.Join(db.dir, name) }

func readCatalogDoc(path string) (catalogDoc, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return catalogDoc{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	var doc catalogDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", path, err)
	}
	return doc, nil
}

func (db *Database) writeCatalogDoc() error {
	doc := make(catalogDoc, len(db.schema))
	for name, schema := range db.schema {
		doc[name] = tableDoc{
			Schema:     orderedSchema(schema.Columns),
			BTreeOrder: db.order[name],
		}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("catalog: marshal: %w", err)
	}
	if err := os.WriteFile(db.catalogPath(), data, 0o644); err != nil {
		return fmt.Errorf("catalog: write %s: %w", db.catalogPath(), err)
	}
	return nil
}

// CreateTable allocates the backing files for a new table and records it
// in the catalog.
func (db *Database) CreateTable(name string, schema table.Schema, btreeOrder int) (*table.DiskTable, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.tables[name]; exists {
		return nil, fmt.Errorf("catalog: table %q already exists", name)
	}
	if err := os.MkdirAll(db.tableDir(name), 0o755); err != nil {
		return nil, fmt.Errorf("catalog: create table dir: %w", err)
	}
	t, err := table.OpenDiskTable(db.tableDir(name), schema, btreeOrder)
	if err != nil {
		return nil, fmt.Errorf("catalog: create table %q: %w", name, err)
	}
	db.tables[name] = t
	db.schema[name] = schema
	db.order[name] = btreeOrder
	if err := db.writeCatalogDoc(); err != nil {
		return nil, err
	}
	return t, nil
}

// DropTable closes a table's files and removes it from the catalog. Its
// on-disk directory is left in place (the core does not reclaim storage).
func (db *Database) DropTable(name string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	t, ok := db.tables[name]
	if !ok {
		return fmt.Errorf("catalog: no such table %q: %w", name, common.ErrNotFound)
	}
	if err := t.Close(); err != nil {
		return fmt.Errorf("catalog: drop table %q: %w", name, err)
	}
	delete(db.tables, name)
	delete(db.schema, name)
	delete(db.order, name)
	return db.writeCatalogDoc()
}

// GetTable returns the live handle for name, or (nil, false) if unknown.
func (db *Database) GetTable(name string) (*table.DiskTable, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	t, ok := db.tables[name]
	return t, ok
}

// TableSchema returns the schema name was created with, or (Schema{}, false)
// if unknown. Used by the SQL engine to resolve column types and the
// primary key without re-deriving them from a live table handle.
func (db *Database) TableSchema(name string) (table.Schema, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	s, ok := db.schema[name]
	return s, ok
}

// ListTables returns every known table name, sorted.
func (db *Database) ListTables() []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	names := make([]string, 0, len(db.tables))
	for name := range db.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Flush syncs every open table's files without releasing their handles.
func (db *Database) Flush() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	for name, t := range db.tables {
		if err := t.Flush(); err != nil {
			return fmt.Errorf("catalog: flush table %q: %w", name, err)
		}
	}
	return nil
}

// Close flushes and closes every table the database owns.
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	for name, t := range db.tables {
		if err := t.Close(); err != nil {
			return fmt.Errorf("catalog: close table %q: %w", name, err)
		}
	}
	return nil
}
