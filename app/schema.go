package main

import "sort"

// This file resolves the sqlite_schema table on page 1 into typed table and
// index metadata.

// SchemaEntry is one raw row of sqlite_schema: type, name, tbl_name,
// rootpage, sql.
type SchemaEntry struct {
	Type     string
	Name     string
	TblName  string
	RootPage uint32
	SQL      string
}

// Column is one column of a table, as declared in its CREATE TABLE text.
type Column struct {
	Name       string
	DeclType   string
	RowIDAlias bool
}

// Table is the resolved metadata for one user table: its column list and the
// indexes built over it.
type Table struct {
	Name     string
	RootPage uint32
	Columns  []Column
	Indexes  []*Index
}

// ColumnIndex returns the position of a column by name (case-insensitive),
// or -1 if the table has no such column.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if equalFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// RowIDAliasIndex returns the position of the column that aliases the
// rowid, or -1 if the table has no such column (an ordinary table stores
// its rowid out of band instead).
func (t *Table) RowIDAliasIndex() int {
	for i, c := range t.Columns {
		if c.RowIDAlias {
			return i
		}
	}
	return -1
}

// Index is the resolved metadata for one index: the ordered column list its
// key is built from, and the table it covers.
type Index struct {
	Name     string
	TblName  string
	RootPage uint32
	Columns  []string
}

// MatchesSingleColumn reports whether this index can serve an equality
// lookup on the given column alone, the only shape the planner knows how
// to exploit.
func (idx *Index) MatchesSingleColumn(column string) bool {
	return len(idx.Columns) >= 1 && equalFold(idx.Columns[0], column)
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// schemaRoot is the fixed root page of sqlite_schema.
const schemaRoot uint32 = 1

// decodeSchemaEntry reads the five schema columns out of a decoded record.
// rootpage is frequently stored as serial type 8/9 (the literal 0/1) for
// triggers and views, but table/index rows always carry a real page number;
// callers that need a rootpage skip entries where it is absent.
func decodeSchemaEntry(rec *Record) (SchemaEntry, bool) {
	typeVal, ok := rec.Column(0)
	if !ok || typeVal.Kind != KindText {
		return SchemaEntry{}, false
	}
	nameVal, ok := rec.Column(1)
	if !ok || nameVal.Kind != KindText {
		return SchemaEntry{}, false
	}
	tblNameVal, ok := rec.Column(2)
	if !ok || tblNameVal.Kind != KindText {
		return SchemaEntry{}, false
	}
	rootVal, ok := rec.Column(3)
	var root uint32
	if ok && (rootVal.Kind == KindInt || rootVal.Kind == KindPrimaryKey) && rootVal.Int > 0 {
		root = uint32(rootVal.Int)
	}
	sqlText := ""
	if sqlVal, ok := rec.Column(4); ok && sqlVal.Kind == KindText {
		sqlText = sqlVal.Text
	}

	return SchemaEntry{
		Type:     typeVal.Text,
		Name:     nameVal.Text,
		TblName:  tblNameVal.Text,
		RootPage: root,
		SQL:      sqlText,
	}, true
}

// Schema returns every row of sqlite_schema in on-disk cell order, resolving
// and caching it on first call.
func (db *Db) Schema() ([]SchemaEntry, error) {
	db.schemaMu.Lock()
	defer db.schemaMu.Unlock()
	if db.schema != nil {
		return db.schema, nil
	}
	if err := db.loadSchemaLocked(); err != nil {
		return nil, err
	}
	return db.schema, nil
}

// loadSchemaLocked walks the sqlite_schema table B-tree and builds the
// Table/Index maps from its rows. Callers hold schemaMu.
func (db *Db) loadSchemaLocked() error {
	cursor := db.NewTableCursor(schemaRoot)
	var entries []SchemaEntry
	for {
		_, rec, ok, err := cursor.Next()
		if err != nil {
			return NewDatabaseError("load_schema", err, nil)
		}
		if !ok {
			break
		}
		entry, ok := decodeSchemaEntry(rec)
		if !ok {
			return NewDatabaseError("load_schema", ErrMalformedSchemaRow, nil)
		}
		entries = append(entries, entry)
	}

	tables := make(map[string]*Table)
	indexes := make(map[string]*Index)

	for _, e := range entries {
		if e.Type != "table" || e.SQL == "" || e.RootPage == 0 {
			continue
		}
		cols, err := parseCreateTable(e.SQL)
		if err != nil {
			continue // views, virtual tables, and other non-table DDL are out of scope
		}
		tables[e.Name] = &Table{Name: e.Name, RootPage: e.RootPage, Columns: cols}
	}

	for _, e := range entries {
		if e.Type != "index" || e.RootPage == 0 {
			continue
		}
		if e.SQL == "" {
			// Auto-created index backing a UNIQUE/PRIMARY KEY constraint:
			// no CREATE INDEX text to recover a column list from.
			continue
		}
		tblName, cols, err := parseCreateIndex(e.SQL)
		if err != nil {
			continue
		}
		idx := &Index{Name: e.Name, TblName: tblName, RootPage: e.RootPage, Columns: cols}
		indexes[e.Name] = idx
		if t, ok := tables[tblName]; ok {
			t.Indexes = append(t.Indexes, idx)
		}
	}

	db.schema = entries
	db.tables = tables
	db.indexes = indexes
	return nil
}

// TableNames returns every user table name in sqlite_schema cell order
// (sqlite_schema itself is never included, matching .tables' own output).
func (db *Db) TableNames() ([]string, error) {
	entries, err := db.Schema()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.Type == "table" {
			names = append(names, e.Name)
		}
	}
	return names, nil
}

// TableCount returns the figure `.dbinfo` reports as "number of tables": the
// raw cell count of page 1, not a filtered count of type=="table" schema
// rows. A database with indexes or triggers already defined will
// report more than its table count; this matches the documented contract
// rather than the friendlier-sounding name.
func (db *Db) TableCount() (int, error) {
	view, err := db.Page(schemaRoot)
	if err != nil {
		return 0, err
	}
	header, err := view.Header()
	if err != nil {
		return 0, err
	}
	return int(header.NumCells), nil
}

// Table resolves one table's metadata by name.
func (db *Db) Table(name string) (*Table, error) {
	if _, err := db.Schema(); err != nil {
		return nil, err
	}
	db.schemaMu.Lock()
	defer db.schemaMu.Unlock()
	t, ok := db.tables[name]
	if !ok {
		return nil, NewDatabaseError("get_table", ErrTableNotFound, map[string]any{"table": name})
	}
	return t, nil
}

// Index resolves one index's metadata by name.
func (db *Db) Index(name string) (*Index, error) {
	if _, err := db.Schema(); err != nil {
		return nil, err
	}
	db.schemaMu.Lock()
	defer db.schemaMu.Unlock()
	idx, ok := db.indexes[name]
	if !ok {
		return nil, NewDatabaseError("get_index", ErrIndexNotFound, map[string]any{"index": name})
	}
	return idx, nil
}

// sortedTableNames is used by tests that need a deterministic iteration
// order distinct from schema cell order.
func sortedTableNames(db *Db) ([]string, error) {
	names, err := db.TableNames()
	if err != nil {
		return nil, err
	}
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	return sorted, nil
}
