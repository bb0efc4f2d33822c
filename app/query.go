package main

import "strconv"

// This file is the query executor: it turns a parsed SelectQuery into a
// scan-or-index plan, walks the chosen path, and projects the matching rows.

// QueryResult is the executor's output: either a single count (CountOnly)
// or a column list with one []string per matching row, already rendered the
// way a result line prints.
type QueryResult struct {
	CountOnly bool
	Count     int
	Columns   []string
	Rows      [][]string
}

// columnValue resolves column i of a row, substituting the cell's rowid for
// a column that aliases it. present is false when the record omits a
// trailing column; the projection layer skips such columns rather than
// rendering them as empty.
func columnValue(table *Table, rowid uint64, rec *Record, colIdx int) (value RecordValue, present bool) {
	if colIdx < len(table.Columns) && table.Columns[colIdx].RowIDAlias {
		return PrimaryKeyValue(rowid), true
	}
	return rec.Column(colIdx)
}

// valueEqualsLiteral is the executor's equality predicate. Unlike
// RecordValue.EqualsText, which only ever matches a Text column, this
// extends equality to Int/PrimaryKey and Float columns when the literal
// itself parses as a number. Without that, `WHERE id = 5` could never match
// a rowid-alias column and the filter path over it would be useless.
func valueEqualsLiteral(v RecordValue, literal string) bool {
	switch v.Kind {
	case KindText:
		return v.Text == literal
	case KindInt, KindPrimaryKey:
		n, err := strconv.ParseInt(literal, 10, 64)
		return err == nil && v.Int == n
	case KindFloat:
		f, err := strconv.ParseFloat(literal, 64)
		return err == nil && v.Float == f
	default:
		return false
	}
}

// rowPasses applies every one of the query's ANDed conditions to a
// resolved row. A column absent from the record never satisfies a
// condition, same as record.go's Column contract treats absence as
// distinct from Null.
func rowPasses(table *Table, rowid uint64, rec *Record, conditions []EqCondition) bool {
	for _, cond := range conditions {
		ci := table.ColumnIndex(cond.Col)
		if ci == -1 {
			return false
		}
		v, ok := columnValue(table, rowid, rec, ci)
		if !ok || !valueEqualsLiteral(v, cond.Val) {
			return false
		}
	}
	return true
}

// probeCondition returns the condition (if any) whose column matches idx's
// leading column, the one the planner can use to drive an index search.
func probeCondition(idx *Index, conditions []EqCondition) (EqCondition, bool) {
	for _, cond := range conditions {
		if idx.MatchesSingleColumn(cond.Col) {
			return cond, true
		}
	}
	return EqCondition{}, false
}

// planSelect resolves the target table and picks an index that covers one
// of the query's conditions, if any does.
// A nil index means a full table scan; the remaining conditions (including
// the one used to probe) are still checked per row via rowPasses.
func (db *Db) planSelect(q *SelectQuery) (*Table, *Index, error) {
	table, err := db.Table(q.Table)
	if err != nil {
		return nil, nil, err
	}
	for _, idx := range table.Indexes {
		if _, ok := probeCondition(idx, q.Conditions); ok {
			return table, idx, nil
		}
	}
	return table, nil, nil
}

// iterateMatches walks either the index or the full table scan and invokes
// fn once per row that satisfies every one of the query's conditions.
//
// The index search key is built as an Int when the literal is a canonical
// integer and as Text otherwise. An Int probe compares numerically against
// Int-typed index keys, so descent through interior pages follows numeric
// order; against Text keys compareIndexKeys falls back to rendered text,
// which for a canonical integer is the literal itself, so one code path
// serves both column types.
func (db *Db) iterateMatches(table *Table, idx *Index, q *SelectQuery, fn func(rowid uint64, rec *Record) error) error {
	if idx != nil {
		cond, ok := probeCondition(idx, q.Conditions)
		if !ok {
			return NewDatabaseError("select", ErrUnsupportedQuery, nil)
		}
		key := TextValue(cond.Val)
		if n, err := strconv.ParseInt(cond.Val, 10, 64); err == nil && formatInt(n) == cond.Val {
			key = IntValue(n)
		}
		cursor := db.NewIndexCursor(idx.RootPage, key)
		for {
			rowid, ok, err := cursor.Next()
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			rec, found, err := db.TableLookup(table.RootPage, rowid)
			if err != nil {
				return err
			}
			if !found || !rowPasses(table, rowid, rec, q.Conditions) {
				continue
			}
			if err := fn(rowid, rec); err != nil {
				return err
			}
		}
	}

	cursor := db.NewTableCursor(table.RootPage)
	for {
		rowid, rec, ok, err := cursor.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if !rowPasses(table, rowid, rec, q.Conditions) {
			continue
		}
		if err := fn(rowid, rec); err != nil {
			return err
		}
	}
}

// Select runs a parsed query end to end: plan, walk, project.
func (db *Db) Select(q *SelectQuery) (*QueryResult, error) {
	table, idx, err := db.planSelect(q)
	if err != nil {
		return nil, err
	}

	columns := q.Columns
	if len(columns) == 0 && !q.CountStar {
		for _, c := range table.Columns {
			columns = append(columns, c.Name)
		}
	}

	colIndices := make([]int, len(columns))
	for i, name := range columns {
		ci := table.ColumnIndex(name)
		if ci == -1 {
			return nil, NewDatabaseError("select", ErrColumnNotFound, map[string]any{"column": name, "table": table.Name})
		}
		colIndices[i] = ci
	}

	result := &QueryResult{CountOnly: q.CountStar, Columns: columns}

	err = db.iterateMatches(table, idx, q, func(rowid uint64, rec *Record) error {
		if q.CountStar {
			result.Count++
			return nil
		}
		row := make([]string, 0, len(colIndices))
		for _, ci := range colIndices {
			v, ok := columnValue(table, rowid, rec, ci)
			if !ok {
				continue
			}
			row = append(row, v.String())
		}
		result.Rows = append(result.Rows, row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
