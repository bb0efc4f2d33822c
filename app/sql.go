package main

import (
	"regexp"
	"strings"

	"github.com/xwb1989/sqlparser"
)

// This file wraps github.com/xwb1989/sqlparser, the one external collaborator
// this engine delegates SQL text to. sqlparser speaks a MySQL-ish dialect, so
// SQLite source text is normalized before being handed to it; CREATE INDEX
// isn't part of its DDL grammar at all, so that shape is still parsed by hand
// below, same as the column list it never learns to read either.

// rowIDAliasPattern matches "<col> integer primary key" (AUTOINCREMENT
// optional), the textual shape of SQLite's rowid-aliasing rule. sqlparser's
// column AST only surfaces the AUTOINCREMENT keyword reliably, not bare
// PRIMARY KEY placement, so the declaration is matched against the raw SQL
// text instead of trusting a constraint field that may or may not exist on
// this fork's ColumnType.
var rowIDAliasPattern = regexp.MustCompile(`(?i)"?([A-Za-z_][A-Za-z0-9_]*)"?\s+integer\s+primary\s+key(\s+autoincrement)?\b`)

// normalizeSQLiteToMySQL rewrites SQLite-specific syntax into something
// sqlparser accepts: double-quoted identifiers confuse its lexer, and
// SQLite's "PRIMARY KEY AUTOINCREMENT" column suffix has no MySQL spelling
// other than "AUTO_INCREMENT PRIMARY KEY".
func normalizeSQLiteToMySQL(sql string) string {
	normalized := strings.ReplaceAll(sql, `"`, "")
	normalized = strings.ReplaceAll(normalized, "primary key autoincrement", "AUTO_INCREMENT PRIMARY KEY")
	normalized = strings.ReplaceAll(normalized, "PRIMARY KEY AUTOINCREMENT", "AUTO_INCREMENT PRIMARY KEY")
	return strings.TrimSpace(normalized)
}

// parseCreateTable parses a sqlite_schema row's CREATE TABLE text into its
// column list, detecting which column (if any) is the INTEGER PRIMARY KEY
// that aliases the rowid.
func parseCreateTable(sqlText string) ([]Column, error) {
	stmt, err := sqlparser.Parse(normalizeSQLiteToMySQL(sqlText))
	if err != nil {
		return nil, NewDatabaseError("parse_create_table", ErrUnparseableSQL, map[string]any{"sql": sqlText, "cause": err.Error()})
	}

	ddl, ok := stmt.(*sqlparser.DDL)
	if !ok || ddl.Action != "create" || ddl.TableSpec == nil {
		return nil, NewDatabaseError("parse_create_table", ErrUnparseableSQL, map[string]any{"sql": sqlText})
	}

	aliasCol := ""
	if m := rowIDAliasPattern.FindStringSubmatch(sqlText); m != nil {
		aliasCol = m[1]
	}

	columns := make([]Column, len(ddl.TableSpec.Columns))
	for i, col := range ddl.TableSpec.Columns {
		columns[i] = Column{
			Name:       col.Name.String(),
			DeclType:   col.Type.Type,
			RowIDAlias: aliasCol != "" && strings.EqualFold(col.Name.String(), aliasCol),
		}
	}
	return columns, nil
}

// EqCondition is one `column = 'literal'` equality test; a query's WHERE
// clause is zero or more of these, ANDed together.
type EqCondition struct {
	Col string
	Val string
}

// parseSelect extracts the table name, projected columns (with the COUNT(*)
// special case), and the ANDed equality conditions from a SELECT statement.
// Only the restricted subset this engine executes is accepted; anything
// richer reports ErrUnsupportedQuery.
type SelectQuery struct {
	Table      string
	Columns    []string
	CountStar  bool
	Conditions []EqCondition
}

func parseSelect(sqlText string) (*SelectQuery, error) {
	stmt, err := sqlparser.Parse(sqlText)
	if err != nil {
		return nil, NewDatabaseError("parse_select", ErrUnparseableSQL, map[string]any{"sql": sqlText, "cause": err.Error()})
	}
	sel, ok := stmt.(*sqlparser.Select)
	if !ok {
		return nil, NewDatabaseError("parse_select", ErrUnsupportedQuery, map[string]any{"sql": sqlText})
	}

	table, err := extractTableName(sel)
	if err != nil {
		return nil, err
	}

	q := &SelectQuery{Table: table}
	for _, expr := range sel.SelectExprs {
		switch e := expr.(type) {
		case *sqlparser.StarExpr:
			q.Columns = nil
			q.CountStar = false
		case *sqlparser.AliasedExpr:
			switch inner := e.Expr.(type) {
			case *sqlparser.FuncExpr:
				if !strings.EqualFold(inner.Name.String(), "count") {
					return nil, NewDatabaseError("parse_select", ErrUnsupportedQuery, map[string]any{"function": inner.Name.String()})
				}
				q.CountStar = true
			case *sqlparser.ColName:
				q.Columns = append(q.Columns, inner.Name.String())
			default:
				return nil, NewDatabaseError("parse_select", ErrUnsupportedQuery, nil)
			}
		default:
			return nil, NewDatabaseError("parse_select", ErrUnsupportedQuery, nil)
		}
	}

	if sel.Where != nil {
		conditions, err := extractConditions(sel.Where.Expr)
		if err != nil {
			return nil, err
		}
		q.Conditions = conditions
	}

	return q, nil
}

func extractTableName(sel *sqlparser.Select) (string, error) {
	if len(sel.From) != 1 {
		return "", NewDatabaseError("parse_select", ErrUnsupportedQuery, map[string]any{"reason": "exactly one table required"})
	}
	aliased, ok := sel.From[0].(*sqlparser.AliasedTableExpr)
	if !ok {
		return "", NewDatabaseError("parse_select", ErrUnsupportedQuery, nil)
	}
	name, ok := aliased.Expr.(sqlparser.TableName)
	if !ok {
		return "", NewDatabaseError("parse_select", ErrUnsupportedQuery, nil)
	}
	return name.Name.String(), nil
}

// extractConditions walks an AND-only tree of `column = 'literal'` tests.
// OR and any operator besides `=` are out of scope and reported as
// ErrUnsupportedQuery.
func extractConditions(expr sqlparser.Expr) ([]EqCondition, error) {
	switch e := expr.(type) {
	case *sqlparser.AndExpr:
		left, err := extractConditions(e.Left)
		if err != nil {
			return nil, err
		}
		right, err := extractConditions(e.Right)
		if err != nil {
			return nil, err
		}
		return append(left, right...), nil
	case *sqlparser.ParenExpr:
		return extractConditions(e.Expr)
	case *sqlparser.ComparisonExpr:
		if e.Operator != sqlparser.EqualStr {
			return nil, NewDatabaseError("parse_select", ErrUnsupportedQuery, map[string]any{"operator": e.Operator})
		}
		colName, ok := e.Left.(*sqlparser.ColName)
		if !ok {
			return nil, NewDatabaseError("parse_select", ErrUnsupportedQuery, map[string]any{"reason": "filter left side must be a column"})
		}
		lit, ok := e.Right.(*sqlparser.SQLVal)
		if !ok {
			return nil, NewDatabaseError("parse_select", ErrUnsupportedQuery, map[string]any{"reason": "filter right side must be a literal"})
		}
		return []EqCondition{{Col: colName.Name.String(), Val: string(lit.Val)}}, nil
	default:
		return nil, NewDatabaseError("parse_select", ErrUnsupportedQuery, map[string]any{"reason": "only conjunctions of equality filters are supported"})
	}
}

// parseCreateIndex extracts the table name and ordered column list from a
// CREATE INDEX statement by hand: sqlparser's DDL grammar never learned
// CREATE INDEX, so there's no AST to walk here.
func parseCreateIndex(sqlText string) (tableName string, columns []string, err error) {
	upper := strings.ToUpper(sqlText)
	onIdx := strings.Index(upper, " ON ")
	if onIdx == -1 {
		return "", nil, NewDatabaseError("parse_create_index", ErrUnparseableSQL, map[string]any{"sql": sqlText})
	}
	afterOn := sqlText[onIdx+4:]

	parenStart := strings.Index(afterOn, "(")
	parenEnd := strings.LastIndex(afterOn, ")")
	if parenStart == -1 || parenEnd == -1 || parenStart >= parenEnd {
		return "", nil, NewDatabaseError("parse_create_index", ErrUnparseableSQL, map[string]any{"sql": sqlText})
	}

	tableName = strings.TrimSpace(afterOn[:parenStart])
	tableName = strings.Trim(tableName, `"`)

	columnsPart := afterOn[parenStart+1 : parenEnd]
	for _, col := range strings.Split(columnsPart, ",") {
		columns = append(columns, strings.Trim(strings.TrimSpace(col), `"`))
	}
	return tableName, columns, nil
}
