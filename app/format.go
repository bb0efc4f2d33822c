package main

import (
	"strconv"
	"strings"
)

// FormatRows renders a QueryResult's rows for the CLI: a single column
// prints its bare value one per line, multiple columns are pipe-joined. A
// COUNT(*) result renders as its bare count instead.
func FormatRows(result *QueryResult) []string {
	if result.CountOnly {
		return []string{strconv.Itoa(result.Count)}
	}
	lines := make([]string, len(result.Rows))
	for i, row := range result.Rows {
		lines[i] = strings.Join(row, "|")
	}
	return lines
}
