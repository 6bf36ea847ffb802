package store

import (
	"fmt"

	"dms/types"
)

// buildFilter translates a SearchFilter into SQL conditions against the
// joined documents table. startIdx is the first free placeholder number.
// The returned string starts with " AND" when any condition applies.
func buildFilter(f types.SearchFilter, startIdx int) (string, []any) {
	var clause string
	var args []any
	idx := startIdx

	if f.Category != "" {
		clause += fmt.Sprintf(" AND d.category = $%d", idx)
		args = append(args, f.Category)
		idx++
	}
	if f.Directory != "" {
		// Exact label or any deeper level under it: "2024/03" matches
		// "2024/03" and "2024/03/Rechnungen" but not "2024/031".
		clause += fmt.Sprintf(" AND (d.directory = $%d OR d.directory LIKE $%d || '/%%')", idx, idx)
		args = append(args, f.Directory)
		idx++
	}
	if !f.DateFrom.IsZero() {
		clause += fmt.Sprintf(" AND d.import_date >= $%d", idx)
		args = append(args, f.DateFrom)
		idx++
	}
	if !f.DateTo.IsZero() {
		clause += fmt.Sprintf(" AND d.import_date <= $%d", idx)
		args = append(args, f.DateTo)
		idx++
	}

	return clause, args
}
