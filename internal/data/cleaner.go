package data

import "math"

// Clean returns a copy of t where a zero in any sentinel column is replaced
// by a missing value. Other columns are copied unchanged, so cleaning an
// already-cleaned table yields an equal table.
func Clean(t *Table) (*Table, error) {
	cols := t.columns()
	for _, name := range SentinelColumns {
		col := cols[name]
		for i, v := range col {
			if v == 0 {
				col[i] = math.NaN()
			}
		}
	}
	return NewTable(cols, t.Labels())
}

// IsSentinel reports whether zero is a "not recorded" marker for column.
func IsSentinel(column string) bool {
	for _, name := range SentinelColumns {
		if name == column {
			return true
		}
	}
	return false
}
