// Package registry holds the in-memory model of the year-indexed
// identifier registry: parsing the CSV into typed rows, mutating them,
// and patching edits back into the original text without disturbing any
// byte the editor does not manage.
package registry

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Canonical column names. Registry files name their own columns; these
// are the conventional names used when a file's header is unusable and
// for the plain-serialization fallback.
const (
	ColYear                = "年度"
	ColDistributedPid      = "分配PID"
	ColDistributedID       = "分配ID"
	ColMaintenanceResultID = "整備結果ID"
)

// Column identifiers accepted by UpdateCell. The Japanese canonical names
// are accepted interchangeably.
const (
	FieldYear                = "year"
	FieldDistributedPid      = "distributedPid"
	FieldDistributedID       = "distributedId"
	FieldMaintenanceResultID = "maintenanceResultId"
)

var canonicalColumns = []string{ColYear, ColDistributedPid, ColDistributedID, ColMaintenanceResultID}

// Row is one year entry. All four fields are strings and stay strings:
// identifiers carry leading zeros and non-numeric tokens that a numeric
// type would corrupt, and an absent value is "" rather than any sentinel.
type Row struct {
	Year                string
	DistributedPid      string
	DistributedID       string
	MaintenanceResultID string

	// line is the 1-based physical line of this row's record in the
	// original text, 0 for rows added after parse. orig snapshots the
	// managed values as parsed; the patch engine rewrites a token only
	// when the current value differs from its snapshot.
	line int
	orig [4]string
}

// Table is the in-memory registry: ordered rows plus the bookkeeping the
// patch engine needs to rebuild the original file around an edit.
//
// Degraded tables (header narrower than four columns) carry the raw cell
// grid instead of typed rows. They can be viewed and exported but reject
// every mutation: there are no managed columns to write.
type Table struct {
	Header   []string
	Rows     []Row
	Degraded bool
	Grid     [][]string

	headerLine   int
	mappingValid bool
	deletedLines []int
}

// MappingValid reports whether every row still references its own
// physical line of the original text. It is false when any record spanned
// multiple lines at parse time; saves then fall back to plain
// serialization instead of in-place patching.
func (t *Table) MappingValid() bool {
	return t.mappingValid
}

// Modified reports whether the table differs from what was parsed: a row
// added or deleted, or any managed value changed from its snapshot.
func (t *Table) Modified() bool {
	return !t.unchanged()
}

func (t *Table) unchanged() bool {
	if len(t.deletedLines) > 0 {
		return false
	}
	for i := range t.Rows {
		r := &t.Rows[i]
		if r.line == 0 {
			return false
		}
		if r.DistributedPid != r.orig[1] ||
			r.DistributedID != r.orig[2] ||
			r.MaintenanceResultID != r.orig[3] {
			return false
		}
	}
	return true
}

// AddYear appends a new row for year with empty identifier fields and
// re-sorts the table by the numeric-aware year order. The table is left
// untouched when the year is blank or already present.
func (t *Table) AddYear(year string) error {
	if t.Degraded {
		return ErrDegradedTable
	}
	if year == "" {
		return ErrEmptyYear
	}
	for i := range t.Rows {
		if t.Rows[i].Year == year {
			return fmt.Errorf("%w: %q", ErrDuplicateYear, year)
		}
	}
	t.Rows = append(t.Rows, Row{Year: year})
	t.sortByYear()
	return nil
}

// UpdateCell overwrites one managed field of one row. The year column is
// immutable here; it changes only through AddYear.
func (t *Table) UpdateCell(row int, column, value string) error {
	if t.Degraded {
		return ErrDegradedTable
	}
	if row < 0 || row >= len(t.Rows) {
		return fmt.Errorf("%w: row %d of %d", ErrRowRange, row, len(t.Rows))
	}
	switch {
	case strings.EqualFold(column, FieldYear), column == ColYear:
		return ErrYearImmutable
	case strings.EqualFold(column, FieldDistributedPid), column == ColDistributedPid:
		t.Rows[row].DistributedPid = value
	case strings.EqualFold(column, FieldDistributedID), column == ColDistributedID:
		t.Rows[row].DistributedID = value
	case strings.EqualFold(column, FieldMaintenanceResultID), column == ColMaintenanceResultID:
		t.Rows[row].MaintenanceResultID = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownColumn, column)
	}
	return nil
}

// DeleteRows removes rows by their current table index. Rows that came
// from the original file leave a tombstone so the patch engine drops
// exactly their physical lines; middle deletions therefore never shift
// another row's data. All indexes are validated before any change.
func (t *Table) DeleteRows(rows []int) error {
	if t.Degraded {
		return ErrDegradedTable
	}
	doomed := make(map[int]bool, len(rows))
	for _, idx := range rows {
		if idx < 0 || idx >= len(t.Rows) {
			return fmt.Errorf("%w: row %d of %d", ErrRowRange, idx, len(t.Rows))
		}
		doomed[idx] = true
	}
	if len(doomed) == 0 {
		return nil
	}
	kept := t.Rows[:0]
	for i := range t.Rows {
		if doomed[i] {
			if t.Rows[i].line > 0 {
				t.deletedLines = append(t.deletedLines, t.Rows[i].line)
			}
			continue
		}
		kept = append(kept, t.Rows[i])
	}
	t.Rows = kept
	return nil
}

func (t *Table) sortByYear() {
	sort.SliceStable(t.Rows, func(i, j int) bool {
		ni, iok := yearSortKey(t.Rows[i].Year)
		nj, jok := yearSortKey(t.Rows[j].Year)
		if iok != jok {
			return iok // numeric years come first
		}
		return iok && ni < nj
	})
}

// yearSortKey extracts the first run of digits from a year value. Years
// without digits report ok=false and sort after all numeric years in
// stable prior order.
func yearSortKey(year string) (n int64, ok bool) {
	start, end := -1, -1
	for i := 0; i < len(year); i++ {
		if year[i] >= '0' && year[i] <= '9' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			end = i
			break
		}
	}
	if start < 0 {
		return 0, false
	}
	if end < 0 {
		end = len(year)
	}
	v, err := strconv.ParseInt(year[start:end], 10, 64)
	if err != nil {
		// A digit run too long for int64 still counts as numeric.
		return math.MaxInt64, true
	}
	return v, true
}
