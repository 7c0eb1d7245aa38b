package registry

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Parse splits decoded registry text into a Table. The first record is
// the header and is consumed as non-data; at least one data record must
// follow. Ragged rows are tolerated (the header decides the table width)
// and every cell is kept as the string the file shows, with absent cells
// normalized to "".
//
// Each row records the physical line its record started on. The mapping
// is marked invalid when any record spans multiple lines (a quoted field
// containing a line break): one row no longer equals one line, so saves
// must fall back to plain serialization.
func Parse(text string) (*Table, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, ErrEmptyInput
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedInput, err)
	}
	headerLine, _ := r.FieldPos(0)

	t := &Table{
		Header:       header,
		Degraded:     len(header) < 4,
		headerLine:   headerLine,
		mappingValid: !spansLines(header),
	}

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedInput, err)
		}
		line, _ := r.FieldPos(0)
		if spansLines(rec) {
			t.mappingValid = false
		}

		if t.Degraded {
			t.Grid = append(t.Grid, rec)
			continue
		}
		row := Row{
			Year:                cell(rec, 0),
			DistributedPid:      cell(rec, 1),
			DistributedID:       cell(rec, 2),
			MaintenanceResultID: cell(rec, 3),
			line:                line,
		}
		row.orig = [4]string{row.Year, row.DistributedPid, row.DistributedID, row.MaintenanceResultID}
		t.Rows = append(t.Rows, row)
	}

	if len(t.Rows) == 0 && len(t.Grid) == 0 {
		return nil, ErrEmptyInput
	}
	return t, nil
}

func cell(rec []string, i int) string {
	if i < len(rec) {
		return rec[i]
	}
	return ""
}

func spansLines(rec []string) bool {
	for _, c := range rec {
		if strings.ContainsAny(c, "\n\r") {
			return true
		}
	}
	return false
}
