package registry

import "errors"

// Sentinel errors for parse and mutation failures. Callers match with
// errors.Is; messages wrapped around them keep the underlying diagnostic.
var (
	// ErrEmptyInput means the file had no data rows after the header.
	ErrEmptyInput = errors.New("no data rows after the header")

	// ErrMalformedInput means row tokenization itself failed. The wrapped
	// message carries the csv parser diagnostic (line and column).
	ErrMalformedInput = errors.New("malformed registry data")

	// ErrDuplicateYear rejects an add for a year already in the table.
	ErrDuplicateYear = errors.New("year already exists")

	// ErrEmptyYear rejects an add with a blank year value.
	ErrEmptyYear = errors.New("year must not be empty")

	// ErrDegradedTable rejects mutations on a table whose header has
	// fewer than four columns. Such tables are viewable and exportable
	// but have no managed columns to edit.
	ErrDegradedTable = errors.New("table has fewer than four columns")

	// ErrYearImmutable rejects cell edits to the year column; years
	// change only through AddYear.
	ErrYearImmutable = errors.New("the year column is read-only")

	// ErrUnknownColumn rejects cell edits addressing no managed column.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrRowRange rejects operations addressing a row index outside the
	// table.
	ErrRowRange = errors.New("row index out of range")
)
