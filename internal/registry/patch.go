package registry

import (
	"encoding/csv"
	"strings"
)

// ApplyEdits merges the table's current values back into the original
// text and never fails. The rules, in order:
//
//   - A table with no effective edits returns the original text verbatim.
//   - Without original text, or when the row-to-line mapping is invalid,
//     the table is serialized as plain CSV of the four canonical columns.
//   - Otherwise the original is rebuilt line by line: lines of deleted
//     rows are dropped, lines of surviving rows have only their changed
//     managed comma positions rewritten, every other line (header, blank
//     lines, trailing content) passes through byte for byte. Rows added
//     after parse are appended at the end, padded to the header width.
//
// The year token of an existing line is never rewritten; years change
// only through AddYear, which creates a new appended line.
func ApplyEdits(originalText string, t *Table) string {
	if originalText != "" && t.unchanged() {
		return originalText
	}
	if originalText == "" || !t.mappingValid {
		return serializePlain(t, originalText)
	}

	lines := splitLines(originalText)
	term := dominantTerm(lines)

	patched := make(map[int]*Row, len(t.Rows))
	var added []*Row
	for i := range t.Rows {
		if t.Rows[i].line > 0 {
			patched[t.Rows[i].line] = &t.Rows[i]
		} else {
			added = append(added, &t.Rows[i])
		}
	}
	dropped := make(map[int]bool, len(t.deletedLines))
	for _, n := range t.deletedLines {
		dropped[n] = true
	}

	var b strings.Builder
	b.Grow(len(originalText))
	unterminated := false
	for i := range lines {
		n := i + 1
		if dropped[n] {
			continue
		}
		if row, ok := patched[n]; ok {
			b.WriteString(patchLine(lines[i].text, row))
		} else {
			b.WriteString(lines[i].text)
		}
		b.WriteString(lines[i].term)
		unterminated = lines[i].term == ""
	}

	if len(added) > 0 {
		if unterminated {
			b.WriteString(term)
		}
		width := len(t.Header)
		if width < 4 {
			width = 4
		}
		for _, row := range added {
			b.WriteString(appendedLine(row, width))
			b.WriteString(term)
		}
	}
	return b.String()
}

// patchLine rewrites the managed comma positions of one original line.
// Tokens are the naive comma split, exactly the text the file shows; a
// token is overwritten only when the row's value differs from its parse
// snapshot, so untouched cells keep their original bytes even when
// quoting makes the naive split disagree with the parsed cells.
func patchLine(text string, row *Row) string {
	tokens := strings.Split(text, ",")
	tokens = setToken(tokens, 1, row.orig[1], row.DistributedPid)
	tokens = setToken(tokens, 2, row.orig[2], row.DistributedID)
	tokens = setToken(tokens, 3, row.orig[3], row.MaintenanceResultID)
	return strings.Join(tokens, ",")
}

// setToken pads the token list when an edit targets a position beyond the
// line's width. Unchanged values never touch the line at all.
func setToken(tokens []string, pos int, orig, cur string) []string {
	if cur == orig {
		return tokens
	}
	for len(tokens) <= pos {
		tokens = append(tokens, "")
	}
	tokens[pos] = cur
	return tokens
}

func appendedLine(row *Row, width int) string {
	tokens := make([]string, width)
	tokens[0] = row.Year
	tokens[1] = row.DistributedPid
	tokens[2] = row.DistributedID
	tokens[3] = row.MaintenanceResultID
	return strings.Join(tokens, ",")
}

// serializePlain is the fallback when the original text cannot be
// patched: the four canonical columns with proper CSV quoting, headed by
// the original header's first four names when it had them. CRLF is kept
// when the original used it.
func serializePlain(t *Table, originalText string) string {
	header := canonicalColumns
	if len(t.Header) >= 4 {
		header = t.Header[:4]
	}

	var sb strings.Builder
	w := csv.NewWriter(&sb)
	w.UseCRLF = strings.Contains(originalText, "\r\n")
	_ = w.Write(header)
	for i := range t.Rows {
		r := &t.Rows[i]
		_ = w.Write([]string{r.Year, r.DistributedPid, r.DistributedID, r.MaintenanceResultID})
	}
	w.Flush()
	return sb.String()
}

// line is one physical line of the original text: content without the
// terminator plus the terminator itself, "" on a final unterminated line.
// Rejoining text+term over all lines reproduces the input exactly.
type line struct {
	text string
	term string
}

func splitLines(text string) []line {
	var out []line
	for start := 0; start < len(text); {
		i := strings.IndexByte(text[start:], '\n')
		if i < 0 {
			out = append(out, line{text: text[start:]})
			break
		}
		content, term := text[start:start+i], "\n"
		if strings.HasSuffix(content, "\r") {
			content, term = content[:len(content)-1], "\r\n"
		}
		out = append(out, line{text: content, term: term})
		start += i + 1
	}
	return out
}

// dominantTerm is the file's line terminator convention, taken from the
// first terminated line. Appended rows use it.
func dominantTerm(lines []line) string {
	for _, l := range lines {
		if l.term != "" {
			return l.term
		}
	}
	return "\n"
}
