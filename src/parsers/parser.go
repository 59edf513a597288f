// backend/src/parsers/parser.go
package parsers

import (
	"errors"
	"io"
	"strings"

	"github.com/username/nestegg/backend/src/institutions"
)

// ErrNoData is returned when a file has no header row or no data rows.
var ErrNoData = errors.New("file contains no tabular data")

// Parser turns an uploaded statement into a Table.
type Parser interface {
	Parse(file io.Reader) (*Table, error)
}

// ParseWarning is a non-fatal problem found while reading a file.
type ParseWarning struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// Table is the parsed content of a statement file.
type Table struct {
	FileName string             `json:"fileName"`
	Format   string             `json:"format"`
	Encoding string             `json:"encoding,omitempty"`
	Preamble []string           `json:"preamble,omitempty"` // title lines above the header
	Headers  []string           `json:"headers"`
	Rows     []institutions.Row `json:"rows"`
	// Lines holds the 1-based line of each row in the source file.
	Lines    []int          `json:"lines"`
	Warnings []ParseWarning `json:"warnings,omitempty"`
}

// DetectionRows returns the rows handed to institution detection: preamble
// lines first, then the header row, then data rows.
func (t *Table) DetectionRows() []institutions.Row {
	rows := make([]institutions.Row, 0, len(t.Preamble)+1+len(t.Rows))
	for _, line := range t.Preamble {
		rows = append(rows, institutions.Row{"line": line})
	}
	header := make(institutions.Row, len(t.Headers))
	for _, h := range t.Headers {
		header[h] = h
	}
	rows = append(rows, header)
	return append(rows, t.Rows...)
}

// Sample returns at most n data rows.
func (t *Table) Sample(n int) []institutions.Row {
	if n <= 0 || n >= len(t.Rows) {
		return t.Rows
	}
	return t.Rows[:n]
}

// Line returns the source line of the i-th data row.
func (t *Table) Line(i int) int {
	if i >= 0 && i < len(t.Lines) {
		return t.Lines[i]
	}
	return i + 1
}

func joinNonEmpty(cells []string) string {
	parts := make([]string, 0, len(cells))
	for _, c := range cells {
		if c = strings.TrimSpace(c); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, " ")
}
