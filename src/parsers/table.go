package parsers

import (
	"fmt"
	"math"
	"strings"

	"github.com/username/nestegg/backend/src/institutions"
)

// headerScanLimit is how many leading records are searched for the header.
const headerScanLimit = 20

// buildTable locates the header among raw records and turns the records
// below it into rows. lines holds the source line of each record; when nil
// the record index is used.
func buildTable(records [][]string, lines []int, format string) (*Table, error) {
	headerIdx := locateHeader(records)
	if headerIdx < 0 {
		return nil, fmt.Errorf("%w: no header row found", ErrNoData)
	}

	table := &Table{Format: format}
	for _, rec := range records[:headerIdx] {
		if line := joinNonEmpty(rec); line != "" {
			table.Preamble = append(table.Preamble, line)
		}
	}
	table.Headers = cleanHeaders(records[headerIdx])

	headerCount := len(table.Headers)
	for i := headerIdx + 1; i < len(records); i++ {
		rec := records[i]
		line := i + 1
		if i < len(lines) {
			line = lines[i]
		}
		filled := countNonEmpty(rec)
		if filled == 0 {
			continue
		}
		if filled == 1 && headerCount > 1 {
			table.Warnings = append(table.Warnings, ParseWarning{
				Line:    line,
				Message: fmt.Sprintf("skipping single-value line %q", truncate(joinNonEmpty(rec), 60)),
			})
			continue
		}

		if len(rec) > headerCount && countNonEmpty(rec[headerCount:]) > 0 {
			table.Warnings = append(table.Warnings, ParseWarning{
				Line:    line,
				Message: fmt.Sprintf("row has %d columns, expected %d; truncating extra columns", len(rec), headerCount),
			})
		}

		row := make(institutions.Row, headerCount)
		for j, h := range table.Headers {
			if j < len(rec) {
				row[h] = strings.TrimSpace(rec[j])
			} else {
				row[h] = ""
			}
		}
		table.Rows = append(table.Rows, row)
		table.Lines = append(table.Lines, line)
	}

	if len(table.Rows) == 0 {
		return nil, fmt.Errorf("%w: no data rows below the header", ErrNoData)
	}
	return table, nil
}

// locateHeader returns the index of the first record wide enough to be the
// header, or -1.
func locateHeader(records [][]string) int {
	limit := len(records)
	if limit > headerScanLimit {
		limit = headerScanLimit
	}

	widest := 0
	for _, rec := range records[:limit] {
		if n := countNonEmpty(rec); n > widest {
			widest = n
		}
	}
	if widest == 0 {
		return -1
	}

	threshold := 1
	if widest >= 2 {
		threshold = int(math.Ceil(float64(widest) * 0.6))
		if threshold < 2 {
			threshold = 2
		}
	}
	for i, rec := range records[:limit] {
		if countNonEmpty(rec) >= threshold {
			return i
		}
	}
	return -1
}

// cleanHeaders trims header cells, names blank ones and disambiguates
// duplicates so that every header is a unique row key.
func cleanHeaders(raw []string) []string {
	// Drop trailing blank header cells, common with a trailing delimiter.
	end := len(raw)
	for end > 0 && cleanCell(raw[end-1]) == "" {
		end--
	}

	headers := make([]string, 0, end)
	seen := make(map[string]int, end)
	for i, h := range raw[:end] {
		h = cleanCell(h)
		if h == "" {
			h = fmt.Sprintf("Column %d", i+1)
		}
		seen[h]++
		if n := seen[h]; n > 1 {
			h = fmt.Sprintf("%s (%d)", h, n)
		}
		headers = append(headers, h)
	}
	return headers
}

func cleanCell(s string) string {
	return strings.TrimSpace(strings.TrimPrefix(s, "\ufeff"))
}

func countNonEmpty(cells []string) int {
	n := 0
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			n++
		}
	}
	return n
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
