package utils

import (
	"fmt"
	"strings"
	"time"
)

const DefaultDateFormat = "2006-01-02"

// genericDateLayouts are tried after any institution-specific formats.
// US month-first layouts come before day-first ones.
var genericDateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
	"02-01-2006",
	"02.01.2006",
	"20060102",
	"Jan 2, 2006",
	"Jan 02 2006",
	"2 Jan 2006",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
}

var patternTokens = strings.NewReplacer(
	"YYYY", "2006",
	"YY", "06",
	"MMM", "Jan",
	"MM", "01",
	"DD", "02",
	"M", "1",
	"D", "2",
)

// LayoutFromPattern converts a pattern such as "MM/DD/YYYY" into a Go
// time layout.
func LayoutFromPattern(pattern string) string {
	return patternTokens.Replace(strings.ToUpper(strings.TrimSpace(pattern)))
}

// ParseDate parses a date string with the given patterns first and then the
// generic layouts. Patterns use the YYYY/MM/DD notation.
func ParseDate(dateStr string, patterns ...string) (time.Time, error) {
	dateStr = strings.TrimSpace(dateStr)
	if dateStr == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	layouts := make([]string, 0, len(patterns)+len(genericDateLayouts))
	for _, p := range patterns {
		layouts = append(layouts, LayoutFromPattern(p))
	}
	layouts = append(layouts, genericDateLayouts...)

	for _, layout := range layouts {
		if t, err := time.Parse(layout, dateStr); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", dateStr)
}
