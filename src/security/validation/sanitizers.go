package validation

import (
	"path/filepath"
	"strings"
	"unicode"
)

// SanitizeForFormulaInjection prepends a single quote if the string starts with a formula character.
// This makes most spreadsheet software treat it as text.
func SanitizeForFormulaInjection(s string) string {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) > 0 {
		switch trimmed[0] {
		case '=', '+', '-', '@', '\t', '\r':
			return "'" + s
		}
	}
	return s
}

// StripUnprintable removes non-printable characters, allowing common whitespace
// like space, tab, newline, and carriage return.
func StripUnprintable(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		return -1
	}, s)
}

// SanitizeFileName keeps only the base name of an uploaded file and drops
// control characters.
func SanitizeFileName(name string) string {
	name = StripUnprintable(strings.ReplaceAll(name, "\\", "/"))
	name = strings.TrimSpace(filepath.Base(name))
	if name == "." || name == "/" || name == "" {
		return "upload"
	}
	return name
}
