// backend/src/parsers/factory.go
package parsers

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
)

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatXLS  = "xls"
)

var (
	magicZIP  = []byte{0x50, 0x4B, 0x03, 0x04}
	magicOLE2 = []byte{0xD0, 0xCF, 0x11, 0xE0}
)

// SupportedFormats lists the formats GetParser accepts.
var SupportedFormats = []string{FormatCSV, FormatXLSX, FormatXLS}

func GetParser(format string) (Parser, error) {
	switch strings.ToLower(format) {
	case FormatCSV:
		return NewCSVParser(), nil
	case FormatXLSX:
		return NewXLSXParser(), nil
	case FormatXLS:
		return NewXLSParser(), nil
	default:
		return nil, fmt.Errorf("no parser available for format: %s", format)
	}
}

// DetectFormat decides the file format from the leading bytes of the file,
// falling back to the file extension. Anything else is treated as CSV.
func DetectFormat(fileName string, head []byte) string {
	switch {
	case bytes.HasPrefix(head, magicZIP):
		return FormatXLSX
	case bytes.HasPrefix(head, magicOLE2):
		return FormatXLS
	}

	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX
	case ".xls":
		return FormatXLS
	}
	return FormatCSV
}

// ParseFile detects the format of data and parses it into a Table.
func ParseFile(fileName string, data []byte) (*Table, error) {
	format := DetectFormat(fileName, data)
	parser, err := GetParser(format)
	if err != nil {
		return nil, err
	}
	table, err := parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s file: %w", format, err)
	}
	table.FileName = fileName
	return table, nil
}
