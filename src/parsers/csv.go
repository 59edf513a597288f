package parsers

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// candidateDelimiters are tried in order; ties go to the earlier one.
var candidateDelimiters = []rune{',', ';', '\t', '|'}

// CSVParser reads comma, semicolon, tab or pipe separated statements in any
// of the encodings brokers commonly export.
type CSVParser struct{}

func NewCSVParser() *CSVParser {
	return &CSVParser{}
}

func (p *CSVParser) Parse(file io.Reader) (*Table, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV data: %w", err)
	}

	decoded, encoding, err := decodeToUTF8(data)
	if err != nil {
		return nil, fmt.Errorf("encoding detection failed: %w", err)
	}
	if len(bytes.TrimSpace(decoded)) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrNoData)
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.Comma = sniffDelimiter(decoded)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var (
		records [][]string
		lines   []int
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		line, _ := reader.FieldPos(0)
		records = append(records, record)
		lines = append(lines, line)
	}

	table, err := buildTable(records, lines, FormatCSV)
	if err != nil {
		return nil, err
	}
	table.Encoding = encoding
	return table, nil
}

// decodeToUTF8 strips any BOM and transcodes the data to UTF-8. Data that is
// not valid UTF-8 and carries no BOM is read as Windows-1252, which covers
// the Latin-1 exports of most European brokers.
func decodeToUTF8(data []byte) ([]byte, string, error) {
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return data[len(bomUTF8):], "utf-8-bom", nil
	case bytes.HasPrefix(data, bomUTF16LE):
		out, _, err := transform.Bytes(unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder(), data)
		if err != nil {
			return nil, "", fmt.Errorf("UTF-16 LE decode failed: %w", err)
		}
		return out, "utf-16le", nil
	case bytes.HasPrefix(data, bomUTF16BE):
		out, _, err := transform.Bytes(unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder(), data)
		if err != nil {
			return nil, "", fmt.Errorf("UTF-16 BE decode failed: %w", err)
		}
		return out, "utf-16be", nil
	}

	if utf8.Valid(data) {
		return data, "utf-8", nil
	}

	out, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
	if err != nil {
		return nil, "", fmt.Errorf("windows-1252 decode failed: %w", err)
	}
	return out, "windows-1252", nil
}

// sniffDelimiter picks the candidate that appears most often outside quotes
// in the first lines of the file.
func sniffDelimiter(data []byte) rune {
	const sampleLines = 10

	counts := make(map[rune]int, len(candidateDelimiters))
	lines := 0
	inQuotes := false
	for _, r := range string(data) {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == '\n' && !inQuotes:
			lines++
		case !inQuotes:
			counts[r]++
		}
		if lines >= sampleLines {
			break
		}
	}

	best, bestCount := ',', 0
	for _, d := range candidateDelimiters {
		if counts[d] > bestCount {
			best, bestCount = d, counts[d]
		}
	}
	return best
}
