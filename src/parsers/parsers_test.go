package parsers

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/username/nestegg/backend/src/institutions"
)

const schwabCSV = `"Positions for account Individual ...123 as of 03:15 PM ET, 2024/05/01"

"Symbol","Description","Quantity","Price","Market Value","Cost Basis",
"AAPL","APPLE INC","10","$170.00","$1,700.00","$1,500.00",
"VTI","VANGUARD TOTAL STOCK MARKET ETF","5","$250.00","$1,250.00","$1,000.00",
"Account Total","","","","$2,950.00","",
`

func TestCSVParser_PreambleAndHeader(t *testing.T) {
	table, err := NewCSVParser().Parse(bytes.NewReader([]byte(schwabCSV)))
	require.NoError(t, err)

	assert.Equal(t, FormatCSV, table.Format)
	assert.Equal(t, "utf-8", table.Encoding)
	require.Len(t, table.Preamble, 1)
	assert.Contains(t, table.Preamble[0], "Positions for account")
	assert.Equal(t, []string{"Symbol", "Description", "Quantity", "Price", "Market Value", "Cost Basis"}, table.Headers)

	require.Len(t, table.Rows, 3)
	assert.Equal(t, "AAPL", table.Rows[0]["Symbol"])
	assert.Equal(t, "$1,700.00", table.Rows[0]["Market Value"])
	assert.Equal(t, []int{4, 5, 6}, table.Lines)
	assert.Empty(t, table.Warnings)
}

func TestCSVParser_DetectionRowsFindInstitution(t *testing.T) {
	table, err := NewCSVParser().Parse(bytes.NewReader([]byte(
		"Charles Schwab brokerage positions\nSymbol,Quantity\nAAPL,10\n")))
	require.NoError(t, err)

	rows := table.DetectionRows()
	require.Len(t, rows, 3)
	assert.Equal(t, institutions.Row{"line": "Charles Schwab brokerage positions"}, rows[0])
	assert.Equal(t, institutions.Row{"Symbol": "Symbol", "Quantity": "Quantity"}, rows[1])

	key, ok := institutions.DetectInstitution(rows, "export.csv")
	require.True(t, ok)
	assert.Equal(t, "schwab", key)
}

func TestCSVParser_Semicolon(t *testing.T) {
	data := "Symbol;Quantity;Price\n\"ASML, NV\";3;650,10\nSAP;7;180,00\n"
	table, err := NewCSVParser().Parse(bytes.NewReader([]byte(data)))
	require.NoError(t, err)
	assert.Equal(t, []string{"Symbol", "Quantity", "Price"}, table.Headers)
	assert.Equal(t, "ASML, NV", table.Rows[0]["Symbol"])
	assert.Equal(t, "650,10", table.Rows[0]["Price"])
}

func TestCSVParser_Tab(t *testing.T) {
	data := "Symbol\tShares\nMSFT\t4\n"
	table, err := NewCSVParser().Parse(bytes.NewReader([]byte(data)))
	require.NoError(t, err)
	assert.Equal(t, "4", table.Rows[0]["Shares"])
}

func TestCSVParser_Encodings(t *testing.T) {
	plain := "Symbol,Description,Quantity\nNESN,Nestlé SA,2\n"

	utf16, _, err := transform.Bytes(unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder(), []byte(plain))
	require.NoError(t, err)
	latin1, _, err := transform.Bytes(charmap.Windows1252.NewEncoder(), []byte(plain))
	require.NoError(t, err)

	tests := []struct {
		name     string
		data     []byte
		encoding string
	}{
		{"utf-8", []byte(plain), "utf-8"},
		{"utf-8 bom", append([]byte{0xEF, 0xBB, 0xBF}, plain...), "utf-8-bom"},
		{"utf-16le", utf16, "utf-16le"},
		{"windows-1252", latin1, "windows-1252"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := NewCSVParser().Parse(bytes.NewReader(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.encoding, table.Encoding)
			assert.Equal(t, "Symbol", table.Headers[0])
			assert.Equal(t, "Nestlé SA", table.Rows[0]["Description"])
		})
	}
}

func TestCSVParser_RaggedRows(t *testing.T) {
	data := "Symbol,Quantity,Price\nAAPL,10\nMSFT,5,300,extra\nGOOG,1,140,\n"
	table, err := NewCSVParser().Parse(bytes.NewReader([]byte(data)))
	require.NoError(t, err)

	require.Len(t, table.Rows, 3)
	assert.Equal(t, "", table.Rows[0]["Price"], "short rows are padded")
	assert.Equal(t, "300", table.Rows[1]["Price"])
	require.Len(t, table.Warnings, 1, "an empty trailing cell is not worth a warning")
	assert.Equal(t, 3, table.Warnings[0].Line)
}

func TestCSVParser_SkipsSingleValueLines(t *testing.T) {
	data := "Symbol,Quantity\nAAPL,10\n\nTotal\nMSFT,5\n"
	table, err := NewCSVParser().Parse(bytes.NewReader([]byte(data)))
	require.NoError(t, err)

	require.Len(t, table.Rows, 2)
	assert.Equal(t, []int{2, 5}, table.Lines)
	require.Len(t, table.Warnings, 1)
	assert.Equal(t, 4, table.Warnings[0].Line)
}

func TestCSVParser_HeaderCleanup(t *testing.T) {
	data := "\ufeffSymbol,,Value,Value,\nAAPL,x,1,2,\n"
	table, err := NewCSVParser().Parse(bytes.NewReader([]byte(data)))
	require.NoError(t, err)
	assert.Equal(t, []string{"Symbol", "Column 2", "Value", "Value (2)"}, table.Headers)
	assert.Equal(t, "2", table.Rows[0]["Value (2)"])
}

func TestCSVParser_NoData(t *testing.T) {
	for name, data := range map[string]string{
		"empty":       "",
		"whitespace":  " \n\n ",
		"header only": "Symbol,Quantity\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewCSVParser().Parse(bytes.NewReader([]byte(data)))
			assert.ErrorIs(t, err, ErrNoData)
		})
	}
}

func TestXLSXParser(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"Fidelity Investments"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"Symbol", "Quantity", "Current Value"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{"FXAIX", 12.5, "$2,400.10"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	table, err := ParseFile("positions.xlsx", buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, table.Format)
	assert.Equal(t, "positions.xlsx", table.FileName)
	assert.Equal(t, []string{"Fidelity Investments"}, table.Preamble)
	assert.Equal(t, []string{"Symbol", "Quantity", "Current Value"}, table.Headers)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "12.5", table.Rows[0]["Quantity"])
	assert.Equal(t, 3, table.Line(0))
}

func TestXLSParser_RejectsGarbage(t *testing.T) {
	_, err := NewXLSParser().Parse(bytes.NewReader(append([]byte{0xD0, 0xCF, 0x11, 0xE0}, make([]byte, 64)...)))
	assert.Error(t, err)
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatXLSX, DetectFormat("export.csv", []byte("PK\x03\x04rest")))
	assert.Equal(t, FormatXLS, DetectFormat("export", []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1}))
	assert.Equal(t, FormatXLSX, DetectFormat("Positions.XLSX", nil))
	assert.Equal(t, FormatXLS, DetectFormat("positions.xls", nil))
	assert.Equal(t, FormatCSV, DetectFormat("positions.txt", []byte("Symbol,Qty")))
}

func TestGetParser(t *testing.T) {
	for _, format := range SupportedFormats {
		p, err := GetParser(format)
		require.NoError(t, err)
		assert.NotNil(t, p)
	}
	_, err := GetParser("pdf")
	assert.Error(t, err)
}

func TestTable_Sample(t *testing.T) {
	table := &Table{Rows: []institutions.Row{{"a": "1"}, {"a": "2"}, {"a": "3"}}}
	assert.Len(t, table.Sample(2), 2)
	assert.Len(t, table.Sample(0), 3)
	assert.Len(t, table.Sample(10), 3)
	assert.Equal(t, 1, (&Table{}).Line(0))
}
