package parsers

import (
	"bytes"
	"fmt"
	"io"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// XLSXParser reads the first worksheet of an Office Open XML workbook.
type XLSXParser struct{}

func NewXLSXParser() *XLSXParser {
	return &XLSXParser{}
}

func (p *XLSXParser) Parse(file io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("%w: no sheets found in Excel file", ErrNoData)
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read Excel rows: %w", err)
	}
	return buildTable(rows, nil, FormatXLSX)
}

// XLSParser reads the first sheet of a legacy BIFF workbook.
type XLSParser struct{}

func NewXLSParser() *XLSParser {
	return &XLSParser{}
}

func (p *XLSParser) Parse(file io.Reader) (table *Table, err error) {
	// The BIFF reader panics on some malformed workbooks.
	defer func() {
		if r := recover(); r != nil {
			table, err = nil, fmt.Errorf("error opening XLS file: %v", r)
		}
	}()

	rs, ok := file.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read XLS data: %w", err)
		}
		rs = bytes.NewReader(data)
	}

	wb, err := xls.OpenReader(rs, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("error opening XLS file: %w", err)
	}
	if wb.NumSheets() == 0 {
		return nil, fmt.Errorf("%w: no sheets found in XLS file", ErrNoData)
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, fmt.Errorf("%w: could not read first sheet", ErrNoData)
	}

	// MaxRow is the index of the last row, not a count.
	records := make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			records = append(records, nil)
			continue
		}
		record := make([]string, 0, row.LastCol())
		for j := 0; j < row.LastCol(); j++ {
			record = append(record, row.Col(j))
		}
		records = append(records, record)
	}
	return buildTable(records, nil, FormatXLS)
}
