package table

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ReadXLSX parses the first worksheet of an Office Open XML workbook. Raw
// cell values are used so number formats do not leak into the data. Blank
// rows before the header and after the last data row are dropped; blank rows
// between data rows are kept as all-empty rows. Short rows are padded with
// empty values.
func ReadXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrParse)
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	defer func() { _ = rows.Close() }()

	var t *Table
	line, pending := 0, 0
	for rows.Next() {
		line++
		cells, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %w", ErrParse, line, err)
		}
		if blank(cells) {
			if t != nil {
				pending++
			}
			continue
		}
		if t == nil {
			t = New(cells)
			continue
		}
		for ; pending > 0; pending-- {
			if err := t.Append(make(Row, t.Width())); err != nil {
				return nil, fmt.Errorf("%w: row %d: %w", ErrParse, line, err)
			}
		}
		if len(cells) > t.Width() {
			if !blank(cells[t.Width():]) {
				return nil, fmt.Errorf("%w: row %d: %d values for %d columns", ErrParse, line, len(cells), t.Width())
			}
			cells = cells[:t.Width()]
		}
		row := make(Row, t.Width())
		for i, cell := range cells {
			row[i] = ParseValue(cell)
		}
		if err := t.Append(row); err != nil {
			return nil, fmt.Errorf("%w: row %d: %w", ErrParse, line, err)
		}
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	if t == nil {
		return nil, fmt.Errorf("%w: no header row in sheet %q", ErrParse, sheets[0])
	}
	return t, nil
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
