package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Parse reads a table in the given format. The first row is the header.
func Parse(r io.Reader, f Format) (*Table, error) {
	switch f {
	case FormatCSV:
		return ReadCSV(r)
	case FormatXLSX:
		return ReadXLSX(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
	}
}

// ReadCSV parses comma-separated text. A UTF-8 or UTF-16 byte order mark is
// honoured and stripped; without one the input is taken as UTF-8.
func ReadCSV(r io.Reader) (*Table, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	cr := csv.NewReader(decoded)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: no header row", ErrParse)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	t := New(header)

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrParse, err)
		}
		row := make(Row, len(rec))
		for i, cell := range rec {
			row[i] = ParseValue(cell)
		}
		if err := t.Append(row); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrParse, err)
		}
	}
	return t, nil
}

// WriteCSV writes the header and every row as UTF-8 comma-separated text.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.columns); err != nil {
		return err
	}
	rec := make([]string, len(t.columns))
	for _, row := range t.rows {
		for i, v := range row {
			rec[i] = v.String()
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// EncodeCSV renders the table into memory. Writing to a bytes.Buffer cannot fail.
func EncodeCSV(t *Table) []byte {
	var buf bytes.Buffer
	_ = WriteCSV(&buf, t)
	return buf.Bytes()
}
