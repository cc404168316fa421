package table

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format is the declared encoding of an uploaded file.
type Format string

// Supported formats.
const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Extensions lists the accepted upload extensions, for file pickers.
var Extensions = []string{".csv", ".xlsx"}

// FormatFromName picks the format from the file name's extension only.
// Content is never sniffed.
func FormatFromName(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(strings.TrimSpace(name))) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q (accepted: %s)", ErrUnsupportedFormat, name, strings.Join(Extensions, ", "))
	}
}
