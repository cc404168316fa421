package batch

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/okian/deposit/internal/domain/table"
)

// outputFilePermission is used for predictions.csv.
const outputFilePermission = 0o644

// writeOutput stores data at path, or on stdout when path is "-". Files are
// written through a temp file and renamed so a failed run leaves no partial
// export behind.
func writeOutput(path string, stdout io.Writer, data []byte) error {
	if path == "-" {
		if _, err := stdout.Write(data); err != nil {
			return fmt.Errorf("%w: %w", ErrOutput, err)
		}
		return nil
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".predictions-*.csv")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOutput, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %w", ErrOutput, err)
	}
	if err := tmp.Chmod(outputFilePermission); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %w", ErrOutput, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrOutput, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: %w", ErrOutput, err)
	}
	return nil
}

// printTable renders t as aligned columns.
func printTable(w io.Writer, t *table.Table) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.Columns(), "\t"))
	for i := 0; i < t.Len(); i++ {
		row := t.Row(i)
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = v.String()
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	_ = tw.Flush()
}
