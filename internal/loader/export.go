package loader

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/leapstack-labs/leapsort/internal/dataset"
)

// WriteTable writes t as a delimited file with a path,label header so it can be
// read back by Load.
func WriteTable(path string, t *dataset.Table, delimiter string) (err error) {
	comma := ','
	if delimiter != "" {
		r, size := utf8.DecodeRuneInString(delimiter)
		if size != len(delimiter) {
			return fmt.Errorf("%w: delimiter %q must be a single character", dataset.ErrConfig, delimiter)
		}
		comma = r
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("%w: failed to create directory for %s: %w", dataset.ErrIO, path, err)
	}

	f, err := os.Create(path) //nolint:gosec // path comes from the command line
	if err != nil {
		return fmt.Errorf("%w: failed to create %s: %w", dataset.ErrIO, path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: failed to close %s: %w", dataset.ErrIO, path, cerr)
		}
	}()

	w := csv.NewWriter(f)
	w.Comma = comma
	if err := w.Write([]string{PathColumn, LabelColumn}); err != nil {
		return fmt.Errorf("%w: failed to write %s: %w", dataset.ErrIO, path, err)
	}
	for _, r := range t.Rows {
		if err := w.Write([]string{r.Path, r.Label}); err != nil {
			return fmt.Errorf("%w: failed to write %s: %w", dataset.ErrIO, path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("%w: failed to write %s: %w", dataset.ErrIO, path, err)
	}
	return nil
}
