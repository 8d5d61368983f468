package dataset

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// dirPerm is the permission used for every directory leapsort creates.
const dirPerm = 0o750

// Materialize creates root and one subdirectory per distinct label of t.
// Existing directories are left alone. An empty table creates nothing.
// It returns the labels whose directory was created by this call.
func Materialize(t *Table, root string) ([]string, error) {
	if t.Len() == 0 {
		return nil, nil
	}

	labels := t.Labels()
	for _, label := range labels {
		if err := ValidateLabel(label); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(root, dirPerm); err != nil {
		return nil, fmt.Errorf("%w: failed to create dataset root %s: %w", ErrIO, root, err)
	}

	var created []string
	for _, label := range labels {
		dir := filepath.Join(root, label)
		info, err := os.Stat(dir)
		if err == nil {
			if !info.IsDir() {
				return created, fmt.Errorf("%w: %s exists and is not a directory", ErrIO, dir)
			}
			continue
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return created, fmt.Errorf("%w: failed to stat %s: %w", ErrIO, dir, err)
		}
		if err := os.Mkdir(dir, dirPerm); err != nil {
			return created, fmt.Errorf("%w: failed to create %s folder: %w", ErrIO, dir, err)
		}
		created = append(created, label)
	}
	return created, nil
}
