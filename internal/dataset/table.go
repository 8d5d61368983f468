// Package dataset builds label-partitioned dataset trees from a metadata table.
//
// A dataset root holds exactly one directory per label, each populated with
// copies of the source files mapped to that label:
//
//	<root>/<label>/<basename of path>
//
// The package is split along the pipeline: Table and Row describe the input,
// Materialize creates the directory skeleton, Copier fills it and Driver runs
// the whole sequence against a freshly wiped root.
package dataset

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Row is one entry of a metadata table.
type Row struct {
	Path  string `json:"path"`
	Label string `json:"label"`
}

// Filename returns the base name of the source path.
func (r Row) Filename() string {
	return filepath.Base(r.Path)
}

// OutputPath returns where the row lands under root.
func (r Row) OutputPath(root string) string {
	return filepath.Join(root, r.Label, r.Filename())
}

// Table is an ordered collection of rows.
type Table struct {
	Rows []Row
}

// NewTable returns a table holding rows.
func NewTable(rows ...Row) *Table {
	return &Table{Rows: rows}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Labels returns the distinct labels of the table, sorted.
func (t *Table) Labels() []string {
	if t == nil {
		return nil
	}
	seen := make(map[string]struct{}, 8)
	var labels []string
	for _, r := range t.Rows {
		if _, ok := seen[r.Label]; ok {
			continue
		}
		seen[r.Label] = struct{}{}
		labels = append(labels, r.Label)
	}
	sort.Strings(labels)
	return labels
}

// Counts returns the number of rows per label.
func (t *Table) Counts() map[string]int {
	counts := make(map[string]int)
	if t == nil {
		return counts
	}
	for _, r := range t.Rows {
		counts[r.Label]++
	}
	return counts
}

// DropUnlabeled removes rows whose label is empty or whitespace and returns
// how many were removed.
func (t *Table) DropUnlabeled() int {
	if t == nil {
		return 0
	}
	kept := t.Rows[:0]
	for _, r := range t.Rows {
		r.Label = strings.TrimSpace(r.Label)
		if r.Label == "" {
			continue
		}
		kept = append(kept, r)
	}
	dropped := len(t.Rows) - len(kept)
	t.Rows = kept
	return dropped
}

// Validate checks every row is ready for copying: a non-empty source path and
// a label usable as a single directory name.
func (t *Table) Validate() error {
	if t == nil {
		return nil
	}
	for i, r := range t.Rows {
		if r.Path == "" {
			return fmt.Errorf("%w: row %d has an empty path", ErrConfig, i)
		}
		if err := ValidateLabel(r.Label); err != nil {
			return fmt.Errorf("row %d (%s): %w", i, r.Path, err)
		}
	}
	return nil
}

// ValidateLabel rejects labels that cannot be used as a directory name
// directly below the dataset root.
func ValidateLabel(label string) error {
	switch {
	case strings.TrimSpace(label) == "":
		return fmt.Errorf("%w: empty label", ErrLabelMissing)
	case label == "." || label == "..":
		return fmt.Errorf("%w: label %q is not a directory name", ErrConfig, label)
	case strings.ContainsAny(label, `/\`):
		return fmt.Errorf("%w: label %q contains a path separator", ErrConfig, label)
	}
	return nil
}
