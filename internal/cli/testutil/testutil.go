// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/leapsort/internal/cli/output"
)

// SetupTestProject creates a temporary project with a leapsort.yaml, one
// real-mode dataset named "photos" and the source files its table points at.
// The table lists four files across the labels cat and dog plus one row
// without a label.
func SetupTestProject(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()

	dirs := []string{
		filepath.Join(tmpDir, "data", "raw", "a"),
		filepath.Join(tmpDir, "data", "raw", "b"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			t.Fatalf("failed to create directory %s: %v", dir, err)
		}
	}

	sources := map[string]string{
		"raw/a/1.jpg": "one",
		"raw/a/2.jpg": "two",
		"raw/b/3.jpg": "three",
		"raw/b/4.jpg": "four",
		"raw/b/5.jpg": "five",
	}
	for rel, content := range sources {
		if err := os.WriteFile(filepath.Join(tmpDir, "data", filepath.FromSlash(rel)), []byte(content), 0o600); err != nil {
			t.Fatalf("failed to create %s: %v", rel, err)
		}
	}

	table := `file;class
raw/a/1.jpg;cat
raw/a/2.jpg;dog
raw/b/3.jpg;cat
raw/b/4.jpg;dog
raw/b/5.jpg;
`
	if err := os.WriteFile(filepath.Join(tmpDir, "data", "photos.csv"), []byte(table), 0o600); err != nil {
		t.Fatalf("failed to create photos.csv: %v", err)
	}

	cfg := `mode: real
dummy:
  folders: 2
  files_per_folder: 5
  file_size: 16
  seed: 7
datasets:
  - name: photos
    table: photos.csv
    delimiter: ";"
    columns:
      file: path
      class: label
`
	if err := os.WriteFile(filepath.Join(tmpDir, "leapsort.yaml"), []byte(cfg), 0o600); err != nil {
		t.Fatalf("failed to create leapsort.yaml: %v", err)
	}

	return tmpDir
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
// Output is captured in buffers for inspection.
func NewTestRenderer(mode output.Mode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// NewTestRendererMarkdown creates a new test renderer in markdown mode.
func NewTestRendererMarkdown() *TestRenderer {
	return NewTestRenderer(output.ModeMarkdown, false)
}

// NewTestRendererJSON creates a new test renderer in JSON mode.
func NewTestRendererJSON() *TestRenderer {
	return NewTestRenderer(output.ModeJSON, false)
}

// Output returns the combined stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdown performs basic markdown validation.
// It checks for unclosed code fences and basic structure.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	// Check for balanced code fences
	fenceCount := strings.Count(md, "```")
	if fenceCount%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", fenceCount)
	}

	// Check that headers have content
	lines := strings.Split(md, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}
