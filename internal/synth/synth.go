// Package synth fabricates an input tree and a labelled metadata table so the
// dataset pipeline can run without real data.
//
// Files are spread over a few randomly named folders, enumerated in walk order
// and labelled by position: each label owns a contiguous index range sized by
// its weight.
package synth

import (
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/leapstack-labs/leapsort/internal/dataset"
)

// Default generator settings.
const (
	DefaultInputDir       = "data/reorder_dummy_dataset_in"
	DefaultFolders        = 5
	DefaultFilesPerFolder = 500
	DefaultFileSize       = 5000
)

// weightTolerance is how far the weights may sum away from 1.
const weightTolerance = 0.01

// LabelWeight is the share of files assigned to one label.
type LabelWeight struct {
	Label  string  `koanf:"label" yaml:"label"`
	Weight float64 `koanf:"weight" yaml:"weight"`
}

// DefaultWeights returns the label mapping used when none is configured.
func DefaultWeights() []LabelWeight {
	return []LabelWeight{
		{Label: "labelA", Weight: 0.3},
		{Label: "labelB", Weight: 0.2},
		{Label: "labelC", Weight: 0.1},
		{Label: "labelD", Weight: 0.4},
	}
}

// Config holds generator settings. Zero values select the defaults.
type Config struct {
	InputDir       string
	Folders        int
	FilesPerFolder int
	FileSize       int
	Weights        []LabelWeight
	// Seed makes content and names reproducible. Zero seeds from the clock.
	Seed   uint64
	Logger *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.InputDir == "" {
		c.InputDir = DefaultInputDir
	}
	if c.Folders == 0 {
		c.Folders = DefaultFolders
	}
	if c.FilesPerFolder == 0 {
		c.FilesPerFolder = DefaultFilesPerFolder
	}
	if c.FileSize == 0 {
		c.FileSize = DefaultFileSize
	}
	if len(c.Weights) == 0 {
		c.Weights = DefaultWeights()
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
}

// Validate checks the generator settings.
func (c Config) Validate() error {
	if c.Folders < 0 || c.FilesPerFolder < 0 || c.FileSize < 0 {
		return fmt.Errorf("%w: folders, files_per_folder and file_size must not be negative", dataset.ErrConfig)
	}
	return ValidateWeights(c.Weights)
}

// ValidateWeights checks labels are usable and weights are positive and sum to 1.
func ValidateWeights(weights []LabelWeight) error {
	if len(weights) == 0 {
		return fmt.Errorf("%w: at least one label weight is required", dataset.ErrConfig)
	}
	seen := make(map[string]bool, len(weights))
	var sum float64
	for _, w := range weights {
		if err := dataset.ValidateLabel(w.Label); err != nil {
			return fmt.Errorf("%w: invalid label %q", dataset.ErrConfig, w.Label)
		}
		if seen[w.Label] {
			return fmt.Errorf("%w: label %q listed twice", dataset.ErrConfig, w.Label)
		}
		seen[w.Label] = true
		if w.Weight <= 0 || math.IsNaN(w.Weight) || math.IsInf(w.Weight, 0) {
			return fmt.Errorf("%w: label %q has non-positive weight %v", dataset.ErrConfig, w.Label, w.Weight)
		}
		sum += w.Weight
	}
	if math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("%w: label weights sum to %.3f, expected 1", dataset.ErrConfig, sum)
	}
	return nil
}

// Result is the outcome of Generate.
type Result struct {
	Table   *dataset.Table
	Folders []string
	Files   int
}

// Generate wipes cfg.InputDir, writes the random files and returns the
// labelled table covering every generated file.
func Generate(cfg Config) (*Result, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	log := cfg.Logger.With("input_dir", cfg.InputDir)
	log.Info("generating synthetic input", "folders", cfg.Folders, "files_per_folder", cfg.FilesPerFolder)

	if err := dataset.Wipe(cfg.InputDir); err != nil {
		return nil, err
	}

	folders := make([]string, 0, cfg.Folders)
	for i := 0; i < cfg.Folders; i++ {
		dir := filepath.Join(cfg.InputDir, newName(rng))
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("%w: failed to create %s folder: %w", dataset.ErrIO, dir, err)
		}
		folders = append(folders, dir)

		for j := 0; j < cfg.FilesPerFolder; j++ {
			path := filepath.Join(dir, newName(rng)+".txt")
			if err := os.WriteFile(path, randomLetters(rng, cfg.FileSize), 0o600); err != nil {
				return nil, fmt.Errorf("%w: failed to write %s: %w", dataset.ErrIO, path, err)
			}
		}
	}

	paths, err := ListFiles(cfg.InputDir)
	if err != nil {
		return nil, err
	}

	table, err := Assign(paths, cfg.Weights)
	if err != nil {
		return nil, err
	}

	log.Info("synthetic input ready", "files", len(paths), "labels", len(cfg.Weights))
	return &Result{Table: table, Folders: folders, Files: len(paths)}, nil
}

// ListFiles returns every regular file below root in lexical walk order.
func ListFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to walk %s: %w", dataset.ErrIO, root, err)
	}
	return paths, nil
}

// Range is the half-open index interval [Start, End) owned by a label.
type Range struct {
	Label string
	Start int
	End   int
}

// Boundaries computes the index range of each label for n files. Label i owns
// round(weight*n) indices starting where label i-1 ended. Rounding drift is
// absorbed at the edges: ends are clamped to n and the last range always ends
// at n, so the ranges partition [0, n).
func Boundaries(weights []LabelWeight, n int) []Range {
	ranges := make([]Range, len(weights))
	running := 0
	for i, w := range weights {
		start := running
		end := start + int(math.Round(w.Weight*float64(n)))
		end = min(end, n)
		ranges[i] = Range{Label: w.Label, Start: start, End: end}
		running = end
	}
	if len(ranges) > 0 {
		ranges[len(ranges)-1].End = n
	}
	return ranges
}

// Plan returns the label ranges Generate would assign for cfg without
// touching the filesystem.
func Plan(cfg Config) []Range {
	cfg.applyDefaults()
	return Boundaries(cfg.Weights, cfg.Folders*cfg.FilesPerFolder)
}

// LabelFor returns the label whose range contains idx. The first matching range
// wins.
func LabelFor(ranges []Range, idx int) (string, error) {
	for _, r := range ranges {
		if idx >= r.Start && idx < r.End {
			return r.Label, nil
		}
	}
	return "", fmt.Errorf("%w: index %d falls outside every label range", dataset.ErrLabelMissing, idx)
}

// Assign labels paths by position.
func Assign(paths []string, weights []LabelWeight) (*dataset.Table, error) {
	if err := ValidateWeights(weights); err != nil {
		return nil, err
	}
	ranges := Boundaries(weights, len(paths))
	rows := make([]dataset.Row, len(paths))
	for i, p := range paths {
		label, err := LabelFor(ranges, i)
		if err != nil {
			return nil, err
		}
		rows[i] = dataset.Row{Path: p, Label: label}
	}
	return dataset.NewTable(rows...), nil
}

// newName returns a random UUID drawn from rng so seeded runs are reproducible.
func newName(rng *rand.Rand) string {
	var b [16]byte
	for i := 0; i < len(b); i += 8 {
		v := rng.Uint64()
		for j := 0; j < 8; j++ {
			b[i+j] = byte(v >> (8 * j))
		}
	}
	id, err := uuid.NewRandomFromReader(strings.NewReader(string(b[:])))
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

const letters = "abcdefghijklmnopqrstuvwxyz"

func randomLetters(rng *rand.Rand, n int) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = letters[rng.IntN(len(letters))]
	}
	return buf
}
