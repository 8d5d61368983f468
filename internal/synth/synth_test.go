package synth

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapsort/internal/dataset"
	"github.com/leapstack-labs/leapsort/internal/testutil"
)

func TestValidateWeights(t *testing.T) {
	tests := []struct {
		name    string
		weights []LabelWeight
		wantErr bool
	}{
		{name: "defaults", weights: DefaultWeights()},
		{name: "within tolerance", weights: []LabelWeight{{"a", 0.333}, {"b", 0.333}, {"c", 0.333}}},
		{name: "empty", weights: nil, wantErr: true},
		{name: "sum too low", weights: []LabelWeight{{"a", 0.5}, {"b", 0.2}}, wantErr: true},
		{name: "zero weight", weights: []LabelWeight{{"a", 1}, {"b", 0}}, wantErr: true},
		{name: "negative weight", weights: []LabelWeight{{"a", 1.2}, {"b", -0.2}}, wantErr: true},
		{name: "duplicate label", weights: []LabelWeight{{"a", 0.5}, {"a", 0.5}}, wantErr: true},
		{name: "unsafe label", weights: []LabelWeight{{"../a", 1}}, wantErr: true},
		{name: "nan", weights: []LabelWeight{{"a", math.NaN()}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWeights(tt.weights)
			if tt.wantErr {
				assert.ErrorIs(t, err, dataset.ErrConfig)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestBoundaries_DefaultWeights(t *testing.T) {
	ranges := Boundaries(DefaultWeights(), 2500)

	assert.Equal(t, []Range{
		{Label: "labelA", Start: 0, End: 750},
		{Label: "labelB", Start: 750, End: 1250},
		{Label: "labelC", Start: 1250, End: 1500},
		{Label: "labelD", Start: 1500, End: 2500},
	}, ranges)
}

func TestBoundaries_PartitionHasNoGaps(t *testing.T) {
	weightSets := [][]LabelWeight{
		DefaultWeights(),
		{{"a", 0.333}, {"b", 0.333}, {"c", 0.334}},
		{{"a", 0.995}, {"b", 0.005}},
		{{"a", 0.005}, {"b", 0.005}, {"c", 0.995}},
		{{"only", 1}},
	}

	for _, weights := range weightSets {
		for n := 0; n <= 300; n++ {
			ranges := Boundaries(weights, n)
			require.Len(t, ranges, len(weights))

			assert.Equal(t, 0, ranges[0].Start)
			assert.Equal(t, n, ranges[len(ranges)-1].End)
			for i := 1; i < len(ranges); i++ {
				assert.Equal(t, ranges[i-1].End, ranges[i].Start, "n=%d gap before %s", n, ranges[i].Label)
			}

			for idx := 0; idx < n; idx++ {
				_, err := LabelFor(ranges, idx)
				require.NoError(t, err, "n=%d idx=%d", n, idx)
			}
		}
	}
}

func TestLabelFor_OutOfRange(t *testing.T) {
	ranges := Boundaries(DefaultWeights(), 10)

	_, err := LabelFor(ranges, 10)
	assert.ErrorIs(t, err, dataset.ErrLabelMissing)
	_, err = LabelFor(ranges, -1)
	assert.ErrorIs(t, err, dataset.ErrLabelMissing)
}

func TestAssign(t *testing.T) {
	paths := make([]string, 2500)
	for i := range paths {
		paths[i] = filepath.Join("in", "f", string(rune('a'+i%26)))
	}

	tbl, err := Assign(paths, DefaultWeights())
	require.NoError(t, err)
	require.Equal(t, 2500, tbl.Len())

	counts := tbl.Counts()
	assert.Equal(t, 750, counts["labelA"])
	assert.Equal(t, 500, counts["labelB"])
	assert.Equal(t, 250, counts["labelC"])
	assert.Equal(t, 1000, counts["labelD"])

	assert.Equal(t, "labelA", tbl.Rows[0].Label)
	assert.Equal(t, "labelA", tbl.Rows[749].Label)
	assert.Equal(t, "labelB", tbl.Rows[750].Label)
	assert.Equal(t, "labelD", tbl.Rows[2499].Label)
}

func TestGenerate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "in")
	require.NoError(t, os.MkdirAll(dir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stale.txt"), []byte("old"), 0o600))

	res, err := Generate(Config{
		InputDir:       dir,
		Folders:        3,
		FilesPerFolder: 4,
		FileSize:       32,
		Seed:           42,
		Logger:         testutil.NewTestLogger(t),
	})
	require.NoError(t, err)

	assert.Equal(t, 12, res.Files)
	assert.Len(t, res.Folders, 3)
	require.Equal(t, 12, res.Table.Len())

	for _, r := range res.Table.Rows {
		assert.NotEqual(t, "stale.txt", filepath.Base(r.Path))
		data, err := os.ReadFile(r.Path)
		require.NoError(t, err)
		assert.Len(t, data, 32)
		for _, c := range data {
			assert.True(t, c >= 'a' && c <= 'z', "unexpected byte %q", c)
		}
	}

	counts := res.Table.Counts()
	assert.Equal(t, 4, counts["labelA"])
	assert.Equal(t, 2, counts["labelB"])
	assert.Equal(t, 1, counts["labelC"])
	assert.Equal(t, 5, counts["labelD"])
}

func TestGenerate_SeedIsReproducible(t *testing.T) {
	gen := func() []string {
		dir := filepath.Join(t.TempDir(), "in")
		res, err := Generate(Config{InputDir: dir, Folders: 2, FilesPerFolder: 2, FileSize: 8, Seed: 7})
		require.NoError(t, err)
		var names []string
		for _, r := range res.Table.Rows {
			rel, err := filepath.Rel(dir, r.Path)
			require.NoError(t, err)
			names = append(names, rel)
		}
		return names
	}

	assert.Equal(t, gen(), gen())
}

func TestGenerate_RejectsBadWeights(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "in")
	_, err := Generate(Config{InputDir: dir, Weights: []LabelWeight{{"a", 0.2}}})

	assert.ErrorIs(t, err, dataset.ErrConfig)
	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr), "nothing is written on invalid config")
}

func TestPlan(t *testing.T) {
	ranges := Plan(Config{Folders: 2, FilesPerFolder: 5})

	require.Len(t, ranges, 4)
	total := 0
	for _, r := range ranges {
		total += r.End - r.Start
	}
	assert.Equal(t, 10, total)
	assert.Equal(t, Range{Label: "labelA", Start: 0, End: 3}, ranges[0])
	assert.Equal(t, 10, ranges[3].End)
}
