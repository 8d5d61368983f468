package dataset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapsort/internal/testutil"
)

func TestParseCollisionPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    CollisionPolicy
		wantErr bool
	}{
		{"", CollisionError, false},
		{"error", CollisionError, false},
		{"WARN", CollisionWarn, false},
		{"overwrite", CollisionOverwrite, false},
		{"ignore", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCollisionPolicy(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCopier_Plan(t *testing.T) {
	tbl := NewTable(
		Row{Path: "/in/x/a.txt", Label: "cat"},
		Row{Path: "/in/y/a.txt", Label: "cat"},
		Row{Path: "/in/z/a.txt", Label: "dog"},
		Row{Path: "/in/z/a.txt", Label: "dog"},
	)

	t.Run("error policy fails loud", func(t *testing.T) {
		c := &Copier{OnCollision: CollisionError}
		_, _, err := c.Plan(tbl, "/out")

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConfig)
		var ce *CollisionsError
		require.True(t, errors.As(err, &ce))
		require.Len(t, ce.Collisions, 1)
		assert.Equal(t, filepath.Join("/out", "cat", "a.txt"), ce.Collisions[0].Dest)
		assert.Equal(t, []string{"/in/x/a.txt", "/in/y/a.txt"}, ce.Collisions[0].Sources)
	})

	for _, policy := range []CollisionPolicy{CollisionWarn, CollisionOverwrite} {
		t.Run(string(policy)+" keeps last source", func(t *testing.T) {
			c := &Copier{OnCollision: policy, Logger: testutil.NewTestLogger(t)}
			plan, collisions, err := c.Plan(tbl, "/out")

			require.NoError(t, err)
			assert.Equal(t, 1, collisions)
			require.Len(t, plan, 2, "duplicate rows of the same source collapse")
			assert.Equal(t, "/in/y/a.txt", plan[0].Row.Path)
			assert.Equal(t, "/in/z/a.txt", plan[1].Row.Path)
		})
	}
}

func TestCopier_Copy(t *testing.T) {
	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			src := t.TempDir()
			root := t.TempDir()

			var rows []Row
			for i := 0; i < 20; i++ {
				label := []string{"cat", "dog"}[i%2]
				path := writeSource(t, src, fmt.Sprintf("f%02d.txt", i), fmt.Sprintf("content-%d", i))
				rows = append(rows, Row{Path: path, Label: label})
			}
			tbl := NewTable(rows...)
			_, err := Materialize(tbl, root)
			require.NoError(t, err)

			var mu sync.Mutex
			var seen []int
			c := &Copier{Workers: workers, Observer: ObserverFunc(func(c Copied) {
				mu.Lock()
				defer mu.Unlock()
				seen = append(seen, c.Done)
				assert.Equal(t, 20, c.Total)
			})}

			stats, err := c.Copy(context.Background(), tbl, root)
			require.NoError(t, err)
			assert.Equal(t, 20, stats.Copied)
			assert.Equal(t, 20, stats.Planned)
			assert.Len(t, seen, 20)

			for _, r := range rows {
				want, err := os.ReadFile(r.Path)
				require.NoError(t, err)
				got, err := os.ReadFile(r.OutputPath(root))
				require.NoError(t, err)
				assert.Equal(t, want, got)
			}
		})
	}
}

func TestCopier_PreservesMetadata(t *testing.T) {
	src := t.TempDir()
	root := t.TempDir()

	path := writeSource(t, src, "scan.png", "pixels")
	require.NoError(t, os.Chmod(path, 0o640))
	mtime := time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, mtime, mtime))

	tbl := NewTable(Row{Path: path, Label: "scan"})
	_, err := Materialize(tbl, root)
	require.NoError(t, err)

	_, err = (&Copier{}).Copy(context.Background(), tbl, root)
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(root, "scan", "scan.png"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())
	assert.True(t, info.ModTime().Equal(mtime), "mtime %v, want %v", info.ModTime(), mtime)
}

func TestCopier_Errors(t *testing.T) {
	t.Run("missing source", func(t *testing.T) {
		root := t.TempDir()
		tbl := NewTable(Row{Path: filepath.Join(t.TempDir(), "gone.txt"), Label: "cat"})
		_, err := Materialize(tbl, root)
		require.NoError(t, err)

		stats, err := (&Copier{}).Copy(context.Background(), tbl, root)
		assert.ErrorIs(t, err, ErrInputMissing)
		assert.Equal(t, 0, stats.Copied)
	})

	t.Run("destination directory missing", func(t *testing.T) {
		path := writeSource(t, t.TempDir(), "a.txt", "a")
		tbl := NewTable(Row{Path: path, Label: "cat"})

		_, err := (&Copier{}).Copy(context.Background(), tbl, t.TempDir())
		assert.ErrorIs(t, err, ErrIO)
	})

	t.Run("cancelled context", func(t *testing.T) {
		root := t.TempDir()
		path := writeSource(t, t.TempDir(), "a.txt", "a")
		tbl := NewTable(Row{Path: path, Label: "cat"})
		_, err := Materialize(tbl, root)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		for _, workers := range []int{1, 3} {
			stats, err := (&Copier{Workers: workers}).Copy(ctx, tbl, root)
			assert.ErrorIs(t, err, context.Canceled)
			assert.Equal(t, 0, stats.Copied)
		}
	})
}
