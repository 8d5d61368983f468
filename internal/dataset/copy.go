package dataset

// copy.go - planning and copying rows into a materialized dataset root

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// CollisionPolicy decides what happens when two distinct source files map to
// the same destination (same basename under the same label).
type CollisionPolicy string

// Collision policies.
const (
	// CollisionError aborts before any file is copied.
	CollisionError CollisionPolicy = "error"
	// CollisionWarn logs every collision and keeps the last row.
	CollisionWarn CollisionPolicy = "warn"
	// CollisionOverwrite keeps the last row without reporting.
	CollisionOverwrite CollisionPolicy = "overwrite"
)

// ParseCollisionPolicy parses a policy name. Empty selects CollisionError.
func ParseCollisionPolicy(s string) (CollisionPolicy, error) {
	switch p := CollisionPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return CollisionError, nil
	case CollisionError, CollisionWarn, CollisionOverwrite:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown collision policy %q (expected error, warn or overwrite)", ErrConfig, s)
	}
}

// Collision records two source files competing for one destination.
type Collision struct {
	Dest    string
	Sources []string
}

// CollisionsError lists every collision found while planning.
type CollisionsError struct {
	Collisions []Collision
}

func (e *CollisionsError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d destination(s) claimed by more than one source file", len(e.Collisions))
	for _, c := range e.Collisions {
		fmt.Fprintf(&b, "\n  %s <- %s", c.Dest, strings.Join(c.Sources, ", "))
	}
	return b.String()
}

// Unwrap makes collisions match ErrConfig.
func (e *CollisionsError) Unwrap() error { return ErrConfig }

// Transfer is one planned copy.
type Transfer struct {
	Row  Row
	Dest string
}

// CopyStats summarizes a finished copy phase.
type CopyStats struct {
	Planned    int
	Copied     int
	Bytes      int64
	Collisions int
}

// Copier copies table rows into a dataset root.
type Copier struct {
	// Workers bounds concurrent copies. Values below 1 mean sequential.
	Workers int
	// OnCollision selects the duplicate destination behaviour.
	OnCollision CollisionPolicy
	// Observer receives one Copied call per file.
	Observer Observer
	// Logger is optional.
	Logger *slog.Logger
}

func (c *Copier) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.Logger
}

func (c *Copier) observer() Observer {
	if c.Observer == nil {
		return NopObserver
	}
	return c.Observer
}

// Plan derives the destination of every row under root and applies the
// collision policy. Rows repeating the same source and label collapse into one
// transfer. The returned collision count is zero under CollisionError, which
// fails instead.
func (c *Copier) Plan(t *Table, root string) ([]Transfer, int, error) {
	policy := c.OnCollision
	if policy == "" {
		policy = CollisionError
	}

	index := make(map[string]int, t.Len())
	sources := make(map[string][]string)
	var plan []Transfer

	for _, r := range t.Rows {
		dest := r.OutputPath(root)
		i, seen := index[dest]
		if !seen {
			index[dest] = len(plan)
			plan = append(plan, Transfer{Row: r, Dest: dest})
			sources[dest] = []string{r.Path}
			continue
		}
		if plan[i].Row.Path == r.Path {
			continue
		}
		sources[dest] = append(sources[dest], r.Path)
		plan[i] = Transfer{Row: r, Dest: dest}
	}

	var collisions []Collision
	for dest, srcs := range sources {
		if len(srcs) > 1 {
			collisions = append(collisions, Collision{Dest: dest, Sources: srcs})
		}
	}
	if len(collisions) == 0 {
		return plan, 0, nil
	}
	sort.Slice(collisions, func(i, j int) bool { return collisions[i].Dest < collisions[j].Dest })

	switch policy {
	case CollisionWarn:
		for _, col := range collisions {
			c.logger().Warn("filename collision, keeping last source",
				"dest", col.Dest, "sources", col.Sources)
		}
	case CollisionOverwrite:
	default:
		return nil, 0, &CollisionsError{Collisions: collisions}
	}
	return plan, len(collisions), nil
}

// Copy copies every row of t to its destination under root. The label
// directories must already exist. The first failure cancels remaining copies;
// files copied before it stay in place.
func (c *Copier) Copy(ctx context.Context, t *Table, root string) (CopyStats, error) {
	plan, collisions, err := c.Plan(t, root)
	if err != nil {
		return CopyStats{}, err
	}
	stats, err := c.Execute(ctx, plan)
	stats.Collisions = collisions
	return stats, err
}

// Execute copies a plan produced by Plan.
func (c *Copier) Execute(ctx context.Context, plan []Transfer) (CopyStats, error) {
	stats := CopyStats{Planned: len(plan)}

	obs := c.observer()
	var mu sync.Mutex
	record := func(tr Transfer, n int64) {
		mu.Lock()
		defer mu.Unlock()
		stats.Copied++
		stats.Bytes += n
		obs.Copied(Copied{Row: tr.Row, Dest: tr.Dest, Bytes: n, Done: stats.Copied, Total: stats.Planned})
	}

	if c.Workers <= 1 {
		for _, tr := range plan {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			n, err := copyFile(tr.Row.Path, tr.Dest)
			if err != nil {
				return stats, err
			}
			record(tr, n)
		}
		return stats, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.Workers)
	for _, tr := range plan {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			n, err := copyFile(tr.Row.Path, tr.Dest)
			if err != nil {
				return err
			}
			record(tr, n)
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return stats, err
}

// copyFile copies src to dst, keeping permission bits and modification time.
func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("%w: source file %s", ErrInputMissing, src)
		}
		return 0, fmt.Errorf("%w: failed to open %s: %w", ErrIO, src, err)
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return 0, fmt.Errorf("%w: failed to stat %s: %w", ErrIO, src, err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%w: source %s is a directory", ErrConfig, src)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return 0, fmt.Errorf("%w: failed to create %s: %w", ErrIO, dst, err)
	}

	n, err := io.Copy(out, in)
	if err != nil {
		_ = out.Close()
		return n, fmt.Errorf("%w: failed to copy %s to %s: %w", ErrIO, src, dst, err)
	}
	if err := out.Close(); err != nil {
		return n, fmt.Errorf("%w: failed to close %s: %w", ErrIO, dst, err)
	}

	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return n, fmt.Errorf("%w: failed to set mode on %s: %w", ErrIO, dst, err)
	}
	if err := os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return n, fmt.Errorf("%w: failed to set times on %s: %w", ErrIO, dst, err)
	}
	return n, nil
}
