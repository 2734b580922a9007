package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"slices"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	bmff "github.com/tetsuo/bmffscan"
)

// typeStats aggregates per-type box counts across concurrently scanned files.
type typeStats struct {
	boxes  *xsync.Map[bmff.BoxType, *xsync.Counter]
	bytes  *xsync.Map[bmff.BoxType, uint64] // saturates at math.MaxUint64
	files  *xsync.Counter
	failed *xsync.Counter
}

func newTypeStats() *typeStats {
	return &typeStats{
		boxes:  xsync.NewMap[bmff.BoxType, *xsync.Counter](),
		bytes:  xsync.NewMap[bmff.BoxType, uint64](),
		files:  xsync.NewCounter(),
		failed: xsync.NewCounter(),
	}
}

func counter(m *xsync.Map[bmff.BoxType, *xsync.Counter], t bmff.BoxType) *xsync.Counter {
	if c, ok := m.Load(t); ok {
		return c
	}
	c, _ := m.LoadOrStore(t, xsync.NewCounter())
	return c
}

func (s *typeStats) add(e bmff.ScanEntry) error {
	counter(s.boxes, e.Type).Inc()
	if e.ToEnd {
		return nil
	}
	s.bytes.Compute(e.Type, func(total uint64, _ bool) (uint64, xsync.ComputeOp) {
		if total > math.MaxUint64-e.Size {
			return math.MaxUint64, xsync.UpdateOp
		}
		return total + e.Size, xsync.UpdateOp
	})
	return nil
}

type typeRow struct {
	Type  bmff.BoxType
	Boxes int64
	Bytes uint64
}

// rows returns one row per type, largest byte total first.
func (s *typeStats) rows() []typeRow {
	var rows []typeRow
	s.boxes.Range(func(t bmff.BoxType, c *xsync.Counter) bool {
		row := typeRow{Type: t, Boxes: c.Value()}
		row.Bytes, _ = s.bytes.Load(t)
		rows = append(rows, row)
		return true
	})
	slices.SortFunc(rows, func(a, b typeRow) int {
		if a.Bytes != b.Bytes {
			if a.Bytes > b.Bytes {
				return -1
			}
			return 1
		}
		return slices.Compare(a.Type[:], b.Type[:])
	})
	return rows
}

// collect scans paths with at most jobs files in flight. A file that fails
// to scan is logged and counted; its boxes up to the failure still count.
func collect(ctx context.Context, paths []string, jobs, chunkSize int, logger zerolog.Logger) *typeStats {
	stats := newTypeStats()
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for _, path := range paths {
		g.Go(func() error {
			err := scanInput(ctx, path, chunkSize, stats.add)
			stats.files.Inc()
			if err != nil {
				stats.failed.Inc()
				logger.Warn().Err(err).Str("file", path).Msg("scan failed")
				return nil
			}
			logger.Debug().Str("file", path).Msg("scan done")
			return nil
		})
	}
	g.Wait()
	return stats
}

func printStats(w io.Writer, stats *typeStats) {
	fmt.Fprintf(w, "%-8s %10s %20s\n", "TYPE", "BOXES", "BYTES")
	for _, row := range stats.rows() {
		style := styleType
		if bmff.IsContainerBox(row.Type) {
			style = styleContainer
		}
		fmt.Fprintf(w, "%s %10d %20d\n", style.Render(fmt.Sprintf("%-8s", row.Type.Quoted())), row.Boxes, row.Bytes)
	}
	fmt.Fprintln(w, styleInfo.Render(fmt.Sprintf("%d files, %d failed", stats.files.Value(), stats.failed.Value())))
}

func statsCommand(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	if cmd.Args().Len() == 0 {
		return cli.Exit("stats needs at least one file", 2)
	}
	if slices.Contains(cmd.Args().Slice(), "-") {
		return cli.Exit("stats reads files only, not stdin", 2)
	}

	stats := collect(ctx, cmd.Args().Slice(), cfg.Jobs, cfg.ChunkSize, logger)
	printStats(cmd.Root().Writer, stats)
	if n := stats.failed.Value(); n > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d files failed", n, stats.files.Value()), 1)
	}
	return ctx.Err()
}
