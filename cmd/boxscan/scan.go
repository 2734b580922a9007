package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	bmff "github.com/tetsuo/bmffscan"
	"github.com/tetsuo/bmffscan/internal/config"
)

// scanInput opens path ("-" is stdin) and calls fn for each top-level box.
// Scanning stops at the first error fn returns.
func scanInput(ctx context.Context, path string, chunkSize int, fn func(bmff.ScanEntry) error) error {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	sc := bmff.NewScanner(r, bmff.WithBufferSize(chunkSize))
	for sc.NextContext(ctx) {
		if err := fn(sc.Entry()); err != nil {
			return err
		}
	}
	return sc.Err()
}

type jsonEntry struct {
	File       string `json:"file"`
	Offset     int64  `json:"offset"`
	Type       string `json:"type"`
	Size       uint64 `json:"size"`
	HeaderSize int    `json:"header_size"`
	ToEnd      bool   `json:"to_end,omitempty"`
}

func formatEntry(e bmff.ScanEntry) string {
	style := styleType
	if bmff.IsContainerBox(e.Type) {
		style = styleContainer
	}
	size := strconv.FormatUint(e.Size, 10)
	if e.ToEnd {
		size = "to-end"
	}
	return fmt.Sprintf("%10d %s size=%s %s",
		e.Offset, style.Render("["+e.Type.Quoted()+"]"), size,
		styleInfo.Render(fmt.Sprintf("header=%d", e.HeaderSize)))
}

func printEntries(w io.Writer, cfg config.Config, path string) func(bmff.ScanEntry) error {
	enc := json.NewEncoder(w)
	return func(e bmff.ScanEntry) error {
		if !cfg.Wants(e.Type) {
			return nil
		}
		if cfg.JSON {
			return enc.Encode(jsonEntry{
				File:       path,
				Offset:     e.Offset,
				Type:       e.Type.Quoted(),
				Size:       e.Size,
				HeaderSize: e.HeaderSize,
				ToEnd:      e.ToEnd,
			})
		}
		_, err := fmt.Fprintln(w, formatEntry(e))
		return err
	}
}

func scanCommand(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	paths := inputs(cmd)
	for _, path := range paths {
		if len(paths) > 1 && !cfg.JSON {
			fmt.Fprintln(cmd.Root().Writer, styleType.Render(path+":"))
		}
		if err := scanInput(ctx, path, cfg.ChunkSize, printEntries(cmd.Root().Writer, cfg, path)); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		logger.Debug().Str("file", path).Msg("scan done")
	}
	return nil
}

// checkInput scans path to the end and returns the number of boxes seen.
func checkInput(ctx context.Context, path string, chunkSize int, logger zerolog.Logger) (int, error) {
	boxes := 0
	err := scanInput(ctx, path, chunkSize, func(e bmff.ScanEntry) error {
		boxes++
		logger.Trace().Str("file", path).Int64("offset", e.Offset).
			Str("type", e.Type.Quoted()).Uint64("size", e.Size).Msg("box")
		return nil
	})
	return boxes, err
}

func checkCommand(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	w := cmd.Root().Writer
	for _, path := range inputs(cmd) {
		boxes, err := checkInput(ctx, path, cfg.ChunkSize, logger)
		if err != nil {
			logger.Error().Err(err).Str("file", path).Int("boxes", boxes).Msg("check failed")
			return cli.Exit(fmt.Sprintf("%s: corrupt or unsupported file: %v", path, err), 2)
		}
		if boxes == 0 {
			return cli.Exit(fmt.Sprintf("%s: no boxes found", path), 2)
		}
		fmt.Fprintf(w, "%s %s\n", path, styleContainer.Render(fmt.Sprintf("ok (%d boxes)", boxes)))
	}
	return nil
}
