// Command boxscan lists, checks and summarises the top-level boxes of
// ISOBMFF streams (MP4, MOV, fragmented segments).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/tetsuo/bmffscan/internal/config"
	"github.com/tetsuo/bmffscan/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", styleError.Render("error:"), err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:      "boxscan",
		Usage:     "Inspect the top-level box layout of ISOBMFF files",
		Version:   "0.1.0",
		ArgsUsage: "<file|->...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load settings from a TOML file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "trace, debug, info, warn, error or disabled",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Also write logs to a rotating file",
			},
			&cli.IntFlag{
				Name:  "chunk-size",
				Usage: "Bytes requested per read",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "scan",
				Aliases:   []string{"ls"},
				Usage:     "Print the top-level boxes of each input",
				ArgsUsage: "<file|->...",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "types",
						Aliases: []string{"t"},
						Usage:   "Only print these box types (e.g. ftyp,moov)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print one JSON object per box",
					},
				},
				Action: scanCommand,
			},
			{
				Name:      "check",
				Usage:     "Fail on the first malformed or truncated input",
				ArgsUsage: "<file|->...",
				Action:    checkCommand,
			},
			{
				Name:      "stats",
				Usage:     "Count boxes and bytes per type across files",
				ArgsUsage: "<file>...",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "jobs",
						Aliases: []string{"j"},
						Usage:   "Files scanned in parallel",
					},
				},
				Action: statsCommand,
			},
		},
	}
}

// setup loads the config file, applies flag overrides and initialises logging.
func setup(cmd *cli.Command) (config.Config, zerolog.Logger, error) {
	cfg := config.Default()
	if path := cmd.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return config.Config{}, zerolog.Nop(), err
		}
		cfg = loaded
	}

	if cmd.IsSet("log-level") {
		cfg.LogLevel = cmd.String("log-level")
	}
	if cmd.IsSet("log-file") {
		cfg.LogFile = cmd.String("log-file")
	}
	if cmd.IsSet("chunk-size") {
		cfg.ChunkSize = int(cmd.Int("chunk-size"))
	}
	if cmd.IsSet("jobs") {
		cfg.Jobs = int(cmd.Int("jobs"))
	}
	if cmd.IsSet("json") {
		cfg.JSON = cmd.Bool("json")
	}
	if cmd.IsSet("types") {
		types, err := config.ParseTypes(cmd.StringSlice("types"))
		if err != nil {
			return config.Config{}, zerolog.Nop(), err
		}
		cfg.Types = types
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, zerolog.Nop(), err
	}

	logger := logging.Init("boxscan", logging.Options{
		Level: cfg.LogLevel,
		File:  cfg.LogFile,
	})
	return cfg, logger, nil
}

// inputs returns the positional arguments, defaulting to stdin.
func inputs(cmd *cli.Command) []string {
	if cmd.Args().Len() == 0 {
		return []string{"-"}
	}
	return cmd.Args().Slice()
}
