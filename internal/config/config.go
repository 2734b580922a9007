// Package config loads boxscan settings from a TOML file.
package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	bmff "github.com/tetsuo/bmffscan"
	"github.com/tetsuo/bmffscan/internal/logging"
)

// Config holds boxscan runtime settings.
type Config struct {
	ChunkSize int            // bytes requested per read while scanning
	Jobs      int            // files scanned in parallel by stats
	Types     []bmff.BoxType // only report these box types; empty means all
	LogLevel  string
	LogFile   string
	JSON      bool
}

// fileConfig is the on-disk key mapping.
type fileConfig struct {
	ChunkSize int      `toml:"chunk_size"`
	Jobs      int      `toml:"jobs"`
	Types     []string `toml:"types"`
	LogLevel  string   `toml:"log_level"`
	LogFile   string   `toml:"log_file"`
	JSON      bool     `toml:"json"`
}

const maxChunkSize = 64 << 20

// Default returns the settings used when no config file is given.
func Default() Config {
	return Config{
		ChunkSize: bmff.DefaultBufferSize,
		Jobs:      4,
		LogLevel:  "info",
	}
}

// Load reads path and overlays the keys it defines onto Default.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("chunk_size") {
		cfg.ChunkSize = raw.ChunkSize
	}
	if meta.IsDefined("jobs") {
		cfg.Jobs = raw.Jobs
	}
	if meta.IsDefined("types") {
		types, err := ParseTypes(raw.Types)
		if err != nil {
			return Config{}, fmt.Errorf("load config: %w", err)
		}
		cfg.Types = types
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("log_file") {
		cfg.LogFile = strings.TrimSpace(raw.LogFile)
	}
	if meta.IsDefined("json") {
		cfg.JSON = raw.JSON
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// ParseTypes converts FourCC strings into box types. Each entry may itself
// be a comma separated list.
func ParseTypes(values []string) ([]bmff.BoxType, error) {
	var types []bmff.BoxType
	for _, v := range values {
		for _, s := range strings.Split(v, ",") {
			if s == "" {
				continue
			}
			t, err := bmff.ParseBoxType(s)
			if err != nil {
				return nil, err
			}
			types = append(types, t)
		}
	}
	return types, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 || c.ChunkSize > maxChunkSize {
		return fmt.Errorf("chunk_size must be in 1..%d, got %d", maxChunkSize, c.ChunkSize)
	}
	if c.Jobs <= 0 {
		return fmt.Errorf("jobs must be positive, got %d", c.Jobs)
	}
	if _, ok := logging.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("log_level %q is not one of trace, debug, info, warn, error or disabled", c.LogLevel)
	}
	return nil
}

// Wants reports whether boxes of type t pass the Types filter.
func (c Config) Wants(t bmff.BoxType) bool {
	if len(c.Types) == 0 {
		return true
	}
	for _, want := range c.Types {
		if want == t {
			return true
		}
	}
	return false
}
