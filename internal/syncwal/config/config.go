package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/syncwal/syncwal/internal/syncwal"
	"github.com/syncwal/syncwal/internal/syncwal/wal"
)

// LogConfig holds logging configuration for the CLI tools.
type LogConfig struct {
	Level      string `yaml:"level"`
	Dir        string `yaml:"dir"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
}

// WALConfig holds write-ahead log configuration.
type WALConfig struct {
	Durability      string `yaml:"durability"`
	SegmentMaxBytes int64  `yaml:"segment_max_bytes"`
}

// CompactConfig holds compaction planning defaults.
type CompactConfig struct {
	// KeepMin is the floor on retained entries for the auto strategy.
	KeepMin int `yaml:"keep_min"`
	// AggressiveKeep is the trailing entry count the aggressive strategy retains.
	AggressiveKeep int `yaml:"aggressive_keep"`
}

// Config is the tool-level configuration, loaded from YAML.
type Config struct {
	DataDir string        `yaml:"data_dir"`
	WAL     WALConfig     `yaml:"wal"`
	Log     LogConfig     `yaml:"log"`
	Compact CompactConfig `yaml:"compact"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		DataDir: syncwal.DefaultAppDir,
		WAL: WALConfig{
			Durability:      wal.DurabilityFlush.String(),
			SegmentMaxBytes: wal.DefaultSegmentMaxBytes,
		},
		Log: LogConfig{
			Level:      syncwal.DefaultLogLevel,
			Dir:        syncwal.DefaultLogDir,
			MaxSize:    syncwal.DefaultLogMaxSize,
			MaxBackups: syncwal.DefaultLogMaxBackups,
		},
		Compact: CompactConfig{
			KeepMin:        syncwal.AutoCompactKeepMin,
			AggressiveKeep: syncwal.AggressiveCompactKeep,
		},
	}
}

// Load reads configuration from a YAML file by path. A missing file is
// not an error; defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that have constrained values.
func (c *Config) Validate() error {
	if _, ok := wal.ParseDurability(c.WAL.Durability); !ok {
		return fmt.Errorf("invalid durability %q (want none, flush, or sync)", c.WAL.Durability)
	}
	if c.Compact.KeepMin < 0 || c.Compact.AggressiveKeep < 0 {
		return fmt.Errorf("compaction keep counts must be non-negative")
	}
	return nil
}

// Durability returns the parsed durability level.
func (c *Config) Durability() wal.Durability {
	d, _ := wal.ParseDurability(c.WAL.Durability)
	return d
}
