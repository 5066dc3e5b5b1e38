// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Timer    TimerConfig    `toml:"timer"`
	Scramble ScrambleConfig `toml:"scramble"`
	Stats    StatsConfig    `toml:"stats"`
	Log      LogConfig      `toml:"log"`
}

// TimerConfig maps timer settings. Unset values leave the built-in defaults.
type TimerConfig struct {
	Puzzle     *string `toml:"puzzle"`
	Inspection *int    `toml:"inspection"`
	LockoutMs  *int    `toml:"lockout-ms"`
	FrameMs    *int    `toml:"frame-ms"`
}

// ScrambleConfig seeds the scramble settings when none are stored yet.
type ScrambleConfig struct {
	Length  *int     `toml:"length"`
	Double  *bool    `toml:"double"`
	Prime   *bool    `toml:"prime"`
	Exclude []string `toml:"exclude"`
}

// StatsConfig maps report settings.
type StatsConfig struct {
	CurveWindow *int `toml:"curve-window"`
}

// LogConfig maps logging settings.
type LogConfig struct {
	Level *string `toml:"level"`
	File  *string `toml:"file"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	if err := cfg.validate(); err != nil {
		return FileConfig{}, err
	}
	return cfg, nil
}

func (c FileConfig) validate() error {
	if v := c.Timer.Inspection; v != nil && *v <= 0 {
		return fmt.Errorf("timer.inspection must be > 0")
	}
	if v := c.Timer.LockoutMs; v != nil && *v < 0 {
		return fmt.Errorf("timer.lockout-ms must be >= 0")
	}
	if v := c.Timer.FrameMs; v != nil && *v <= 0 {
		return fmt.Errorf("timer.frame-ms must be > 0")
	}
	if v := c.Scramble.Length; v != nil && *v <= 0 {
		return fmt.Errorf("scramble.length must be > 0")
	}
	if v := c.Stats.CurveWindow; v != nil && *v < 0 {
		return fmt.Errorf("stats.curve-window must be >= 0")
	}
	return nil
}
