// SPDX-License-Identifier: Unlicense OR MIT

// Package config loads the widget configuration from a TOML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pelletier/go-toml/v2"
)

type Anchor string

const (
	TopLeft     Anchor = "top-left"
	TopRight    Anchor = "top-right"
	BottomLeft  Anchor = "bottom-left"
	BottomRight Anchor = "bottom-right"
)

type Position struct {
	Anchor        Anchor `toml:"anchor"`
	ExclusiveZone int    `toml:"exclusive_zone"`
}

type Margins struct {
	Top    int `toml:"top"`
	Right  int `toml:"right"`
	Bottom int `toml:"bottom"`
	Left   int `toml:"left"`
}

type Size struct {
	Width  int `toml:"width"`
	Height int `toml:"height"`
}

// Theme colors are #rrggbb strings.
type Theme struct {
	Background string `toml:"background"`
	Foreground string `toml:"foreground"`
	Accent     string `toml:"accent"`
}

type Config struct {
	Position      Position `toml:"position"`
	Margins       Margins  `toml:"margins"`
	CollapsedSize Size     `toml:"collapsed_size"`
	// ExpandedSize bounds the size the clock may grow to.
	ExpandedSize Size  `toml:"expanded_size"`
	Theme        Theme `toml:"theme"`
	// FPSCap limits the frame rate of each surface. Zero means no limit.
	FPSCap            int  `toml:"fps_cap"`
	AnimationsEnabled bool `toml:"animations_enabled"`
}

func Default() Config {
	return Config{
		Position:      Position{Anchor: TopRight},
		Margins:       Margins{Top: 8, Right: 8, Bottom: 8, Left: 8},
		CollapsedSize: Size{Width: 150, Height: 60},
		ExpandedSize:  Size{Width: 300, Height: 120},
		Theme: Theme{
			Background: "#1a1a1a",
			Foreground: "#ffffff",
			Accent:     "#4a9eff",
		},
		FPSCap:            60,
		AnimationsEnabled: true,
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/corna/config.toml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: %w", err)
	}
	return filepath.Join(dir, "corna", "config.toml"), nil
}

// Load reads the configuration at path. Keys absent from the file keep
// their default values, and a missing file yields Default.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := Decode(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Decode decodes TOML data over cfg and validates the result.
func Decode(data []byte, cfg *Config) error {
	d := toml.NewDecoder(bytes.NewReader(data))
	d.DisallowUnknownFields()
	if err := d.Decode(cfg); err != nil {
		return err
	}
	return cfg.Validate()
}

// Save writes cfg to path, creating its directory.
func Save(path string, cfg Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func (c Config) Validate() error {
	switch c.Position.Anchor {
	case TopLeft, TopRight, BottomLeft, BottomRight:
	default:
		return fmt.Errorf("unknown anchor %q", c.Position.Anchor)
	}
	if c.FPSCap < 0 {
		return fmt.Errorf("negative fps_cap %d", c.FPSCap)
	}
	for _, s := range []Size{c.CollapsedSize, c.ExpandedSize} {
		if s.Width <= 0 || s.Height <= 0 {
			return fmt.Errorf("invalid size %dx%d", s.Width, s.Height)
		}
	}
	for _, hex := range []string{c.Theme.Background, c.Theme.Foreground, c.Theme.Accent} {
		if _, err := colorful.Hex(hex); err != nil {
			return fmt.Errorf("invalid color %q", hex)
		}
	}
	return nil
}
