// SPDX-License-Identifier: Unlicense OR MIT

package main

import (
	"fmt"

	"corna.org/config"
	"github.com/mitchellh/go-homedir"
)

// resolvePath expands a leading ~ in path, or returns the default path
// if path is empty.
func resolvePath(path string) (string, error) {
	if path == "" {
		return config.DefaultPath()
	}
	p, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("-config: %w", err)
	}
	return p, nil
}

func loadConfig(path string, fps int) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	return withFPS(cfg, fps), nil
}

// withFPS overrides the frame rate cap of cfg unless fps is negative.
func withFPS(cfg config.Config, fps int) config.Config {
	if fps >= 0 {
		cfg.FPSCap = fps
	}
	return cfg
}
