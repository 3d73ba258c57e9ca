// SPDX-License-Identifier: Unlicense OR MIT

package main

import (
	"os"
	"path/filepath"
	"testing"

	"corna.org/config"
	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePath(t *testing.T) {
	home, err := homedir.Dir()
	require.NoError(t, err)
	p, err := resolvePath("~/corna.toml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "corna.toml"), p)

	p, err = resolvePath("/etc/corna.toml")
	require.NoError(t, err)
	assert.Equal(t, "/etc/corna.toml", p)

	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	p, err = resolvePath("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/xdg/corna/config.toml", p)
}

func TestLoadConfigFPS(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("fps_cap = 30\n"), 0o644))

	cfg, err := loadConfig(path, -1)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.FPSCap)

	cfg, err = loadConfig(path, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.FPSCap)

	cfg, err = loadConfig(filepath.Join(t.TempDir(), "missing.toml"), 144)
	require.NoError(t, err)
	want := config.Default()
	want.FPSCap = 144
	assert.Equal(t, want, cfg)
}
