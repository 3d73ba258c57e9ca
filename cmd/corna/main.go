// SPDX-License-Identifier: Unlicense OR MIT

//go:build linux && cgo

// Command corna shows a clock in a corner of a wlroots desktop.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"corna.org/app"
	"corna.org/config"
	"corna.org/feature"
	"corna.org/internal/logging"
	"corna.org/internal/wayland"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var (
	configPath = flag.String("config", "", "configuration file (default $XDG_CONFIG_HOME/corna/config.toml)")
	debug      = flag.Bool("debug", false, "log at debug level and panic on programming errors")
	fps        = flag.Int("fps", -1, "frame rate cap overriding fps_cap; 0 disables the cap")
)

func init() {
	// EGL contexts are made current on the main thread, which runs the
	// event loop.
	runtime.LockOSThread()
}

func main() {
	flag.Parse()
	if err := mainErr(); err != nil {
		fmt.Fprintf(os.Stderr, "corna: %v\n", err)
		os.Exit(1)
	}
}

func mainErr() (err error) {
	log, err := logging.New(*debug)
	if err != nil {
		return err
	}
	defer func() {
		// Syncing a terminal stderr fails with EINVAL.
		_ = log.Sync()
	}()

	path, err := resolvePath(*configPath)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(path, *fps)
	if err != nil {
		return err
	}
	log.Debug("configuration", zap.String("path", path), zap.Int("fps_cap", cfg.FPSCap))

	conn, err := wayland.Connect(log, feature.Overlays())
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, conn.Close())
	}()
	a, err := app.New(log, conn, cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	// The watcher posts to conn, so it must exit before conn closes.
	watched := make(chan struct{})
	defer func() {
		stop()
		<-watched
	}()
	go func() {
		defer close(watched)
		err := config.Watch(ctx, path, func(c config.Config, err error) {
			if err != nil {
				log.Warn("reload configuration", zap.Error(err))
				return
			}
			c = withFPS(c, *fps)
			conn.Invoke(func() {
				if err := a.Apply(c); err != nil {
					log.Warn("apply configuration", zap.Error(err))
				}
			})
		})
		if err != nil {
			log.Warn("configuration is not watched", zap.Error(err))
		}
	}()
	return a.Run(ctx, func(ctx context.Context) error {
		return conn.Run(ctx, a)
	})
}
