// SPDX-License-Identifier: Unlicense OR MIT

package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch calls fn with the reloaded configuration each time the file at
// path is written or replaced, until ctx is done. Load errors are passed
// to fn as well; the caller decides whether to keep its old
// configuration. The directory is watched so that editors replacing the
// file by rename are noticed.
func Watch(ctx context.Context, path string, fn func(Config, error)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	defer w.Close()
	path = filepath.Clean(path)
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("config: watch %s: %w", path, err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(e.Name) != path || !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
				continue
			}
			fn(Load(path))
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			fn(Config{}, fmt.Errorf("config: watch: %w", err))
		}
	}
}
