// Zaparoo Eject
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Zaparoo Eject.
//
// Zaparoo Eject is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Zaparoo Eject is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Zaparoo Eject.  If not, see <http://www.gnu.org/licenses/>.

// Package watch tells a front-end when the device list may be stale.
package watch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Reloader re-reads a config file.
type Reloader interface {
	Load() error
}

// ConfigWatcher reloads the config when its file is written or replaced.
type ConfigWatcher struct {
	watcher  *fsnotify.Watcher
	reloaded chan struct{}
	path     string
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// WatchConfig starts watching path. The parent directory is watched so
// editors that replace the file are seen too.
func WatchConfig(path string, cfg Reloader) (*ConfigWatcher, error) {
	if cfg == nil {
		return nil, errors.New("reloader is nil")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	path = filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch config dir: %w", err)
	}

	w := &ConfigWatcher{
		watcher:  watcher,
		reloaded: make(chan struct{}, 1),
		path:     path,
	}

	w.wg.Add(1)
	go w.loop(cfg)

	log.Debug().Str("path", path).Msg("watching config file")
	return w, nil
}

// Reloaded receives after each successful reload.
func (w *ConfigWatcher) Reloaded() <-chan struct{} {
	return w.reloaded
}

func (w *ConfigWatcher) loop(cfg Reloader) {
	defer w.wg.Done()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if _, err := os.Stat(w.path); err != nil {
				continue
			}
			if err := cfg.Load(); err != nil {
				log.Error().Err(err).Msg("error reloading config")
				continue
			}
			log.Info().Str("path", w.path).Msg("config reloaded")
			select {
			case w.reloaded <- struct{}{}:
			default:
			}
		case watchErr, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(watchErr).Msg("error in config watcher")
		}
	}
}

// Stop closes the watcher and waits for the event loop to exit.
func (w *ConfigWatcher) Stop() {
	w.stopOnce.Do(func() {
		if err := w.watcher.Close(); err != nil {
			log.Debug().Err(err).Msg("closing config watcher")
		}
		w.wg.Wait()
		close(w.reloaded)
	})
}
