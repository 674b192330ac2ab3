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

package watch

import (
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZaparooProject/zaparoo-eject/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingReloader struct {
	err   error
	loads atomic.Int32
}

func (r *countingReloader) Load() error {
	r.loads.Add(1)
	return r.err
}

// writeFile replaces path atomically so the watcher never sees a truncated
// file.
func writeFile(t *testing.T, path, data string) {
	t.Helper()
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte(data), 0o600))
	require.NoError(t, os.Rename(tmp, path))
}

func waitReload(t *testing.T, w *ConfigWatcher) {
	t.Helper()
	select {
	case <-w.Reloaded():
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}
}

func TestWatchConfig_ReloadsOnWrite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg, err := config.NewConfig(dir, config.BaseDefaults)
	require.NoError(t, err)
	require.False(t, cfg.DebugLogging())

	w, err := WatchConfig(cfg.Path(), cfg)
	require.NoError(t, err)
	defer w.Stop()

	writeFile(t, cfg.Path(), "config_schema = 1\ndebug_logging = true\n")

	waitReload(t, w)
	assert.True(t, cfg.DebugLogging())
}

func TestWatchConfig_IgnoresOtherFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("config_schema = 1\n"), 0o600))

	r := &countingReloader{}
	w, err := WatchConfig(path, r)
	require.NoError(t, err)
	defer w.Stop()

	writeFile(t, filepath.Join(dir, "other.toml"), "x = 1\n")
	writeFile(t, path, "config_schema = 1\n\n")

	waitReload(t, w)
	assert.Positive(t, r.loads.Load())
}

func TestWatchConfig_FailedReloadNotSignalled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("config_schema = 1\n"), 0o600))

	r := &countingReloader{err: errors.New("schema version mismatch")}
	w, err := WatchConfig(path, r)
	require.NoError(t, err)
	defer w.Stop()

	writeFile(t, path, "config_schema = 99\n")

	require.Eventually(t, func() bool { return r.loads.Load() > 0 }, 5*time.Second, 10*time.Millisecond)
	select {
	case <-w.Reloaded():
		t.Fatal("failed reload was signalled")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatchConfig_Errors(t *testing.T) {
	t.Parallel()

	_, err := WatchConfig(filepath.Join(t.TempDir(), "config.toml"), nil)
	require.Error(t, err)

	_, err = WatchConfig(filepath.Join(t.TempDir(), "missing", "config.toml"), &countingReloader{})
	require.Error(t, err)
}

func TestConfigWatcher_StopTwice(t *testing.T) {
	t.Parallel()

	w, err := WatchConfig(filepath.Join(t.TempDir(), "config.toml"), &countingReloader{})
	require.NoError(t, err)

	w.Stop()
	w.Stop()

	_, ok := <-w.Reloaded()
	assert.False(t, ok)
}
