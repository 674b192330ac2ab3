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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTable(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mounts")
	require.NoError(t, os.WriteFile(path, []byte("/dev/sda2 / ext4 rw 0 0\n"), 0o600))
	return path
}

func TestMountWatcher_PeriodicRescan(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	w := NewMountWatcher(MountOptions{
		Clock:          clock,
		Path:           newTable(t),
		RescanInterval: time.Minute,
		PollTimeout:    10 * time.Millisecond,
	})
	require.NoError(t, w.Start())
	defer w.Stop()

	select {
	case <-w.Changes():
		t.Fatal("change before rescan interval")
	case <-time.After(50 * time.Millisecond):
	}

	clock.Advance(time.Minute)

	select {
	case <-w.Changes():
	case <-time.After(5 * time.Second):
		t.Fatal("no change after rescan interval")
	}
}

func TestMountWatcher_CoalescesChanges(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	w := NewMountWatcher(MountOptions{
		Clock:          clock,
		Path:           newTable(t),
		RescanInterval: time.Second,
		PollTimeout:    5 * time.Millisecond,
	})
	require.NoError(t, w.Start())
	defer w.Stop()

	for range 3 {
		clock.Advance(time.Second)
		time.Sleep(30 * time.Millisecond)
	}

	select {
	case <-w.Changes():
	case <-time.After(5 * time.Second):
		t.Fatal("no change")
	}
	assert.LessOrEqual(t, len(w.Changes()), 1)
}

func TestMountWatcher_StartMissingTable(t *testing.T) {
	t.Parallel()

	w := NewMountWatcher(MountOptions{Path: filepath.Join(t.TempDir(), "missing")})
	require.Error(t, w.Start())
	w.Stop()
}

func TestMountWatcher_StopClosesChanges(t *testing.T) {
	t.Parallel()

	w := NewMountWatcher(MountOptions{
		Clock:       clockwork.NewFakeClock(),
		Path:        newTable(t),
		PollTimeout: 10 * time.Millisecond,
	})
	require.NoError(t, w.Start())

	w.Stop()
	w.Stop()

	_, ok := <-w.Changes()
	assert.False(t, ok)
}

func TestNewMountWatcher_Defaults(t *testing.T) {
	t.Parallel()

	w := NewMountWatcher(MountOptions{})
	assert.Equal(t, "/proc/mounts", w.path)
	assert.Equal(t, DefaultRescanInterval, w.interval)
	assert.Equal(t, DefaultPollTimeout, w.timeout)
	assert.NotNil(t, w.clock)
}
