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

package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZaparooProject/zaparoo-eject/pkg/applet"
	"github.com/ZaparooProject/zaparoo-eject/pkg/config"
	"github.com/ZaparooProject/zaparoo-eject/pkg/devices"
	"github.com/ZaparooProject/zaparoo-eject/pkg/watch"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	//nolint:wrapcheck // test buffer
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fakeLister struct {
	calls  atomic.Int32
	closed atomic.Int32
}

func (l *fakeLister) Entries(context.Context) []applet.Entry {
	l.calls.Add(1)
	return []applet.Entry{{
		Label:   "BACKUP",
		Open:    "/run/media/user/BACKUP",
		Unmount: "/run/media/user/BACKUP",
		Kind:    devices.KindUSB,
	}}
}

func (l *fakeLister) Close() error {
	l.closed.Add(1)
	return nil
}

func TestWatch_ReprintsOnChange(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg, err := config.NewConfig(dir, config.BaseDefaults)
	require.NoError(t, err)

	table := filepath.Join(dir, "mounts")
	require.NoError(t, os.WriteFile(table, []byte("/dev/sdb1 /run/media/user/BACKUP vfat rw 0 0\n"), 0o600))

	lister := &fakeLister{}
	clock := clockwork.NewFakeClock()
	out := &syncBuffer{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, cfg, func(context.Context, *config.Instance) (Lister, error) {
			return lister, nil
		}, watch.MountOptions{
			Clock:          clock,
			Path:           table,
			RescanInterval: time.Minute,
			PollTimeout:    5 * time.Millisecond,
		}, out, false)
	}()

	require.Eventually(t, func() bool { return lister.calls.Load() == 1 }, 5*time.Second, 5*time.Millisecond)

	clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return lister.calls.Load() >= 2 }, 5*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not return")
	}

	assert.GreaterOrEqual(t, strings.Count(out.String(), "BACKUP\t"), 2)
	assert.Equal(t, int32(1), lister.closed.Load())
}

func TestWatch_NilBuilder(t *testing.T) {
	t.Parallel()

	cfg, err := config.NewConfig(t.TempDir(), config.BaseDefaults)
	require.NoError(t, err)
	require.Error(t, Watch(context.Background(), cfg, nil, watch.MountOptions{}, &syncBuffer{}, false))
}
