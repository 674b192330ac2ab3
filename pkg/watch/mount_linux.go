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
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/ZaparooProject/zaparoo-eject/pkg/helpers/syncutil"
	"github.com/ZaparooProject/zaparoo-eject/pkg/mounts"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

const (
	// DefaultRescanInterval covers systems where poll() never fires on the
	// mount table.
	DefaultRescanInterval = 5 * time.Second
	// DefaultPollTimeout bounds how long Stop waits for the poll loop.
	DefaultPollTimeout = time.Second
)

// MountOptions configures a MountWatcher. Zero values take the defaults.
type MountOptions struct {
	Clock          clockwork.Clock
	Path           string
	RescanInterval time.Duration
	PollTimeout    time.Duration
}

// MountWatcher signals on Changes when the mount table changes, or at least
// every rescan interval.
type MountWatcher struct {
	lastScan time.Time
	clock    clockwork.Clock
	file     *os.File
	changes  chan struct{}
	stopChan chan struct{}
	path     string
	interval time.Duration
	timeout  time.Duration
	wg       sync.WaitGroup
	mu       syncutil.Mutex
	stopOnce sync.Once
}

//nolint:gocritic // options struct copied on purpose
func NewMountWatcher(opts MountOptions) *MountWatcher {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Path == "" {
		opts.Path = mounts.DefaultTablePath
	}
	if opts.RescanInterval <= 0 {
		opts.RescanInterval = DefaultRescanInterval
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = DefaultPollTimeout
	}
	return &MountWatcher{
		clock:    opts.Clock,
		path:     opts.Path,
		interval: opts.RescanInterval,
		timeout:  opts.PollTimeout,
		changes:  make(chan struct{}, 1),
		stopChan: make(chan struct{}),
	}
}

// Changes receives one value per detected change. Bursts are coalesced.
func (w *MountWatcher) Changes() <-chan struct{} {
	return w.changes
}

// Start opens the mount table and starts the poll loop.
func (w *MountWatcher) Start() error {
	//nolint:gosec // path comes from config
	file, err := os.Open(w.path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", w.path, err)
	}
	w.file = file

	w.mu.Lock()
	w.lastScan = w.clock.Now()
	w.mu.Unlock()

	log.Debug().
		Str("path", w.path).
		Dur("rescan_interval", w.interval).
		Msg("watching mount table via poll()")

	w.wg.Add(1)
	go w.pollChanges()

	return nil
}

// Stop ends the poll loop and closes Changes.
func (w *MountWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
		w.wg.Wait()
		if w.file != nil {
			_ = w.file.Close()
		}
		close(w.changes)
	})
}

func (w *MountWatcher) stopped() bool {
	select {
	case <-w.stopChan:
		return true
	default:
		return false
	}
}

func (w *MountWatcher) pollChanges() {
	defer w.wg.Done()

	pollFds := []unix.PollFd{
		{
			Fd:     int32(w.file.Fd()), //nolint:gosec // fd fits in int32
			Events: unix.POLLPRI | unix.POLLERR,
		},
	}
	timeout := int(w.timeout / time.Millisecond)

	for {
		if w.stopped() {
			return
		}

		n, err := unix.Poll(pollFds, timeout)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			log.Warn().Err(err).Str("path", w.path).Msg("poll() on mount table failed")
			return
		}

		if w.stopped() {
			return
		}

		reason := ""
		if n > 0 && pollFds[0].Revents&(unix.POLLPRI|unix.POLLERR) != 0 {
			reason = "poll event"
			// the event stays pending until the table is read again
			if _, err := w.file.Seek(0, io.SeekStart); err != nil {
				log.Warn().Err(err).Msg("failed to seek mount table")
			} else if _, err := io.Copy(io.Discard, w.file); err != nil {
				log.Debug().Err(err).Msg("failed to drain mount table")
			}
		} else {
			w.mu.Lock()
			elapsed := w.clock.Since(w.lastScan)
			w.mu.Unlock()
			if elapsed >= w.interval {
				reason = "periodic interval"
			}
		}

		if reason == "" {
			continue
		}

		w.mu.Lock()
		w.lastScan = w.clock.Now()
		w.mu.Unlock()

		log.Debug().Str("reason", reason).Msg("mount table changed")
		select {
		case w.changes <- struct{}{}:
		default:
		}
	}
}
