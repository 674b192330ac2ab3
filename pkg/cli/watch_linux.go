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
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ZaparooProject/zaparoo-eject/pkg/applet"
	"github.com/ZaparooProject/zaparoo-eject/pkg/config"
	"github.com/ZaparooProject/zaparoo-eject/pkg/helpers"
	"github.com/ZaparooProject/zaparoo-eject/pkg/watch"
	"github.com/rs/zerolog/log"
)

// Lister produces the device list and owns device manager connections.
type Lister interface {
	Entries(ctx context.Context) []applet.Entry
	Close() error
}

// Builder creates a Lister from the current config.
type Builder func(ctx context.Context, cfg *config.Instance) (Lister, error)

// Watch prints the device list, then prints it again on every mount table
// change until ctx is done. A config reload rebuilds the Lister.
//
//nolint:gocritic // options struct copied on purpose
func Watch(
	ctx context.Context,
	cfg *config.Instance,
	build Builder,
	opts watch.MountOptions,
	out io.Writer,
	asJSON bool,
) error {
	if build == nil {
		return errors.New("builder is nil")
	}

	lister, err := build(ctx, cfg)
	if err != nil {
		return fmt.Errorf("error building device list: %w", err)
	}
	defer func() {
		if lister != nil {
			_ = lister.Close()
		}
	}()

	if err := PrintEntries(out, lister.Entries(ctx), asJSON); err != nil {
		return err
	}

	if opts.Path == "" {
		opts.Path = cfg.Devices().MountTable
	}
	mw := watch.NewMountWatcher(opts)
	if err := mw.Start(); err != nil {
		return fmt.Errorf("error watching mounts: %w", err)
	}
	defer mw.Stop()

	var reloaded <-chan struct{}
	cw, err := watch.WatchConfig(cfg.Path(), cfg)
	if err != nil {
		log.Warn().Err(err).Msg("config changes will not be picked up")
	} else {
		defer cw.Stop()
		reloaded = cw.Reloaded()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-mw.Changes():
			if !ok {
				return nil
			}
		case _, ok := <-reloaded:
			if !ok {
				reloaded = nil
				continue
			}
			helpers.SetDebugLogging(cfg.DebugLogging())
			next, err := build(ctx, cfg)
			if err != nil {
				log.Error().Err(err).Msg("error applying reloaded config")
				continue
			}
			_ = lister.Close()
			lister = next
		}

		if err := PrintEntries(out, lister.Entries(ctx), asJSON); err != nil {
			return err
		}
	}
}
