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

// Package actions runs the unmount and open commands for a mount point,
// optionally through the Flatpak host broker.
package actions

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ZaparooProject/zaparoo-eject/pkg/helpers/command"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const (
	DefaultUnmountCommand = "umount"
	DefaultOpenCommand    = "xdg-open"
	DefaultBroker         = "flatpak-spawn"
	DefaultTimeout        = 30 * time.Second

	// flatpakInfoPath exists inside every Flatpak sandbox.
	flatpakInfoPath = "/.flatpak-info"
	flatpakIDEnv    = "FLATPAK_ID"
)

// Sandbox selects whether commands go through the host broker.
type Sandbox string

const (
	// SandboxAuto uses the broker when running inside Flatpak.
	SandboxAuto Sandbox = "auto"
	// SandboxHost always uses the broker.
	SandboxHost Sandbox = "host"
	// SandboxNone never uses the broker.
	SandboxNone Sandbox = "none"
)

var (
	ErrInvalidMountPoint = errors.New("invalid mount point")
	ErrActionFailed      = errors.New("action failed")
	ErrActionTimeout     = errors.New("action timed out")
)

// Options configures a Dispatcher. Zero values take the defaults above.
type Options struct {
	UnmountCommand string
	OpenCommand    string
	Broker         string
	Timeout        time.Duration
	// UseBroker runs "<Broker> --host <cmd> <mountpoint>".
	UseBroker bool
}

// Dispatcher runs actions against mount points.
type Dispatcher struct {
	exec command.Executor
	opts Options
}

//nolint:gocritic // options struct copied on purpose
func NewDispatcher(exec command.Executor, opts Options) *Dispatcher {
	if opts.UnmountCommand == "" {
		opts.UnmountCommand = DefaultUnmountCommand
	}
	if opts.OpenCommand == "" {
		opts.OpenCommand = DefaultOpenCommand
	}
	if opts.Broker == "" {
		opts.Broker = DefaultBroker
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Dispatcher{exec: exec, opts: opts}
}

// InFlatpak reports whether the process runs inside a Flatpak sandbox.
// getenv is normally os.Getenv.
func InFlatpak(fs afero.Fs, getenv func(string) string) bool {
	if getenv != nil && getenv(flatpakIDEnv) != "" {
		return true
	}
	_, err := fs.Stat(flatpakInfoPath)
	return err == nil
}

// UseBroker resolves a Sandbox mode to a broker decision.
func UseBroker(mode Sandbox, fs afero.Fs, getenv func(string) string) bool {
	switch mode {
	case SandboxHost:
		return true
	case SandboxNone:
		return false
	default:
		return InFlatpak(fs, getenv)
	}
}

// Argv returns the program and arguments used to run cmd on mountpoint.
func (d *Dispatcher) Argv(cmd, mountpoint string) (string, []string) {
	if d.opts.UseBroker {
		return d.opts.Broker, []string{"--host", cmd, mountpoint}
	}
	return cmd, []string{mountpoint}
}

// Unmount runs the unmount command and waits for it, up to the configured
// timeout.
func (d *Dispatcher) Unmount(ctx context.Context, mountpoint string) error {
	if err := validMountPoint(mountpoint); err != nil {
		return err
	}

	name, args := d.Argv(d.opts.UnmountCommand, mountpoint)

	ctx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	err := d.exec.Run(ctx, name, args...)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			log.Error().
				Str("mountpoint", mountpoint).
				Dur("timeout", d.opts.Timeout).
				Msg("unmount timed out")
			return fmt.Errorf("%w: unmount %s after %s", ErrActionTimeout, mountpoint, d.opts.Timeout)
		}
		log.Error().Err(err).Str("cmd", name).Str("mountpoint", mountpoint).Msg("unmount failed")
		return fmt.Errorf("%w: unmount %s: %w", ErrActionFailed, mountpoint, err)
	}

	log.Info().Str("mountpoint", mountpoint).Msg("unmounted")
	return nil
}

// Open launches the file manager on mountpoint without waiting for it to
// exit.
func (d *Dispatcher) Open(ctx context.Context, mountpoint string) error {
	if err := validMountPoint(mountpoint); err != nil {
		return err
	}

	name, args := d.Argv(d.opts.OpenCommand, mountpoint)

	// the file manager must survive the caller's context
	if err := d.exec.Start(context.WithoutCancel(ctx), name, args...); err != nil {
		log.Error().Err(err).Str("cmd", name).Str("mountpoint", mountpoint).Msg("open failed")
		return fmt.Errorf("%w: open %s: %w", ErrActionFailed, mountpoint, err)
	}

	log.Debug().Str("cmd", name).Str("mountpoint", mountpoint).Msg("opened mount point")
	return nil
}

// validMountPoint rejects empty and relative paths, which also keeps a
// leading "-" from reaching the command as an option.
func validMountPoint(mountpoint string) error {
	if mountpoint == "" || !filepath.IsAbs(mountpoint) {
		return fmt.Errorf("%w: %q", ErrInvalidMountPoint, mountpoint)
	}
	return nil
}
