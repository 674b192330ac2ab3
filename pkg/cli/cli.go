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

// Package cli holds the command-line front-end shared by the cmd binaries.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/ZaparooProject/zaparoo-eject/pkg/config"
	"github.com/ZaparooProject/zaparoo-eject/pkg/helpers"
	"github.com/rs/zerolog/log"
)

type Flags struct {
	JSON    *bool
	Open    *string
	Unmount *string
	Watch   *bool
	Version *bool
	Daemon  *bool
	set     *flag.FlagSet
}

// Actioner runs device actions.
type Actioner interface {
	Open(ctx context.Context, mountpoint string) error
	Unmount(ctx context.Context, mountpoint string) error
}

// SetupFlags defines the CLI flags on fs.
func SetupFlags(fs *flag.FlagSet) *Flags {
	return &Flags{
		set: fs,
		JSON: fs.Bool(
			"json",
			false,
			"print the device list as JSON",
		),
		Open: fs.String(
			"open",
			"",
			"open mount point in the file manager",
		),
		Unmount: fs.String(
			"unmount",
			"",
			"unmount the device at mount point",
		),
		Watch: fs.Bool(
			"watch",
			false,
			"print the device list again whenever mounts change",
		),
		Version: fs.Bool(
			"version",
			false,
			"print version and exit",
		),
		Daemon: fs.Bool(
			"daemon",
			false,
			"also write logs to stderr",
		),
	}
}

func (f *Flags) isFlagPassed(name string) bool {
	found := false
	f.set.Visit(func(fl *flag.Flag) {
		if fl.Name == name {
			found = true
		}
	})
	return found
}

// Pre parses args and handles flags that need no setup. It returns true
// when the program should exit.
func (f *Flags) Pre(args []string, out io.Writer) (bool, error) {
	if err := f.set.Parse(args); err != nil {
		return true, fmt.Errorf("failed to parse flags: %w", err)
	}

	if *f.Version {
		_, _ = fmt.Fprintf(out, "Zaparoo Eject v%s\n", config.AppVersion)
		return true, nil
	}

	return false, nil
}

// Post runs the one-shot action flags. It returns true when an action was
// run.
func (f *Flags) Post(ctx context.Context, a Actioner, out io.Writer) (bool, error) {
	switch {
	case f.isFlagPassed("open") && f.isFlagPassed("unmount"):
		return true, errors.New("open and unmount flags cannot be combined")
	case f.isFlagPassed("open"):
		if *f.Open == "" {
			return true, errors.New("open flag requires a value")
		}
		if err := a.Open(ctx, *f.Open); err != nil {
			log.Error().Err(err).Msg("error opening mount point")
			return true, fmt.Errorf("error opening %s: %w", *f.Open, err)
		}
		_, _ = fmt.Fprintf(out, "Opened %s\n", *f.Open)
		return true, nil
	case f.isFlagPassed("unmount"):
		if *f.Unmount == "" {
			return true, errors.New("unmount flag requires a value")
		}
		if err := a.Unmount(ctx, *f.Unmount); err != nil {
			log.Error().Err(err).Msg("error unmounting")
			return true, fmt.Errorf("error unmounting %s: %w", *f.Unmount, err)
		}
		_, _ = fmt.Fprintf(out, "Unmounted %s\n", *f.Unmount)
		return true, nil
	}
	return false, nil
}

// Setup initializes logging and loads the user config.
//
//nolint:gocritic // config struct copied for immutability
func Setup(configDir, logDir string, defaults config.Values, writers []io.Writer) (*config.Instance, error) {
	err := helpers.InitLogging(logDir, config.LogFile, false, writers...)
	if err != nil {
		return nil, fmt.Errorf("error initializing logging: %w", err)
	}

	cfg, err := config.NewConfig(configDir, defaults)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}

	helpers.SetDebugLogging(cfg.DebugLogging())
	log.Info().Str("version", config.AppVersion).Str("config", cfg.Path()).Msg("zaparoo eject started")

	return cfg, nil
}
