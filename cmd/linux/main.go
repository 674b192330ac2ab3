//go:build linux

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

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ZaparooProject/zaparoo-eject/pkg/applet"
	"github.com/ZaparooProject/zaparoo-eject/pkg/cli"
	"github.com/ZaparooProject/zaparoo-eject/pkg/config"
	"github.com/ZaparooProject/zaparoo-eject/pkg/watch"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func build(ctx context.Context, cfg *config.Instance) (cli.Lister, error) {
	a, err := applet.New(ctx, cfg, applet.Deps{})
	if err != nil {
		return nil, fmt.Errorf("error setting up devices: %w", err)
	}
	return a, nil
}

func run() error {
	flags := cli.SetupFlags(flag.CommandLine)

	exit, err := flags.Pre(os.Args[1:], os.Stdout)
	if exit {
		return err
	}

	var logWriters []io.Writer
	if *flags.Daemon {
		logWriters = []io.Writer{os.Stderr}
	}

	cfg, err := cli.Setup(config.DefaultDir(), config.LogDir(), config.BaseDefaults, logWriters)
	if err != nil {
		return err
	}

	defer func() {
		if err := recover(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Panic: %s\n", err)
			log.Fatal().Msgf("panic: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *flags.Watch {
		return cli.Watch(ctx, cfg, build, watch.MountOptions{}, os.Stdout, *flags.JSON)
	}

	a, err := applet.New(ctx, cfg, applet.Deps{})
	if err != nil {
		return fmt.Errorf("error setting up devices: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Debug().Err(err).Msg("closing device manager connection")
		}
	}()

	handled, err := flags.Post(ctx, a, os.Stdout)
	if handled {
		return err
	}

	return cli.PrintEntries(os.Stdout, a.Entries(ctx), *flags.JSON)
}
