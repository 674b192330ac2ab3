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

// Package applet wires mount enumeration, classification and actions into
// the operations a panel front-end needs.
package applet

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ZaparooProject/zaparoo-eject/pkg/actions"
	"github.com/ZaparooProject/zaparoo-eject/pkg/config"
	"github.com/ZaparooProject/zaparoo-eject/pkg/devices"
	"github.com/ZaparooProject/zaparoo-eject/pkg/helpers/command"
	"github.com/ZaparooProject/zaparoo-eject/pkg/metadata"
	"github.com/ZaparooProject/zaparoo-eject/pkg/metadata/blkid"
	"github.com/ZaparooProject/zaparoo-eject/pkg/metadata/udevdb"
	"github.com/ZaparooProject/zaparoo-eject/pkg/metadata/udisks"
	"github.com/ZaparooProject/zaparoo-eject/pkg/mounts"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const (
	// NoDevicesText is shown when nothing removable is mounted.
	NoDevicesText = "No devices mounted"
	// EjectIcon is the icon name used for the panel button and eject buttons.
	EjectIcon = "media-eject-symbolic"
)

// MetadataService is a device manager connection that must be closed.
type MetadataService interface {
	devices.Metadata
	Close() error
}

// Deps are the OS facing dependencies of an Applet. Zero values use the
// real system.
type Deps struct {
	Fs     afero.Fs
	Exec   command.Executor
	Getenv func(string) string
	// ConnectUDisks dials the device manager service.
	ConnectUDisks func(ctx context.Context) (MetadataService, error)
	// Source overrides the configured mount table source.
	Source mounts.Source
}

// Entry is one row of the device list.
type Entry struct {
	Label string `json:"label"`
	// Open is the mount point opened when the label is pressed. Empty for
	// the placeholder row.
	Open string `json:"open,omitempty"`
	// Unmount is the mount point unmounted by the eject button. Empty for
	// the placeholder row.
	Unmount string       `json:"unmount,omitempty"`
	Kind    devices.Kind `json:"kind,omitempty"`
	// Placeholder marks the "No devices mounted" row.
	Placeholder bool `json:"placeholder,omitempty"`
}

type Applet struct {
	enumerator *mounts.Enumerator
	classifier *devices.Classifier
	dispatcher *actions.Dispatcher
	services   []MetadataService
}

// New builds an Applet from the current config values. Device manager
// connections that fail are skipped.
//
//nolint:gocritic // deps struct copied on purpose
func New(ctx context.Context, cfg *config.Instance, deps Deps) (*Applet, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if deps.Fs == nil {
		deps.Fs = afero.NewOsFs()
	}
	if deps.Exec == nil {
		deps.Exec = &command.RealExecutor{}
	}
	if deps.Getenv == nil {
		deps.Getenv = os.Getenv
	}
	if deps.ConnectUDisks == nil {
		deps.ConnectUDisks = func(ctx context.Context) (MetadataService, error) {
			c, err := udisks.Connect(ctx)
			if err != nil {
				return nil, err
			}
			return c, nil
		}
	}

	dc := cfg.Devices()
	ac := cfg.Actions()

	source := deps.Source
	if source == nil {
		var err error
		source, err = newSource(deps.Fs, dc)
		if err != nil {
			return nil, err
		}
	}

	a := &Applet{
		enumerator: mounts.NewEnumerator(source, dc.HostMirrorPrefix),
	}

	var chain metadata.Chain
	for _, name := range dc.Metadata {
		switch name {
		case config.MetadataUDisks:
			svc, err := deps.ConnectUDisks(ctx)
			if err != nil {
				log.Debug().Err(err).Msg("device manager service unavailable")
				continue
			}
			a.services = append(a.services, svc)
			chain = append(chain, svc)
		case config.MetadataUdev:
			chain = append(chain, udevdb.New(deps.Fs))
		default:
			log.Warn().Str("metadata", name).Msg("unknown metadata source")
		}
	}

	opts := devices.Options{
		DefaultKind:    devices.ParseKind(dc.DefaultKind),
		MediaDirs:      dc.MediaDirs,
		IncludeNetwork: dc.IncludeNetwork,
	}
	if len(chain) > 0 {
		opts.Metadata = chain
	}
	if dc.Blkid {
		exec := deps.Exec
		opts.LabelUtility = func() devices.LabelSource {
			return blkid.NewSnapshot(exec, blkid.DefaultCommand)
		}
	}
	a.classifier = devices.NewClassifier(deps.Fs, opts)

	useBroker := actions.UseBroker(actions.Sandbox(ac.Sandbox), deps.Fs, deps.Getenv)
	log.Debug().Bool("broker", useBroker).Str("sandbox", ac.Sandbox).Msg("action dispatch")
	a.dispatcher = actions.NewDispatcher(deps.Exec, actions.Options{
		UnmountCommand: ac.UnmountCommand,
		OpenCommand:    ac.OpenCommand,
		Broker:         ac.Broker,
		Timeout:        cfg.ActionTimeout(),
		UseBroker:      useBroker,
	})

	return a, nil
}

//nolint:gocritic // devices config copied by accessor
func newSource(fs afero.Fs, dc config.Devices) (mounts.Source, error) {
	switch dc.MountSource {
	case config.MountSourceProc, "":
		return mounts.NewProcSource(fs, dc.MountTable), nil
	case config.MountSourceGopsutil:
		return mounts.NewPartitionsSource(), nil
	default:
		return nil, fmt.Errorf("unknown mount source: %s", dc.MountSource)
	}
}

// Close releases device manager connections.
func (a *Applet) Close() error {
	var errs []error
	for _, svc := range a.services {
		if err := svc.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.services = nil
	return errors.Join(errs...)
}

// Devices lists mounted removable devices in mount table order.
func (a *Applet) Devices(ctx context.Context) ([]devices.Descriptor, error) {
	records, err := a.enumerator.Enumerate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate mounts: %w", err)
	}
	return a.classifier.ClassifyAll(ctx, records), nil
}

// Entries returns the rows to display. A mount table error is logged and
// shown as the empty state.
func (a *Applet) Entries(ctx context.Context) []Entry {
	devs, err := a.Devices(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("listing devices")
	}

	if len(devs) == 0 {
		return []Entry{{Label: NoDevicesText, Placeholder: true}}
	}

	entries := make([]Entry, 0, len(devs))
	for _, d := range devs {
		entries = append(entries, Entry{
			Label:   d.Label,
			Open:    d.MountPoint,
			Unmount: d.MountPoint,
			Kind:    d.Kind,
		})
	}
	return entries
}

// Unmount ejects the device mounted at mountpoint.
func (a *Applet) Unmount(ctx context.Context, mountpoint string) error {
	return a.dispatcher.Unmount(ctx, mountpoint)
}

// Open shows mountpoint in the file manager.
func (a *Applet) Open(ctx context.Context, mountpoint string) error {
	return a.dispatcher.Open(ctx, mountpoint)
}
