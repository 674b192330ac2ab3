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

// Package devices decides which mounted filesystems are removable media and
// how they should be labelled.
package devices

import (
	"context"
	"strings"
)

// Kind is the broad category of a removable device.
type Kind string

const (
	KindUSB     Kind = "usb"
	KindDisk    Kind = "disk"
	KindNetwork Kind = "network"
)

// ParseKind maps a config value to a Kind. Unknown values fall back to
// KindUSB.
func ParseKind(s string) Kind {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindDisk:
		return KindDisk
	case KindNetwork:
		return KindNetwork
	default:
		return KindUSB
	}
}

// Descriptor is a mounted removable device ready for display.
type Descriptor struct {
	Kind       Kind   `json:"kind"`
	Label      string `json:"label"`
	MountPoint string `json:"mountpoint"`
	// Block is the device short name, e.g. "sdb1". Empty for network mounts.
	Block   string `json:"block,omitempty"`
	Mounted bool   `json:"mounted"`
}

// LabelSource looks up a filesystem label for a device.
type LabelSource interface {
	// LookupLabel returns the label for device and whether one was found.
	LookupLabel(ctx context.Context, device string) (string, bool)
}

// Metadata is a device manager database (UDisks2, udev) queried by device
// short name, e.g. "sdb1".
type Metadata interface {
	LabelSource

	// LookupBus returns the connection bus, e.g. "usb" or "ata".
	LookupBus(ctx context.Context, device string) (string, bool)
}

// KindForBus maps a device manager bus to a Kind.
func KindForBus(bus string) Kind {
	if strings.EqualFold(bus, "usb") {
		return KindUSB
	}
	return KindDisk
}
