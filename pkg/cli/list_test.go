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
	"testing"

	"github.com/ZaparooProject/zaparoo-eject/pkg/applet"
	"github.com/ZaparooProject/zaparoo-eject/pkg/devices"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintEntries(t *testing.T) {
	t.Parallel()

	entries := []applet.Entry{
		{
			Label:   "BACKUP",
			Open:    "/run/media/user/BACKUP",
			Unmount: "/run/media/user/BACKUP",
			Kind:    devices.KindUSB,
		},
		{
			Label:   "stick one",
			Open:    "/mnt/stick one",
			Unmount: "/mnt/stick one",
			Kind:    devices.KindDisk,
		},
	}

	var out bytes.Buffer
	require.NoError(t, PrintEntries(&out, entries, false))
	assert.Equal(t,
		"usb\tBACKUP\t/run/media/user/BACKUP\ndisk\tstick one\t/mnt/stick one\n",
		out.String())
}

func TestPrintEntries_Placeholder(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	require.NoError(t, PrintEntries(&out, []applet.Entry{
		{Label: applet.NoDevicesText, Placeholder: true},
	}, false))
	assert.Equal(t, "No devices mounted\n", out.String())
}

func TestPrintEntries_JSON(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	require.NoError(t, PrintEntries(&out, []applet.Entry{
		{
			Label:   "BACKUP",
			Open:    "/run/media/user/BACKUP",
			Unmount: "/run/media/user/BACKUP",
			Kind:    devices.KindUSB,
		},
	}, true))
	assert.JSONEq(t,
		`[{"label":"BACKUP","open":"/run/media/user/BACKUP",`+
			`"unmount":"/run/media/user/BACKUP","kind":"usb"}]`,
		out.String())
}
