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

package udevdb

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sdb1Record = `S:disk/by-uuid/3A1F-22B0
S:disk/by-label/My\x20Stick
W:12
I:1234567
E:ID_FS_LABEL=My_Stick
E:ID_FS_LABEL_ENC=My\x20Stick
E:ID_FS_TYPE=vfat
E:ID_BUS=usb
E:ID_MODEL=Cruzer
G:systemd
`

func newDatabase(t *testing.T) *Database {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/sys/class/block/sdb1/dev", []byte("8:17\n"), 0o444))
	require.NoError(t, afero.WriteFile(fs, "/run/udev/data/b8:17", []byte(sdb1Record), 0o444))

	require.NoError(t, afero.WriteFile(fs, "/sys/class/block/sda1/dev", []byte("8:1\n"), 0o444))
	require.NoError(t, afero.WriteFile(fs, "/run/udev/data/b8:1",
		[]byte("E:ID_FS_LABEL=system\nE:ID_BUS=ata\n"), 0o444))

	require.NoError(t, afero.WriteFile(fs, "/sys/class/block/sdc1/dev", []byte("8:33\n"), 0o444))
	require.NoError(t, afero.WriteFile(fs, "/run/udev/data/b8:33", []byte("E:ID_FS_TYPE=ext4\n"), 0o444))

	require.NoError(t, afero.WriteFile(fs, "/sys/class/block/sdd1/dev", []byte("8:49\n"), 0o444))

	return New(fs)
}

func TestDatabase_LookupLabel(t *testing.T) {
	t.Parallel()

	db := newDatabase(t)
	ctx := context.Background()

	label, ok := db.LookupLabel(ctx, "sdb1")
	assert.True(t, ok)
	assert.Equal(t, "My Stick", label, "encoded label preferred")

	label, ok = db.LookupLabel(ctx, "sda1")
	assert.True(t, ok)
	assert.Equal(t, "system", label)

	_, ok = db.LookupLabel(ctx, "sdc1")
	assert.False(t, ok, "record without label")

	_, ok = db.LookupLabel(ctx, "sdd1")
	assert.False(t, ok, "missing database record")

	_, ok = db.LookupLabel(ctx, "sdz1")
	assert.False(t, ok, "unknown device")
}

func TestDatabase_LookupBus(t *testing.T) {
	t.Parallel()

	db := newDatabase(t)
	ctx := context.Background()

	bus, ok := db.LookupBus(ctx, "sdb1")
	assert.True(t, ok)
	assert.Equal(t, "usb", bus)

	bus, ok = db.LookupBus(ctx, "sda1")
	assert.True(t, ok)
	assert.Equal(t, "ata", bus)

	_, ok = db.LookupBus(ctx, "sdc1")
	assert.False(t, ok)
}

func TestDatabase_Properties_RejectsTraversal(t *testing.T) {
	t.Parallel()

	db := newDatabase(t)
	assert.Empty(t, db.Properties("../sdb1"))
	assert.Empty(t, db.Properties(""))
}

func TestDecodeEnc(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "My Stick", DecodeEnc(`My\x20Stick`))
	assert.Equal(t, "a/b", DecodeEnc(`a\x2fb`))
	assert.Equal(t, `bad\xZZ`, DecodeEnc(`bad\xZZ`))
	assert.Equal(t, `tail\x2`, DecodeEnc(`tail\x2`))
	assert.Equal(t, "plain", DecodeEnc("plain"))
}
