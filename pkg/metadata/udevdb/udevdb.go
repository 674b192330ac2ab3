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

// Package udevdb reads device properties from the udev database files
// under /run/udev/data.
package udevdb

import (
	"bufio"
	"bytes"
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const (
	DefaultSysClassBlock = "/sys/class/block"
	DefaultDataDir       = "/run/udev/data"
)

// Database looks up udev properties of block devices by short name.
type Database struct {
	fs            afero.Fs
	sysClassBlock string
	dataDir       string
}

// New returns a Database reading through fs from the default locations.
func New(fs afero.Fs) *Database {
	return &Database{
		fs:            fs,
		sysClassBlock: DefaultSysClassBlock,
		dataDir:       DefaultDataDir,
	}
}

// LookupLabel prefers the encoded label, which keeps characters udev
// replaces with "_" in ID_FS_LABEL.
func (d *Database) LookupLabel(_ context.Context, device string) (string, bool) {
	props := d.Properties(device)
	if enc := props["ID_FS_LABEL_ENC"]; enc != "" {
		if label := strings.TrimSpace(DecodeEnc(enc)); label != "" {
			return label, true
		}
	}
	if label := strings.TrimSpace(props["ID_FS_LABEL"]); label != "" {
		return label, true
	}
	return "", false
}

func (d *Database) LookupBus(_ context.Context, device string) (string, bool) {
	bus := d.Properties(device)["ID_BUS"]
	return bus, bus != ""
}

// Properties returns the E: entries of the device's udev database record.
// A missing record yields an empty map.
func (d *Database) Properties(device string) map[string]string {
	props := make(map[string]string)
	if device == "" || strings.Contains(device, "..") {
		return props
	}

	devPath := filepath.Join(d.sysClassBlock, device, "dev")
	devNum, err := afero.ReadFile(d.fs, devPath)
	if err != nil {
		log.Debug().Err(err).Str("device", device).Msg("no sysfs dev number")
		return props
	}

	dataPath := filepath.Join(d.dataDir, "b"+strings.TrimSpace(string(devNum)))
	data, err := afero.ReadFile(d.fs, dataPath)
	if err != nil {
		log.Debug().Err(err).Str("path", dataPath).Msg("no udev database entry")
		return props
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		entry, ok := strings.CutPrefix(scanner.Text(), "E:")
		if !ok {
			continue
		}
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		props[key] = value
	}

	return props
}

// DecodeEnc reverses udev's \xNN encoding used by *_ENC properties.
func DecodeEnc(s string) string {
	if !strings.Contains(s, `\x`) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) && s[i+1] == 'x' {
			if v, err := strconv.ParseUint(s[i+2:i+4], 16, 8); err == nil {
				b.WriteByte(byte(v))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
