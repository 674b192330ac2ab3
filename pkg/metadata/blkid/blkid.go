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

// Package blkid reads filesystem labels from the blkid utility.
package blkid

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"sync"

	"github.com/ZaparooProject/zaparoo-eject/pkg/helpers/command"
	"github.com/rs/zerolog/log"
)

// DefaultCommand is the blkid executable.
const DefaultCommand = "blkid"

// Snapshot runs blkid once, on first lookup, and answers every lookup from
// that output. Create one per enumeration.
type Snapshot struct {
	exec    command.Executor
	entries map[string]map[string]string
	name    string
	once    sync.Once
}

// NewSnapshot returns a Snapshot that runs name (DefaultCommand when empty)
// through exec.
func NewSnapshot(exec command.Executor, name string) *Snapshot {
	if name == "" {
		name = DefaultCommand
	}
	return &Snapshot{exec: exec, name: name}
}

// LookupLabel returns the LABEL field of the line for device, e.g.
// "/dev/sdb1".
func (s *Snapshot) LookupLabel(ctx context.Context, device string) (string, bool) {
	s.once.Do(func() { s.load(ctx) })

	fields, ok := s.entries[device]
	if !ok {
		return "", false
	}
	label, ok := fields["LABEL"]
	if !ok || label == "" {
		return "", false
	}
	return label, true
}

func (s *Snapshot) load(ctx context.Context) {
	out, err := s.exec.Output(ctx, s.name)
	if err != nil {
		// blkid exits 2 when it finds nothing, output is still usable
		log.Debug().Err(err).Str("cmd", s.name).Msg("blkid lookup failed")
	}
	s.entries = Parse(out)
}

// Parse reads blkid's default output format:
//
//	/dev/sdb1: LABEL="USB DRIVE" UUID="3A1F-22B0" TYPE="vfat"
//
// Lines without a device prefix are ignored.
func Parse(out []byte) map[string]map[string]string {
	entries := make(map[string]map[string]string)

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		device, rest, ok := strings.Cut(line, ": ")
		if !ok {
			// a device with no tags prints as "/dev/sdb1:"
			device, rest, ok = strings.Cut(line, ":")
			if !ok || strings.TrimSpace(rest) != "" {
				continue
			}
		}
		device = strings.TrimSpace(device)
		if device == "" {
			continue
		}
		entries[device] = parseFields(rest)
	}

	return entries
}

// parseFields splits KEY="value" pairs. Quoted values may contain spaces and
// backslash escaped quotes or backslashes.
func parseFields(s string) map[string]string {
	fields := make(map[string]string)

	i := 0
	for i < len(s) {
		for i < len(s) && s[i] == ' ' {
			i++
		}
		eq := strings.IndexByte(s[i:], '=')
		if eq < 0 {
			break
		}
		key := s[i : i+eq]
		i += eq + 1

		var value strings.Builder
		if i < len(s) && s[i] == '"' {
			i++
			for i < len(s) && s[i] != '"' {
				if s[i] == '\\' && i+1 < len(s) {
					i++
				}
				value.WriteByte(s[i])
				i++
			}
			i++ // closing quote
		} else {
			for i < len(s) && s[i] != ' ' {
				value.WriteByte(s[i])
				i++
			}
		}

		if key = strings.TrimSpace(key); key != "" && !strings.ContainsAny(key, " \"") {
			fields[key] = value.String()
		}
	}

	return fields
}
