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

// Package mounts reads the operating system mount table.
package mounts

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultTablePath is the kernel mount table of the calling process.
	DefaultTablePath = "/proc/mounts"

	// DefaultHostMirrorPrefix is where Flatpak re-exposes host mounts inside
	// the sandbox. Entries below it duplicate mounts already listed.
	DefaultHostMirrorPrefix = "/run/host/"

	// MaxLineLength bounds a single mount table line. Overlay mounts with
	// long lowerdir lists can exceed bufio.Scanner's default token size.
	MaxLineLength = 1 << 20
)

// ErrMountTableUnreadable is returned when the mount table cannot be opened
// or read.
var ErrMountTableUnreadable = errors.New("mount table unreadable")

// Record is a single mounted filesystem. Records are a point-in-time
// snapshot and are rebuilt on every Enumerate call.
type Record struct {
	// Source is the block device path or special source, e.g. "/dev/sdb1"
	// or "tmpfs".
	Source string

	// Target is the mount point with kernel octal escapes decoded.
	Target string

	// FSType is the filesystem type. Empty when the line had no third field.
	FSType string

	// Options is the raw comma separated mount options.
	Options string
}

// Source produces raw mount table records.
type Source interface {
	Records(ctx context.Context) ([]Record, error)
}

// Enumerator reads a Source and drops entries that only mirror host mounts.
type Enumerator struct {
	source           Source
	hostMirrorPrefix string
}

// NewEnumerator returns an Enumerator over source. An empty hostMirrorPrefix
// disables host mirror suppression.
func NewEnumerator(source Source, hostMirrorPrefix string) *Enumerator {
	return &Enumerator{
		source:           source,
		hostMirrorPrefix: hostMirrorPrefix,
	}
}

// Enumerate returns the current mount table. The only error path is an
// unreadable table, which wraps ErrMountTableUnreadable.
func (e *Enumerator) Enumerate(ctx context.Context) ([]Record, error) {
	records, err := e.source.Records(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]Record, 0, len(records))
	for _, r := range records {
		if IsHostMirror(r.Target, e.hostMirrorPrefix) {
			log.Debug().
				Str("source", r.Source).
				Str("target", r.Target).
				Msg("skipping host mirror mount")
			continue
		}
		result = append(result, r)
	}

	return result, nil
}

// IsHostMirror reports whether target lies under the sandbox host mirror
// prefix. The prefix directory itself also counts.
func IsHostMirror(target, prefix string) bool {
	if prefix == "" {
		return false
	}
	dir := strings.TrimSuffix(prefix, "/")
	return target == dir || strings.HasPrefix(target, dir+"/")
}

// Parse reads mount table lines in the /proc/mounts format. Lines with fewer
// than two fields, or longer than MaxLineLength, are skipped.
func Parse(r io.Reader) ([]Record, error) {
	var records []Record

	reader := bufio.NewReader(r)
	lineNo := 0
	for {
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %w", ErrMountTableUnreadable, err)
		}
		if line == "" && err != nil {
			break
		}
		lineNo++

		if len(line) > MaxLineLength {
			log.Debug().Int("line", lineNo).Int("length", len(line)).Msg("skipping oversized mount table line")
		} else if record, ok := parseLine(line); ok {
			records = append(records, record)
		} else if strings.TrimSpace(line) != "" {
			log.Debug().Int("line", lineNo).Msg("skipping malformed mount table line")
		}

		if err != nil {
			break
		}
	}

	return records, nil
}

func parseLine(line string) (Record, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return Record{}, false
	}

	record := Record{
		Source: Unescape(fields[0]),
		Target: Unescape(fields[1]),
	}
	if len(fields) > 2 {
		record.FSType = fields[2]
	}
	if len(fields) > 3 {
		record.Options = fields[3]
	}
	return record, true
}

// Unescape decodes the kernel's three digit octal escapes (\040 for space,
// \011 tab, \012 newline, \134 backslash). Anything else passes through.
func Unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) && isOctalEscape(s[i+1:i+4]) {
			b.WriteByte((s[i+1]-'0')<<6 | (s[i+2]-'0')<<3 | (s[i+3] - '0'))
			i += 3
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isOctalEscape(s string) bool {
	if len(s) != 3 {
		return false
	}
	// first digit is limited to 0-3 so the value fits in a byte
	if s[0] < '0' || s[0] > '3' {
		return false
	}
	for i := 1; i < 3; i++ {
		if s[i] < '0' || s[i] > '7' {
			return false
		}
	}
	return true
}
