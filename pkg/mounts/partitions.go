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

package mounts

import (
	"context"
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v4/disk"
)

// PartitionsSource reads the mount table through gopsutil, which resolves
// the host proc root (HOST_PROC) and prefers mountinfo when available.
type PartitionsSource struct {
	partitions func(ctx context.Context, all bool) ([]disk.PartitionStat, error)
}

// NewPartitionsSource returns a PartitionsSource backed by gopsutil.
func NewPartitionsSource() *PartitionsSource {
	return &PartitionsSource{partitions: disk.PartitionsWithContext}
}

func (s *PartitionsSource) Records(ctx context.Context) ([]Record, error) {
	parts, err := s.partitions(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMountTableUnreadable, err)
	}

	records := make([]Record, 0, len(parts))
	for _, p := range parts {
		if p.Device == "" || p.Mountpoint == "" {
			continue
		}
		records = append(records, Record{
			Source:  Unescape(p.Device),
			Target:  Unescape(p.Mountpoint),
			FSType:  p.Fstype,
			Options: strings.Join(p.Opts, ","),
		})
	}
	return records, nil
}
