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

	"github.com/spf13/afero"
)

// ProcSource reads a /proc/mounts style file.
type ProcSource struct {
	fs   afero.Fs
	path string
}

// NewProcSource returns a ProcSource reading path from fs. An empty path
// means DefaultTablePath.
func NewProcSource(fs afero.Fs, path string) *ProcSource {
	if path == "" {
		path = DefaultTablePath
	}
	return &ProcSource{fs: fs, path: path}
}

// Path returns the mount table file this source reads.
func (s *ProcSource) Path() string {
	return s.path
}

func (s *ProcSource) Records(_ context.Context) ([]Record, error) {
	f, err := s.fs.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %w", ErrMountTableUnreadable, s.path, err)
	}
	defer func() { _ = f.Close() }()

	return Parse(f)
}
