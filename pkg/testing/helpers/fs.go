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

// Package helpers builds in-memory host filesystems for tests.
package helpers

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// FSHelper provides utilities for filesystem mocking in tests
type FSHelper struct {
	Fs afero.Fs
}

// NewMemoryFS creates a new in-memory filesystem for testing
func NewMemoryFS() *FSHelper {
	return &FSHelper{
		Fs: afero.NewMemMapFs(),
	}
}

func (h *FSHelper) writeFile(path string, data []byte) error {
	if err := h.Fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for file %s: %w", path, err)
	}
	if err := afero.WriteFile(h.Fs, path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}
	return nil
}

// CreateMountTable writes a mount table, one line per entry.
func (h *FSHelper) CreateMountTable(path string, lines ...string) error {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return h.writeFile(path, []byte(b.String()))
}

// CreateSysBlock creates /sys/block/<disk> with a removable attribute.
// An empty removable value leaves the attribute out.
func (h *FSHelper) CreateSysBlock(disk, removable string) error {
	dir := filepath.Join("/sys/block", disk)
	if err := h.Fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create sysfs dir %s: %w", dir, err)
	}
	if removable == "" {
		return nil
	}
	return h.writeFile(filepath.Join(dir, "removable"), []byte(removable+"\n"))
}

// CreateUdevEntry writes the sysfs dev number and udev database record for
// a block device.
func (h *FSHelper) CreateUdevEntry(device, devNum string, props map[string]string) error {
	err := h.writeFile(filepath.Join("/sys/class/block", device, "dev"), []byte(devNum+"\n"))
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString("E:")
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(props[k])
		b.WriteByte('\n')
	}
	return h.writeFile(filepath.Join("/run/udev/data", "b"+devNum), []byte(b.String()))
}

// CreateDirectoryStructure creates a directory tree. String and []byte
// values are files, maps are directories and nil is an empty directory.
func (h *FSHelper) CreateDirectoryStructure(structure map[string]any) error {
	return h.createStructureRecursive("", structure)
}

func (h *FSHelper) createStructureRecursive(basePath string, structure map[string]any) error {
	for name, content := range structure {
		fullPath := filepath.Join(basePath, name)

		switch v := content.(type) {
		case string:
			if err := h.writeFile(fullPath, []byte(v)); err != nil {
				return err
			}
		case []byte:
			if err := h.writeFile(fullPath, v); err != nil {
				return err
			}
		case map[string]any:
			if err := h.Fs.MkdirAll(fullPath, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", fullPath, err)
			}
			if err := h.createStructureRecursive(fullPath, v); err != nil {
				return err
			}
		case nil:
			if err := h.Fs.MkdirAll(fullPath, 0o755); err != nil {
				return fmt.Errorf("failed to create empty directory %s: %w", fullPath, err)
			}
		}
	}
	return nil
}

// FileExists checks if a file exists
func (h *FSHelper) FileExists(path string) bool {
	exists, err := afero.Exists(h.Fs, path)
	return err == nil && exists
}
