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
	"encoding/json"
	"fmt"
	"io"

	"github.com/ZaparooProject/zaparoo-eject/pkg/applet"
)

// PrintEntries writes the device list, one device per line, or as a JSON
// array.
func PrintEntries(w io.Writer, entries []applet.Entry, asJSON bool) error {
	if asJSON {
		data, err := json.Marshal(entries)
		if err != nil {
			return fmt.Errorf("failed to encode devices: %w", err)
		}
		if _, err := fmt.Fprintln(w, string(data)); err != nil {
			return fmt.Errorf("failed to write devices: %w", err)
		}
		return nil
	}

	for _, e := range entries {
		var err error
		if e.Placeholder {
			_, err = fmt.Fprintln(w, e.Label)
		} else {
			_, err = fmt.Fprintf(w, "%s\t%s\t%s\n", e.Kind, e.Label, e.Open)
		}
		if err != nil {
			return fmt.Errorf("failed to write devices: %w", err)
		}
	}
	return nil
}
