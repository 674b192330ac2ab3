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

// Package metadata combines device manager databases.
package metadata

import (
	"context"

	"github.com/ZaparooProject/zaparoo-eject/pkg/devices"
)

// Chain asks each source in order and returns the first answer.
type Chain []devices.Metadata

func (c Chain) LookupLabel(ctx context.Context, device string) (string, bool) {
	for _, src := range c {
		if label, ok := src.LookupLabel(ctx, device); ok && label != "" {
			return label, true
		}
	}
	return "", false
}

func (c Chain) LookupBus(ctx context.Context, device string) (string, bool) {
	for _, src := range c {
		if bus, ok := src.LookupBus(ctx, device); ok && bus != "" {
			return bus, true
		}
	}
	return "", false
}
