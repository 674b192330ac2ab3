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

//go:build !deadlock

// Package syncutil picks the mutex types guarding shared state. The default
// build uses sync; -tags=deadlock uses go-deadlock instead.
package syncutil

import "sync" //nolint:forbidigo // the one place plain sync mutexes are allowed

type (
	// Mutex guards watcher state such as the last rescan time.
	Mutex = sync.Mutex
	// RWMutex guards the live config values.
	RWMutex = sync.RWMutex
)
