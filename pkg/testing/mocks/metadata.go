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

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockMetadata is a testify mock for devices.Metadata.
//
// Example:
//
//	md := &MockMetadata{}
//	md.On("LookupLabel", mock.Anything, "sdb1").Return("BACKUP", true)
//	md.On("LookupBus", mock.Anything, "sdb1").Return("usb", true)
type MockMetadata struct {
	mock.Mock
}

func (m *MockMetadata) LookupLabel(ctx context.Context, device string) (string, bool) {
	args := m.Called(ctx, device)
	return args.String(0), args.Bool(1)
}

func (m *MockMetadata) LookupBus(ctx context.Context, device string) (string, bool) {
	args := m.Called(ctx, device)
	return args.String(0), args.Bool(1)
}

// MockLabelSource is a testify mock for devices.LabelSource, used in place
// of the blkid snapshot.
type MockLabelSource struct {
	mock.Mock
}

func (m *MockLabelSource) LookupLabel(ctx context.Context, device string) (string, bool) {
	args := m.Called(ctx, device)
	return args.String(0), args.Bool(1)
}
