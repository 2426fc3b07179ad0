// Drivekeeper Core
// Copyright (c) 2026 The Drivekeeper Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Drivekeeper Core.
//
// Drivekeeper Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Drivekeeper Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Drivekeeper Core.  If not, see <http://www.gnu.org/licenses/>.

package mocks

import (
	"context"

	"github.com/drivekeeper/drivekeeper-core/pkg/drives"
	"github.com/stretchr/testify/mock"
)

// MockProbe is a testify mock for drives.Probe.
//
// Example:
//
//	probe := &mocks.MockProbe{}
//	probe.On("Name").Return("media")
//	probe.On("Probe", mock.Anything, mock.Anything, mock.Anything).Return(nil)
type MockProbe struct {
	mock.Mock
}

func (m *MockProbe) Name() string {
	args := m.Called()
	return args.String(0)
}

// Probe mocks one probe run. Set state through Run() on the expectation.
func (m *MockProbe) Probe(ctx context.Context, target drives.ProbeTarget, state *drives.ProbeState) error {
	args := m.Called(ctx, target, state)
	//nolint:wrapcheck // Mock returns are already wrapped by caller
	return args.Error(0)
}

// ProbeFunc adapts a function to drives.Probe for tests that need a probe
// to block or observe its context.
type ProbeFunc struct {
	Fn       func(ctx context.Context, target drives.ProbeTarget, state *drives.ProbeState) error
	ProbeName string
}

func (p ProbeFunc) Name() string {
	if p.ProbeName == "" {
		return "func"
	}
	return p.ProbeName
}

func (p ProbeFunc) Probe(ctx context.Context, target drives.ProbeTarget, state *drives.ProbeState) error {
	return p.Fn(ctx, target, state)
}
