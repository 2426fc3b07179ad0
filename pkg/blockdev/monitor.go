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

package blockdev

import (
	"errors"
	"sync"
)

const (
	SourceAuto     = "auto"
	SourceNetlink  = "netlink"
	SourceFsnotify = "fsnotify"
	SourceNone     = "none"

	DefaultDevDir = "/dev"
)

// ErrUnsupported is returned when no uevent source works on this platform.
var ErrUnsupported = errors.New("uevent monitoring not supported on this platform")

// Monitor delivers block device uevents in the order the kernel reported them.
type Monitor interface {
	// Events returns the uevent stream. It is closed by Stop.
	Events() <-chan Uevent

	// Start begins monitoring.
	Start() error

	// Stop terminates monitoring and closes the Events channel.
	Stop()
}

// MonitorOptions select and configure a uevent source.
type MonitorOptions struct {
	Sysfs  *Sysfs
	Source string
	DevDir string
}

// nopMonitor never reports anything. Used when monitoring is switched off,
// e.g. for one-shot inventory listings.
type nopMonitor struct {
	events   chan Uevent
	stopOnce sync.Once
}

func newNopMonitor() *nopMonitor {
	return &nopMonitor{events: make(chan Uevent)}
}

func (m *nopMonitor) Events() <-chan Uevent { return m.events }
func (*nopMonitor) Start() error            { return nil }
func (m *nopMonitor) Stop()                 { m.stopOnce.Do(func() { close(m.events) }) }
