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

// Package blockdev turns kernel block device sightings into normalized
// descriptors. It reads uevent values, sysfs attributes and the udev database
// but never opens the device nodes themselves.
package blockdev

import "github.com/mdlayher/kobject"

// Action is the kind of change a uevent reports for a device.
type Action string

const (
	ActionAdd    Action = "add"
	ActionChange Action = "change"
	ActionRemove Action = "remove"
	// ActionOther covers bind/unbind/move/online/offline, which carry no
	// membership meaning for drives.
	ActionOther Action = "other"
)

// ParseAction maps a raw kernel action onto the actions the drive model cares about.
func ParseAction(a kobject.Action) Action {
	switch a {
	case kobject.Add:
		return ActionAdd
	case kobject.Change:
		return ActionChange
	case kobject.Remove:
		return ActionRemove
	default:
		return ActionOther
	}
}

// Device is one raw sighting of a kernel device with queryable properties.
type Device interface {
	// Name is the kernel name, e.g. "sda" or "nvme0n1".
	Name() string
	// Subsystem is the kernel subsystem, e.g. "block".
	Subsystem() string
	// DevType is the DEVTYPE property, e.g. "disk" or "partition".
	DevType() string
	// DevNode is the device node path, e.g. "/dev/sda". May be empty.
	DevNode() string
	// SysPath is the absolute sysfs path of the device.
	SysPath() string
	// Property returns a uevent or udev database property, or "".
	Property(key string) string
	// SysAttr returns a trimmed sysfs attribute relative to SysPath, or "".
	SysAttr(key string) string
}

// Uevent is one hotplug notification for a device.
type Uevent struct {
	Device Device
	Action Action
	Seq    int64
}
