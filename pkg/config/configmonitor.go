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

package config

import "slices"

const (
	MonitorSourceAuto     = "auto"
	MonitorSourceNetlink  = "netlink"
	MonitorSourceFsnotify = "fsnotify"
	MonitorSourceNone     = "none"
)

type Monitor struct {
	Source      string `toml:"source,omitempty" validate:"omitempty,oneof=auto netlink fsnotify none"`
	SysfsRoot   string `toml:"sysfs_root,omitempty" validate:"omitempty,startswith=/"`
	UdevDataDir string `toml:"udev_data_dir,omitempty" validate:"omitempty,startswith=/"`
	DevDir      string `toml:"dev_dir,omitempty" validate:"omitempty,startswith=/"`
}

type Inclusion struct {
	DenyPrefixes []string `toml:"deny_prefixes,omitempty,multiline" validate:"dive,required"`
}

// MonitorSource is the configured uevent source, "auto" by default.
func (c *Instance) MonitorSource() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Monitor.Source == "" {
		return MonitorSourceAuto
	}
	return c.vals.Monitor.Source
}

func (c *Instance) SetMonitorSource(source string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Monitor.Source = source
}

// SysfsRoot is the sysfs mount, empty for the default.
func (c *Instance) SysfsRoot() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Monitor.SysfsRoot
}

// UdevDataDir is the udev database directory, empty for the default.
func (c *Instance) UdevDataDir() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Monitor.UdevDataDir
}

// DevDir is the directory the fsnotify fallback watches, empty for the default.
func (c *Instance) DevDir() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Monitor.DevDir
}

// DenyPrefixes are kernel name prefixes excluded on top of the built-in rules.
func (c *Instance) DenyPrefixes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.vals.Inclusion.DenyPrefixes)
}
