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

// StaticDevice is a Device whose properties are fixed up front. The fallback
// monitor uses it for removals, when sysfs no longer has anything to read.
type StaticDevice struct {
	Props      map[string]string
	Attrs      map[string]string
	KernelName string
	Class      string
	Type       string
	Node       string
	Sys        string
}

func (d *StaticDevice) Name() string      { return d.KernelName }
func (d *StaticDevice) Subsystem() string { return d.Class }
func (d *StaticDevice) DevType() string   { return d.Type }
func (d *StaticDevice) DevNode() string   { return d.Node }
func (d *StaticDevice) SysPath() string   { return d.Sys }

func (d *StaticDevice) Property(key string) string {
	return d.Props[key]
}

func (d *StaticDevice) SysAttr(key string) string {
	return d.Attrs[key]
}
