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

package drives

import "github.com/drivekeeper/drivekeeper-core/pkg/blockdev"

// IdentityKey is the key a descriptor merges under: its VPD, or its own path
// when the hardware reported no VPD (such a drive never merges).
func IdentityKey(desc *blockdev.Descriptor) string {
	if desc.VPD != "" {
		return desc.VPD
	}
	return desc.Path
}

// ResolveIdentity finds the drive a descriptor belongs to, creating it with
// the descriptor as first member when its key is not yet registered.
// Resolving the same descriptor again returns the same drive.
func ResolveIdentity(desc *blockdev.Descriptor, reg *Registry) (d *Drive, created bool) {
	key := IdentityKey(desc)
	return reg.GetOrCreate(key, func() *Drive {
		return NewDrive(key, desc)
	})
}
