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

//go:build linux

package probes

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

// CDROM_DRIVE_STATUS from linux/cdrom.h.
const cdromDriveStatus = 0x5326

// IoctlDriveStatus issues CDROM_DRIVE_STATUS against the device node.
type IoctlDriveStatus struct{}

func (IoctlDriveStatus) DriveStatus(ctx context.Context, devicePath string) (int, error) {
	if err := ctx.Err(); err != nil {
		return cdsNoInfo, fmt.Errorf("drive status: %w", err)
	}

	// Validate device path before handing it to open(2)
	if !strings.HasPrefix(devicePath, "/dev/") {
		return cdsNoInfo, fmt.Errorf("invalid device path: %s", devicePath)
	}

	fd, err := unix.Open(devicePath, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return cdsNoInfo, fmt.Errorf("failed to open %s: %w", devicePath, err)
	}
	defer func() { _ = unix.Close(fd) }()

	status, err := unix.IoctlRetInt(fd, cdromDriveStatus)
	if err != nil {
		return cdsNoInfo, fmt.Errorf("CDROM_DRIVE_STATUS on %s: %w", devicePath, err)
	}
	return status, nil
}
