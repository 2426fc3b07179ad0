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

package probes

import (
	"context"
	"fmt"
	"strings"

	"github.com/drivekeeper/drivekeeper-core/pkg/blockdev"
	"github.com/drivekeeper/drivekeeper-core/pkg/drives"
	"github.com/shirou/gopsutil/v4/disk"
)

// MountLister returns the currently mounted filesystems.
type MountLister interface {
	Mounts(ctx context.Context) ([]disk.PartitionStat, error)
}

// SystemMounts reads the mount table through gopsutil.
type SystemMounts struct{}

func (SystemMounts) Mounts(ctx context.Context) ([]disk.PartitionStat, error) {
	parts, err := disk.PartitionsWithContext(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list mounts: %w", err)
	}
	return parts, nil
}

// EjectSafetyProbe marks a drive unsafe to eject while any of its member
// paths, or a partition of one, is mounted.
type EjectSafetyProbe struct {
	Mounts MountLister
}

func NewEjectSafetyProbe() *EjectSafetyProbe {
	return &EjectSafetyProbe{Mounts: SystemMounts{}}
}

func (*EjectSafetyProbe) Name() string {
	return "eject-safety"
}

func (p *EjectSafetyProbe) Probe(ctx context.Context, target drives.ProbeTarget, state *drives.ProbeState) error {
	mounts, err := p.Mounts.Mounts(ctx)
	if err != nil {
		return err
	}

	for _, m := range target.Members {
		for i := range mounts {
			if backs(m.Path, mounts[i].Device) {
				state.EjectSafe = blockdev.No
				return nil
			}
		}
	}

	state.EjectSafe = blockdev.Yes
	return nil
}

// backs reports whether device is the disk at path or one of its
// partitions. Disks whose name ends in a digit (nvme0n1, mmcblk0) name their
// partitions with a "p" separator; others (sda) append the number directly.
func backs(path, device string) bool {
	if path == "" {
		return false
	}
	if device == path {
		return true
	}

	rest, ok := strings.CutPrefix(device, path)
	if !ok {
		return false
	}
	if isDigit(path[len(path)-1]) {
		if rest, ok = strings.CutPrefix(rest, "p"); !ok {
			return false
		}
	}
	if rest == "" {
		return false
	}
	for i := range len(rest) {
		if !isDigit(rest[i]) {
			return false
		}
	}
	return true
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
