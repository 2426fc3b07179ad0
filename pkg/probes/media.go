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

// Package probes holds the housekeeping checks run against live drives.
package probes

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/drivekeeper/drivekeeper-core/pkg/blockdev"
	"github.com/drivekeeper/drivekeeper-core/pkg/drives"
	"github.com/spf13/afero"
)

// Values from linux/cdrom.h.
const (
	cdsNoInfo        = 0
	cdsNoDisc        = 1
	cdsTrayOpen      = 2
	cdsDriveNotReady = 3
	cdsDiscOK        = 4
)

// DriveStatusReader queries an optical drive's tray and disc state.
type DriveStatusReader interface {
	DriveStatus(ctx context.Context, devicePath string) (int, error)
}

// MediaProbe checks whether removable drives currently hold media. Optical
// drives are asked through the CD-ROM ioctl, other removable drives are
// judged by the capacity sysfs reports. Fixed drives are skipped.
type MediaProbe struct {
	Fs     afero.Fs
	Status DriveStatusReader
}

// NewMediaProbe returns a probe bound to the real sysfs and device nodes.
func NewMediaProbe() *MediaProbe {
	return &MediaProbe{
		Fs:     afero.NewOsFs(),
		Status: IoctlDriveStatus{},
	}
}

func (*MediaProbe) Name() string {
	return "media"
}

func (p *MediaProbe) Probe(ctx context.Context, target drives.ProbeTarget, state *drives.ProbeState) error {
	attrs := target.Attributes
	if !attrs.Removable && !attrs.Optical {
		return nil
	}
	if len(target.Members) == 0 {
		return errors.New("drive has no members")
	}

	var lastErr error
	for _, m := range target.Members {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("media probe: %w", err)
		}

		var (
			available blockdev.Tristate
			err       error
		)
		if attrs.Optical {
			available, err = p.optical(ctx, m.Path)
		} else {
			available, err = p.removable(m.SysPath)
		}
		if err != nil {
			// another member may still answer
			lastErr = err
			continue
		}

		state.MediaAvailable = available
		return nil
	}

	return lastErr
}

func (p *MediaProbe) optical(ctx context.Context, path string) (blockdev.Tristate, error) {
	status, err := p.Status.DriveStatus(ctx, path)
	if err != nil {
		return blockdev.Unknown, err
	}

	switch status {
	case cdsDiscOK:
		return blockdev.Yes, nil
	case cdsNoDisc, cdsTrayOpen:
		return blockdev.No, nil
	default:
		// no info or not ready yet, keep whatever the last uevent said
		return blockdev.Unknown, nil
	}
}

func (p *MediaProbe) removable(sysPath string) (blockdev.Tristate, error) {
	if sysPath == "" {
		return blockdev.Unknown, errors.New("member has no sysfs path")
	}

	raw, err := afero.ReadFile(p.Fs, filepath.Join(sysPath, "size"))
	if err != nil {
		return blockdev.Unknown, fmt.Errorf("failed to read size: %w", err)
	}

	sectors, err := strconv.ParseUint(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return blockdev.Unknown, fmt.Errorf("failed to parse size %q: %w", raw, err)
	}

	return blockdev.TristateOf(sectors > 0), nil
}
