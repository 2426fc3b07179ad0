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
	"path/filepath"

	"github.com/drivekeeper/drivekeeper-core/pkg/blockdev"
	"github.com/drivekeeper/drivekeeper-core/pkg/drives"
	"github.com/shirou/gopsutil/v4/disk"
)

// IOCounterReader returns per-device I/O counters keyed by kernel name.
type IOCounterReader interface {
	IOCounters(ctx context.Context, names ...string) (map[string]disk.IOCountersStat, error)
}

// SystemIOCounters reads /proc/diskstats through gopsutil.
type SystemIOCounters struct{}

func (SystemIOCounters) IOCounters(
	ctx context.Context,
	names ...string,
) (map[string]disk.IOCountersStat, error) {
	counters, err := disk.IOCountersWithContext(ctx, names...)
	if err != nil {
		return nil, fmt.Errorf("failed to read io counters: %w", err)
	}
	return counters, nil
}

// ActivityProbe reports a drive busy while any member has requests in
// flight.
type ActivityProbe struct {
	Counters IOCounterReader
}

func NewActivityProbe() *ActivityProbe {
	return &ActivityProbe{Counters: SystemIOCounters{}}
}

func (*ActivityProbe) Name() string {
	return "activity"
}

func (p *ActivityProbe) Probe(ctx context.Context, target drives.ProbeTarget, state *drives.ProbeState) error {
	names := make([]string, 0, len(target.Members))
	for _, m := range target.Members {
		if m.Path != "" {
			names = append(names, filepath.Base(m.Path))
		}
	}
	if len(names) == 0 {
		return nil
	}

	counters, err := p.Counters.IOCounters(ctx, names...)
	if err != nil {
		return err
	}

	busy := false
	for _, name := range names {
		if c, ok := counters[name]; ok && c.IopsInProgress > 0 {
			busy = true
			break
		}
	}
	state.Busy = blockdev.TristateOf(busy)
	return nil
}
