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
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/mdlayher/kobject"
	"github.com/spf13/afero"
)

// Walk lists every block device under <root>/block, partitions included, as
// synthetic add events. Replaying them at startup rebuilds the drive model
// without any persisted state.
func (s *Sysfs) Walk() ([]*kobject.Event, error) {
	root := filepath.Join(s.Root, subsystemBlock)

	entries, err := afero.ReadDir(s.Fs, root)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", root, err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	result := make([]*kobject.Event, 0, len(entries))

	for _, entry := range entries {
		path := s.resolve(filepath.Join(root, entry.Name()))

		values, err := s.readUevent(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}

		result = append(result, &kobject.Event{
			Action:     kobject.Add,
			DevicePath: s.relative(path),
			Subsystem:  subsystemBlock,
			Values:     values,
		})

		partitions, err := s.readPartitions(path)
		if err != nil {
			return nil, err
		}

		result = append(result, partitions...)
	}

	return result, nil
}

// Inventory returns Walk's events wrapped as Uevents ready for replay.
func (s *Sysfs) Inventory() ([]Uevent, error) {
	events, err := s.Walk()
	if err != nil {
		return nil, err
	}

	out := make([]Uevent, 0, len(events))
	for _, ev := range events {
		out = append(out, Uevent{
			Action: ActionAdd,
			Device: s.FromEvent(ev),
		})
	}
	return out, nil
}

// readPartitions returns add events for the partitions nested in a disk directory.
func (s *Sysfs) readPartitions(path string) ([]*kobject.Event, error) {
	entries, err := afero.ReadDir(s.Fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var result []*kobject.Event //nolint:prealloc

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		partitionPath := filepath.Join(path, entry.Name())

		if _, err := s.Fs.Stat(filepath.Join(partitionPath, "partition")); err != nil {
			continue
		}

		values, err := s.readUevent(partitionPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}

		result = append(result, &kobject.Event{
			Action:     kobject.Add,
			DevicePath: s.relative(partitionPath),
			Subsystem:  subsystemBlock,
			Values:     values,
		})
	}

	return result, nil
}
