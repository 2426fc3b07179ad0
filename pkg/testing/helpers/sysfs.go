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

// Package helpers builds filesystem fixtures for tests.
package helpers

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

const (
	SysfsRoot   = "/sys"
	UdevDataDir = "/run/udev/data"
)

// BlockDevice describes one disk as the kernel and udev expose it.
type BlockDevice struct {
	// Attrs are sysfs attribute files relative to the device directory,
	// e.g. "size" or "queue/rotational".
	Attrs map[string]string
	// Udev are the E: properties of the udev database record.
	Udev       map[string]string
	Name       string
	Partitions []string
	Major      int
	Minor      int
}

// FSHelper provides utilities for filesystem mocking in tests
type FSHelper struct {
	Fs afero.Fs
}

// NewMemoryFS creates a new in-memory filesystem for testing
func NewMemoryFS() *FSHelper {
	return &FSHelper{
		Fs: afero.NewMemMapFs(),
	}
}

// WriteFile writes content to path, creating parent directories.
func (h *FSHelper) WriteFile(path, content string) error {
	if err := h.Fs.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := afero.WriteFile(h.Fs, path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// AddBlockDevice lays out dev under SysfsRoot/block with its partitions,
// and writes its udev record when it has properties.
func (h *FSHelper) AddBlockDevice(dev BlockDevice) error {
	dir := filepath.Join(SysfsRoot, "block", dev.Name)

	err := h.WriteFile(filepath.Join(dir, "uevent"), uevent(dev.Major, dev.Minor, dev.Name, "disk"))
	if err != nil {
		return err
	}

	for name, value := range dev.Attrs {
		if err := h.WriteFile(filepath.Join(dir, name), value+"\n"); err != nil {
			return err
		}
	}

	for i, part := range dev.Partitions {
		partDir := filepath.Join(dir, part)
		if err := h.WriteFile(filepath.Join(partDir, "partition"), fmt.Sprintf("%d\n", i+1)); err != nil {
			return err
		}
		err := h.WriteFile(filepath.Join(partDir, "uevent"), uevent(dev.Major, dev.Minor+i+1, part, "partition"))
		if err != nil {
			return err
		}
	}

	if len(dev.Udev) == 0 {
		return nil
	}

	keys := make([]string, 0, len(dev.Udev))
	for k := range dev.Udev {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var record strings.Builder
	for _, k := range keys {
		_, _ = fmt.Fprintf(&record, "E:%s=%s\n", k, dev.Udev[k])
	}
	path := filepath.Join(UdevDataDir, fmt.Sprintf("b%d:%d", dev.Major, dev.Minor))
	return h.WriteFile(path, record.String())
}

func uevent(major, minor int, name, devType string) string {
	return fmt.Sprintf("MAJOR=%d\nMINOR=%d\nDEVNAME=%s\nDEVTYPE=%s\n", major, minor, name, devType)
}
