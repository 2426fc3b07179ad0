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
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mdlayher/kobject"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const (
	DefaultSysfsRoot   = "/sys"
	DefaultUdevDataDir = "/run/udev/data"

	subsystemBlock = "block"
)

// Sysfs resolves devices against a sysfs tree and the udev database. The
// filesystem is injectable so tests can build fixtures in memory.
type Sysfs struct {
	Fs          afero.Fs
	Root        string
	UdevDataDir string
}

// NewSysfs returns a Sysfs bound to the real filesystem.
func NewSysfs(root, udevDataDir string) *Sysfs {
	if root == "" {
		root = DefaultSysfsRoot
	}
	if udevDataDir == "" {
		udevDataDir = DefaultUdevDataDir
	}
	return &Sysfs{
		Fs:          afero.NewOsFs(),
		Root:        root,
		UdevDataDir: udevDataDir,
	}
}

// sysfsDevice is a Device backed by kernel uevent values and lazy sysfs reads.
type sysfsDevice struct {
	fs        afero.Fs
	props     map[string]string
	sysPath   string
	subsystem string
}

func (d *sysfsDevice) Name() string {
	if name := d.props["DEVNAME"]; name != "" {
		return filepath.Base(name)
	}
	return filepath.Base(d.sysPath)
}

func (d *sysfsDevice) Subsystem() string {
	return d.subsystem
}

func (d *sysfsDevice) DevType() string {
	return d.props["DEVTYPE"]
}

func (d *sysfsDevice) DevNode() string {
	name := d.props["DEVNAME"]
	if name == "" {
		return ""
	}
	if filepath.IsAbs(name) {
		return name
	}
	return "/dev/" + name
}

func (d *sysfsDevice) SysPath() string {
	return d.sysPath
}

func (d *sysfsDevice) Property(key string) string {
	return d.props[key]
}

func (d *sysfsDevice) SysAttr(key string) string {
	if d.fs == nil || d.sysPath == "" {
		return ""
	}
	data, err := afero.ReadFile(d.fs, filepath.Join(d.sysPath, key))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// FromEvent wraps a kernel event into a Device. For anything but a removal,
// the udev database entry is merged in underneath the kernel values so the
// ID_* identification properties become visible.
func (s *Sysfs) FromEvent(ev *kobject.Event) Device {
	props := make(map[string]string, len(ev.Values))

	if ev.Action != kobject.Remove {
		major, minor := ev.Values["MAJOR"], ev.Values["MINOR"]
		if major != "" && minor != "" {
			rec, err := readUdevRecord(s.Fs, s.UdevDataDir, major, minor)
			switch {
			case err == nil:
				for k, v := range rec.Properties {
					props[k] = v
				}
			case errors.Is(err, os.ErrNotExist):
				// udev has not processed the device yet, a change event follows
			default:
				log.Debug().Err(err).Str("devpath", ev.DevicePath).Msg("udev record unreadable")
			}
		}
	}

	for k, v := range ev.Values {
		props[k] = v
	}

	return &sysfsDevice{
		fs:        s.Fs,
		props:     props,
		sysPath:   s.absolute(ev.DevicePath),
		subsystem: ev.Subsystem,
	}
}

// ByName builds an add event for a block device from /sys/class/block/<name>.
func (s *Sysfs) ByName(name string) (*kobject.Event, error) {
	path := s.resolve(filepath.Join(s.Root, "class", subsystemBlock, name))

	values, err := s.readUevent(path)
	if err != nil {
		return nil, err
	}

	return &kobject.Event{
		Action:     kobject.Add,
		DevicePath: s.relative(path),
		Subsystem:  subsystemBlock,
		Values:     values,
	}, nil
}

// IsBlock reports whether a kernel name belongs to a block device.
func (s *Sysfs) IsBlock(name string) bool {
	_, err := s.Fs.Stat(filepath.Join(s.Root, "class", subsystemBlock, name))
	return err == nil
}

// readUevent reads the uevent file of a sysfs device directory.
func (s *Sysfs) readUevent(path string) (map[string]string, error) {
	path = filepath.Join(path, "uevent")

	content, err := afero.ReadFile(s.Fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", path, err)
	}

	result := map[string]string{}

	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok {
			continue
		}
		result[key] = value
	}

	return result, nil
}

// resolve follows one level of symlink when the filesystem supports it. The
// /sys/block and /sys/class/block entries are links into /sys/devices.
func (s *Sysfs) resolve(path string) string {
	lr, ok := s.Fs.(afero.LinkReader)
	if !ok {
		return path
	}
	target, err := lr.ReadlinkIfPossible(path)
	if err != nil {
		return path
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(path), target)
	}
	return filepath.Clean(target)
}

// relative converts an absolute sysfs path into the kernel's DEVPATH form.
func (s *Sysfs) relative(path string) string {
	rel, err := filepath.Rel(s.Root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return "/" + rel
}

func (s *Sysfs) absolute(devPath string) string {
	if devPath == "" {
		return ""
	}
	if strings.HasPrefix(devPath, s.Root+"/") {
		return devPath
	}
	return filepath.Join(s.Root, devPath)
}
