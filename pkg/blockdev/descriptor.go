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
	"strconv"
	"strings"
)

const sectorSize = 512

// Tristate is a hint that may be unknown.
type Tristate int8

const (
	Unknown Tristate = iota
	No
	Yes
)

func (t Tristate) String() string {
	switch t {
	case No:
		return "no"
	case Yes:
		return "yes"
	default:
		return "unknown"
	}
}

// MarshalText renders the hint as "yes", "no" or "unknown".
func (t Tristate) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// TristateOf converts a known boolean into a hint.
func TristateOf(b bool) Tristate {
	if b {
		return Yes
	}
	return No
}

// Descriptor is the normalized, immutable view of one included device sighting.
type Descriptor struct {
	Path                string
	SysPath             string
	VPD                 string
	Vendor              string
	Model               string
	Revision            string
	Serial              string
	WWN                 string
	Bus                 string
	Size                uint64
	Rotational          Tristate
	Removable           bool
	Ejectable           bool
	Optical             bool
	MediaAvailable      bool
	MediaChangeDetected bool
}

// NewDescriptor normalizes a device sighting. vpd is the identity value the
// inclusion filter extracted and may be empty.
func NewDescriptor(dev Device, vpd string) *Descriptor {
	d := &Descriptor{
		Path:     DevicePath(dev),
		SysPath:  dev.SysPath(),
		VPD:      vpd,
		Vendor:   firstOf(decodeUdevString(dev.Property("ID_VENDOR_ENC")), spaced(dev.Property("ID_VENDOR")), dev.SysAttr("device/vendor")),
		Model:    firstOf(decodeUdevString(dev.Property("ID_MODEL_ENC")), spaced(dev.Property("ID_MODEL")), dev.SysAttr("device/model")),
		Revision: firstOf(dev.Property("ID_REVISION"), dev.SysAttr("device/rev"), dev.SysAttr("device/firmware_rev")),
		Serial:   firstOf(dev.Property("ID_SERIAL_SHORT"), dev.Property("ID_SERIAL"), dev.SysAttr("device/serial")),
		WWN:      firstOf(dev.Property("ID_WWN_WITH_EXTENSION"), dev.Property("ID_WWN"), dev.SysAttr("wwid")),
		Bus:      busOf(dev),
	}

	d.Removable = dev.SysAttr("removable") == "1"
	d.Optical = dev.Property("ID_CDROM") == "1" || strings.HasPrefix(dev.Name(), "sr")
	d.Ejectable = d.Optical ||
		dev.Property("ID_DRIVE_EJECTABLE") == "1" ||
		(d.Removable && d.Bus == "usb")

	if sectors, err := strconv.ParseUint(dev.SysAttr("size"), 10, 64); err == nil {
		d.Size = sectors * sectorSize
	}

	switch dev.SysAttr("queue/rotational") {
	case "1":
		d.Rotational = Yes
	case "0":
		d.Rotational = No
	}

	switch {
	case d.Optical:
		d.MediaAvailable = dev.Property("ID_CDROM_MEDIA") == "1"
	case d.Removable:
		d.MediaAvailable = d.Size > 0
	default:
		d.MediaAvailable = true
	}

	d.MediaChangeDetected = dev.Property("DISK_MEDIA_CHANGE") == "1"

	return d
}

// DevicePath is the member path used for a sighting: the device node when
// known, otherwise /dev/<name>. Empty for a nameless sighting.
func DevicePath(dev Device) string {
	if node := dev.DevNode(); node != "" {
		return node
	}
	if name := dev.Name(); name != "" && name != "." && name != "/" {
		return "/dev/" + name
	}
	return ""
}

func busOf(dev Device) string {
	if bus := dev.Property("ID_BUS"); bus != "" {
		return bus
	}

	name := dev.Name()
	switch {
	case strings.HasPrefix(name, "nvme"):
		return "nvme"
	case strings.HasPrefix(name, "mmcblk"):
		return "sdio"
	case strings.HasPrefix(name, "vd"):
		return "virtio"
	case strings.HasPrefix(name, "xvd"):
		return "xen"
	default:
		return ""
	}
}

// spaced undoes udev's underscore substitution in ID_VENDOR/ID_MODEL.
func spaced(s string) string {
	return strings.ReplaceAll(s, "_", " ")
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
