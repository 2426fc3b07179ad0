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

package fixtures

import "github.com/drivekeeper/drivekeeper-core/pkg/blockdev"

// Common device sightings for use in tests

// NewDisk creates a whole-disk block device sighting with the given udev
// properties.
func NewDisk(name string, props map[string]string) *blockdev.StaticDevice {
	if props == nil {
		props = map[string]string{}
	}
	return &blockdev.StaticDevice{
		KernelName: name,
		Class:      "block",
		Type:       "disk",
		Node:       "/dev/" + name,
		Sys:        "/sys/devices/virtual/block/" + name,
		Props:      props,
		Attrs:      map[string]string{},
	}
}

// NewSerialDisk creates a disk reporting only a serial number, the
// simplest sighting that merges with others.
func NewSerialDisk(name, serial string) *blockdev.StaticDevice {
	return NewDisk(name, map[string]string{"ID_SERIAL": serial})
}

// NewPartition creates a partition sighting of a disk.
func NewPartition(name string) *blockdev.StaticDevice {
	d := NewDisk(name, nil)
	d.Type = "partition"
	return d
}

// NewSATADisk creates a fixed SATA SSD as udev reports it.
func NewSATADisk(name string) *blockdev.StaticDevice {
	d := NewDisk(name, map[string]string{
		"ID_BUS":          "ata",
		"ID_VENDOR":       "ATA",
		"ID_MODEL":        "Samsung_SSD_870_EVO_1TB",
		"ID_MODEL_ENC":    `Samsung\x20SSD\x20870\x20EVO\x201TB`,
		"ID_REVISION":     "SVT02B6Q",
		"ID_SERIAL":       "Samsung_SSD_870_EVO_1TB_S5Y1NJ0R123456",
		"ID_SERIAL_SHORT": "S5Y1NJ0R123456",
		"ID_WWN":          "0x5002538f4123abcd",
	})
	d.Attrs["size"] = "1953525168"
	d.Attrs["removable"] = "0"
	d.Attrs["queue/rotational"] = "0"
	return d
}

// NewUSBStick creates a removable USB mass storage sighting. Empty sticks
// report a size of zero.
func NewUSBStick(name string, withMedia bool) *blockdev.StaticDevice {
	d := NewDisk(name, map[string]string{
		"ID_BUS":          "usb",
		"ID_VENDOR":       "SanDisk",
		"ID_MODEL":        "Cruzer_Blade",
		"ID_SERIAL":       "SanDisk_Cruzer_Blade_4C530001230817116542-0:0",
		"ID_SERIAL_SHORT": "4C530001230817116542",
	})
	d.Attrs["removable"] = "1"
	d.Attrs["size"] = "0"
	if withMedia {
		d.Attrs["size"] = "30031872"
	}
	return d
}

// NewOpticalDrive creates a SATA DVD drive sighting.
func NewOpticalDrive(name string, withDisc bool) *blockdev.StaticDevice {
	d := NewDisk(name, map[string]string{
		"ID_BUS":          "ata",
		"ID_CDROM":        "1",
		"ID_VENDOR":       "HL-DT-ST",
		"ID_MODEL":        "DVD+_-RW_GH24NSD1",
		"ID_SERIAL":       "HL-DT-ST_DVD+_-RW_GH24NSD1_K1UE8JA3519",
		"ID_SERIAL_SHORT": "K1UE8JA3519",
	})
	d.Attrs["removable"] = "1"
	if withDisc {
		d.Props["ID_CDROM_MEDIA"] = "1"
	}
	return d
}
