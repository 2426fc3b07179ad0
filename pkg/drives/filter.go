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

import (
	"strings"

	"github.com/drivekeeper/drivekeeper-core/pkg/blockdev"
)

// Exclusion reasons reported by Filter.Evaluate.
const (
	ReasonMalformed = "malformed"
	ReasonSubsystem = "subsystem"
	ReasonPartition = "partition"
	ReasonDevType   = "devtype"
	ReasonDenied    = "denied"
)

// DenyRule is one entry of the exclusion policy. A rule with NamePrefix
// matches on the kernel name; a rule with Model matches devices whose model
// contains that text, optionally restricted to a vendor. Matching on vendor
// and model is case-insensitive.
type DenyRule struct {
	NamePrefix string
	Vendor     string
	Model      string
	Why        string
}

// DefaultDenyRules are the device classes that never back a physical drive.
var DefaultDenyRules = []DenyRule{
	{NamePrefix: "loop", Why: "loop device"},
	{NamePrefix: "ram", Why: "RAM disk"},
	{NamePrefix: "zram", Why: "compressed RAM disk"},
	{NamePrefix: "dm-", Why: "device-mapper target"},
	{NamePrefix: "md", Why: "software RAID array"},
	{NamePrefix: "nbd", Why: "network block device"},
	{Model: "virtual cdrom", Why: "BMC virtual media"},
	{Model: "virtual cd-rom", Why: "BMC virtual media"},
	{Vendor: "idrac", Model: "virtual cd", Why: "BMC virtual media"},
	{Vendor: "linux", Model: "file-cd gadget", Why: "USB gadget CD emulation"},
}

// Verdict is the outcome of evaluating one sighting.
type Verdict struct {
	VPD     string
	Reason  string
	Detail  string
	Include bool
}

// Filter decides which sightings are candidate drive members.
type Filter struct {
	rules []DenyRule
}

// NewFilter returns a filter using DefaultDenyRules plus extra name prefixes.
func NewFilter(extraDenyPrefixes ...string) *Filter {
	rules := make([]DenyRule, 0, len(DefaultDenyRules)+len(extraDenyPrefixes))
	rules = append(rules, DefaultDenyRules...)
	for _, p := range extraDenyPrefixes {
		if p = strings.TrimSpace(p); p != "" {
			rules = append(rules, DenyRule{NamePrefix: p, Why: "configured"})
		}
	}
	return &Filter{rules: rules}
}

// ShouldInclude reports whether dev may back a drive, and the VPD to merge
// it by. An empty VPD means the device path becomes the identity key.
func (f *Filter) ShouldInclude(dev blockdev.Device) (include bool, vpd string) {
	v := f.Evaluate(dev)
	return v.Include, v.VPD
}

// Evaluate is ShouldInclude with the reason for an exclusion. It never fails:
// unreadable properties degrade to "no VPD" and unparsable sightings are
// excluded as malformed.
func (f *Filter) Evaluate(dev blockdev.Device) Verdict {
	if dev == nil {
		return Verdict{Reason: ReasonMalformed, Detail: "no device"}
	}

	name := dev.Name()
	switch {
	case dev.Subsystem() == "":
		return Verdict{Reason: ReasonMalformed, Detail: "no subsystem"}
	case name == "" || name == "." || blockdev.DevicePath(dev) == "":
		return Verdict{Reason: ReasonMalformed, Detail: "no device name"}
	case dev.DevType() == "":
		return Verdict{Reason: ReasonMalformed, Detail: "no device type"}
	case dev.Subsystem() != "block":
		return Verdict{Reason: ReasonSubsystem, Detail: dev.Subsystem()}
	case dev.DevType() == "partition":
		return Verdict{Reason: ReasonPartition}
	case dev.DevType() != "disk":
		return Verdict{Reason: ReasonDevType, Detail: dev.DevType()}
	}

	if rule, ok := f.denied(dev); ok {
		return Verdict{Reason: ReasonDenied, Detail: rule.Why}
	}

	return Verdict{Include: true, VPD: ExtractVPD(dev)}
}

func (f *Filter) denied(dev blockdev.Device) (DenyRule, bool) {
	name := dev.Name()
	vendor := strings.ToLower(strings.TrimSpace(firstNonEmpty(
		strings.ReplaceAll(dev.Property("ID_VENDOR"), "_", " "),
		dev.SysAttr("device/vendor"),
	)))
	model := strings.ToLower(strings.TrimSpace(firstNonEmpty(
		strings.ReplaceAll(dev.Property("ID_MODEL"), "_", " "),
		dev.SysAttr("device/model"),
	)))

	for _, r := range f.rules {
		switch {
		case r.NamePrefix != "":
			if strings.HasPrefix(name, r.NamePrefix) {
				return r, true
			}
		case r.Model != "":
			if r.Vendor != "" && vendor != r.Vendor {
				continue
			}
			if strings.Contains(model, r.Model) {
				return r, true
			}
		}
	}
	return DenyRule{}, false
}

// ExtractVPD picks the most stable hardware identifier a device reports, in
// order: WWN (joined with the serial when both exist, since some bridges
// reuse one WWN across drives), serial, sysfs wwid, MMC name+serial, and
// finally the bus path. Returns "" when none is available.
func ExtractVPD(dev blockdev.Device) string {
	wwn := firstNonEmpty(dev.Property("ID_WWN_WITH_EXTENSION"), dev.Property("ID_WWN"))
	serial := firstNonEmpty(dev.Property("ID_SERIAL"), dev.Property("ID_SERIAL_SHORT"))

	switch {
	case wwn != "" && serial != "":
		return wwn + "_" + serial
	case wwn != "":
		return wwn
	case serial != "":
		return serial
	}

	if wwid := firstNonEmpty(dev.SysAttr("wwid"), dev.SysAttr("device/wwid")); wwid != "" {
		return wwid
	}

	if strings.HasPrefix(dev.Name(), "mmcblk") {
		mmcName, mmcSerial := dev.SysAttr("device/name"), dev.SysAttr("device/serial")
		if mmcName != "" && mmcSerial != "" {
			return mmcName + "_" + mmcSerial
		}
	}

	return strings.TrimSpace(dev.Property("ID_PATH"))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
