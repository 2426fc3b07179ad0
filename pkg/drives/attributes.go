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
	"regexp"
	"slices"
	"strings"

	"github.com/drivekeeper/drivekeeper-core/pkg/blockdev"
)

// AuthorityPolicy documents how Attributes are derived when members disagree.
// Identity fields come from the earliest-added member that supplied a
// non-empty value; transient fields come from the most recently added member
// still present. A committed housekeeping probe overrides media presence until
// the next membership or descriptor change.
const AuthorityPolicy = "identity:first-supplier transient:most-recent probe:media-until-change"

var idUnsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.\-]+`)

// Properties are the comparable fields of Attributes.
type Properties struct {
	ID                  string            `json:"id"`
	Vendor              string            `json:"vendor"`
	Model               string            `json:"model"`
	Revision            string            `json:"revision"`
	Serial              string            `json:"serial"`
	WWN                 string            `json:"wwn"`
	Bus                 string            `json:"bus"`
	Size                uint64            `json:"size"`
	Rotational          blockdev.Tristate `json:"rotational"`
	EjectSafe           blockdev.Tristate `json:"eject_safe"`
	Busy                blockdev.Tristate `json:"busy"`
	Removable           bool              `json:"removable"`
	Ejectable           bool              `json:"ejectable"`
	Optical             bool              `json:"optical"`
	MediaAvailable      bool              `json:"media_available"`
	MediaChangeDetected bool              `json:"media_change_detected"`
}

// Attributes is the published, immutable state of a drive.
type Attributes struct {
	Members []string `json:"members"`
	Properties
}

// Equal reports whether two snapshots publish the same state.
func (a Attributes) Equal(b Attributes) bool {
	return a.Properties == b.Properties && slices.Equal(a.Members, b.Members)
}

// ProbeState holds what housekeeping probes learned about a drive. Unknown
// fields leave the descriptor-derived value in place.
type ProbeState struct {
	MediaAvailable blockdev.Tristate
	EjectSafe      blockdev.Tristate
	Busy           blockdev.Tristate
}

type member struct {
	desc *blockdev.Descriptor
	path string
	seq  uint64
}

// computeAttributes derives the published state from the members, which are
// kept in insertion order, and the last committed probe state.
func computeAttributes(members []member, probe ProbeState) Attributes {
	var attrs Attributes
	if len(members) == 0 {
		return attrs
	}

	attrs.Members = make([]string, 0, len(members))
	for _, m := range members {
		attrs.Members = append(attrs.Members, m.path)
		fillEmpty(&attrs.Vendor, m.desc.Vendor)
		fillEmpty(&attrs.Model, m.desc.Model)
		fillEmpty(&attrs.Revision, m.desc.Revision)
		fillEmpty(&attrs.Serial, m.desc.Serial)
		fillEmpty(&attrs.WWN, m.desc.WWN)
		fillEmpty(&attrs.Bus, m.desc.Bus)
	}

	latest := members[0]
	for _, m := range members[1:] {
		if m.seq > latest.seq {
			latest = m
		}
	}

	attrs.Size = latest.desc.Size
	attrs.Rotational = latest.desc.Rotational
	attrs.Removable = latest.desc.Removable
	attrs.Ejectable = latest.desc.Ejectable
	attrs.Optical = latest.desc.Optical
	attrs.MediaAvailable = latest.desc.MediaAvailable
	attrs.MediaChangeDetected = latest.desc.MediaChangeDetected

	if probe.MediaAvailable != blockdev.Unknown {
		attrs.MediaAvailable = probe.MediaAvailable == blockdev.Yes
	}
	attrs.EjectSafe = probe.EjectSafe
	attrs.Busy = probe.Busy

	attrs.ID = driveID(attrs.Properties)

	return attrs
}

// driveID builds a human-readable identifier such as
// "Samsung-SSD-870-EVO-1TB-S5Y1NJ0R123456". Empty when nothing identifies the drive.
func driveID(attrs Properties) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{attrs.Vendor, attrs.Model, attrs.Serial} {
		p = strings.Trim(idUnsafeChars.ReplaceAllString(strings.TrimSpace(p), "-"), "-")
		if p != "" {
			parts = append(parts, p)
		}
	}
	if attrs.Serial == "" && attrs.WWN != "" {
		parts = append(parts, strings.Trim(idUnsafeChars.ReplaceAllString(attrs.WWN, "-"), "-"))
	}
	return strings.Join(parts, "-")
}

func fillEmpty(dst *string, v string) {
	if *dst == "" && v != "" {
		*dst = v
	}
}
