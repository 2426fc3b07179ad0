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
	"testing"

	"github.com/stretchr/testify/assert"
)

const sampleUdevRecord = `S:disk/by-id/ata-ST2000DM008-2FR102_ZFL1234
S:disk/by-id/wwn-0x5000c500a1b2c3d4
W:12
I:1034567
E:ID_ATA=1
E:ID_TYPE=disk
E:ID_BUS=ata
E:ID_MODEL=ST2000DM008-2FR102
E:ID_MODEL_ENC=ST2000DM008-2FR102\x20\x20
E:ID_SERIAL=ST2000DM008-2FR102_ZFL1234
E:ID_SERIAL_SHORT=ZFL1234
E:ID_WWN=0x5000c500a1b2c3d4
E:ID_PATH=pci-0000:00:17.0-ata-1
E:broken
G:systemd
Q:systemd
`

func TestParseUdevRecord(t *testing.T) {
	t.Parallel()

	rec := ParseUdevRecord([]byte(sampleUdevRecord))

	assert.Equal(t, "ata", rec.Properties["ID_BUS"])
	assert.Equal(t, "ZFL1234", rec.Properties["ID_SERIAL_SHORT"])
	assert.Equal(t, "0x5000c500a1b2c3d4", rec.Properties["ID_WWN"])
	assert.Equal(t, "pci-0000:00:17.0-ata-1", rec.Properties["ID_PATH"])
	assert.NotContains(t, rec.Properties, "broken")
	assert.Equal(t, []string{
		"/dev/disk/by-id/ata-ST2000DM008-2FR102_ZFL1234",
		"/dev/disk/by-id/wwn-0x5000c500a1b2c3d4",
	}, rec.Links)
	assert.Equal(t, []string{"systemd", "systemd"}, rec.Tags)
}

func TestParseUdevRecord_Empty(t *testing.T) {
	t.Parallel()

	rec := ParseUdevRecord(nil)
	assert.Empty(t, rec.Properties)
	assert.Empty(t, rec.Links)
}

func TestDecodeUdevString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "plain", want: "plain"},
		{in: `Samsung\x20SSD\x20870`, want: "Samsung SSD 870"},
		{in: `trailing\x2`, want: `trailing\x2`},
		{in: `bad\xzzhex`, want: `bad\xzzhex`},
		{in: `slash\x2fpath`, want: "slash/path"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, decodeUdevString(tt.in))
		})
	}
}
