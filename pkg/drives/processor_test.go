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

package drives_test

import (
	"testing"

	"github.com/drivekeeper/drivekeeper-core/pkg/blockdev"
	"github.com/drivekeeper/drivekeeper-core/pkg/drives"
	"github.com/drivekeeper/drivekeeper-core/pkg/testing/fixtures"
	"github.com/drivekeeper/drivekeeper-core/pkg/testing/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type destroyRecorder struct {
	destroyed []*drives.Drive
}

func (r *destroyRecorder) DriveDestroyed(d *drives.Drive) {
	r.destroyed = append(r.destroyed, d)
}

func newTestProcessor() (*drives.Processor, *drives.Registry, *mocks.NotificationRecorder) {
	reg := drives.NewRegistry()
	rec := &mocks.NotificationRecorder{}
	return drives.NewProcessor(reg, drives.NewFilter(), rec), reg, rec
}

func TestProcessor_MultipathMergesIntoOneDrive(t *testing.T) {
	t.Parallel()

	p, reg, rec := newTestProcessor()

	p.OnUevent(blockdev.ActionAdd, fixtures.NewSerialDisk("sda", "ABC123"))
	p.OnUevent(blockdev.ActionAdd, fixtures.NewSerialDisk("sdb", "ABC123"))

	require.Equal(t, 1, reg.Len())
	d, ok := reg.Get("ABC123")
	require.True(t, ok)
	assert.Equal(t, []string{"/dev/sda", "/dev/sdb"}, d.MemberPaths())
	assert.Equal(t, []string{"/dev/sda", "/dev/sdb"}, d.Attributes().Members)
	assert.Equal(t, []string{drives.NotificationAdded, drives.NotificationChanged}, rec.Methods())
}

func TestProcessor_RemoveLastMemberDestroysDrive(t *testing.T) {
	t.Parallel()

	p, reg, rec := newTestProcessor()
	listener := &destroyRecorder{}
	p.AddDestroyListener(listener)

	p.OnUevent(blockdev.ActionAdd, fixtures.NewSerialDisk("sda", "ABC123"))
	p.OnUevent(blockdev.ActionAdd, fixtures.NewSerialDisk("sdb", "ABC123"))
	first, ok := reg.Get("ABC123")
	require.True(t, ok)

	p.OnUevent(blockdev.ActionRemove, fixtures.NewSerialDisk("sda", "ABC123"))
	d, ok := reg.Get("ABC123")
	require.True(t, ok, "drive should survive while a member remains")
	assert.Same(t, first, d)
	assert.Equal(t, []string{"/dev/sdb"}, d.MemberPaths())
	assert.False(t, d.Destroyed())

	p.OnUevent(blockdev.ActionRemove, fixtures.NewSerialDisk("sdb", "ABC123"))
	_, ok = reg.Get("ABC123")
	assert.False(t, ok, "key should be free after the last member left")
	assert.True(t, first.Destroyed())
	require.Len(t, listener.destroyed, 1)
	assert.Same(t, first, listener.destroyed[0])

	last, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, drives.NotificationRemoved, last.Method)
	assert.Equal(t, first.InstanceID().String(), last.InstanceID)
	assert.Equal(t, []string{"/dev/sdb"}, last.Attributes.Members,
		"removal should carry the last published state")

	p.OnUevent(blockdev.ActionAdd, fixtures.NewSerialDisk("sda", "ABC123"))
	again, ok := reg.Get("ABC123")
	require.True(t, ok)
	assert.NotSame(t, first, again)
	assert.NotEqual(t, first.InstanceID(), again.InstanceID())
}

func TestProcessor_DistinctVPDsStaySeparate(t *testing.T) {
	t.Parallel()

	p, reg, _ := newTestProcessor()

	p.OnUevent(blockdev.ActionAdd, fixtures.NewSerialDisk("sda", "AAA"))
	p.OnUevent(blockdev.ActionAdd, fixtures.NewSerialDisk("sdb", "BBB"))

	assert.Equal(t, 2, reg.Len())
}

func TestProcessor_NoVPDNeverMerges(t *testing.T) {
	t.Parallel()

	p, reg, _ := newTestProcessor()

	p.OnUevent(blockdev.ActionAdd, fixtures.NewDisk("sda", nil))
	p.OnUevent(blockdev.ActionAdd, fixtures.NewDisk("sdb", nil))

	require.Equal(t, 2, reg.Len())
	d, ok := reg.Get("/dev/sda")
	require.True(t, ok)
	assert.Equal(t, []string{"/dev/sda"}, d.MemberPaths())
}

func TestProcessor_ChangeRefreshesWithoutDuplicating(t *testing.T) {
	t.Parallel()

	p, reg, rec := newTestProcessor()

	p.OnUevent(blockdev.ActionAdd, fixtures.NewUSBStick("sdc", false))
	p.OnUevent(blockdev.ActionChange, fixtures.NewUSBStick("sdc", false))
	assert.Equal(t, []string{drives.NotificationAdded}, rec.Methods(),
		"an identical change should not notify")

	p.OnUevent(blockdev.ActionChange, fixtures.NewUSBStick("sdc", true))

	require.Equal(t, 1, reg.Len())
	d := reg.List()[0]
	assert.Equal(t, []string{"/dev/sdc"}, d.MemberPaths())
	assert.True(t, d.Attributes().MediaAvailable)
	assert.Equal(t, []string{drives.NotificationAdded, drives.NotificationChanged}, rec.Methods())
}

func TestProcessor_ExcludedSightings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		dev  blockdev.Device
		name string
	}{
		{name: "nil device", dev: nil},
		{name: "missing subsystem", dev: &blockdev.StaticDevice{KernelName: "sda", Type: "disk"}},
		{name: "missing devtype", dev: &blockdev.StaticDevice{KernelName: "sda", Class: "block"}},
		{name: "partition", dev: fixtures.NewPartition("sda1")},
		{name: "loop device", dev: fixtures.NewSerialDisk("loop0", "X")},
		{name: "wrong subsystem", dev: &blockdev.StaticDevice{
			KernelName: "ttyS0", Class: "tty", Type: "serial", Node: "/dev/ttyS0",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, reg, rec := newTestProcessor()
			p.OnUevent(blockdev.ActionAdd, tt.dev)

			assert.Equal(t, 0, reg.Len())
			assert.Empty(t, rec.All())
		})
	}
}

func TestProcessor_ExclusionDetachesKnownPath(t *testing.T) {
	t.Parallel()

	p, reg, rec := newTestProcessor()

	p.OnUevent(blockdev.ActionAdd, fixtures.NewSerialDisk("sda", "ABC123"))
	require.Equal(t, 1, reg.Len())

	// same path now reports itself as a partition
	p.OnUevent(blockdev.ActionChange, fixtures.NewPartition("sda"))

	assert.Equal(t, 0, reg.Len())
	_, included, known := p.PathState("/dev/sda")
	assert.True(t, known)
	assert.False(t, included)
	assert.Equal(t, []string{drives.NotificationAdded, drives.NotificationRemoved}, rec.Methods())
}

func TestProcessor_RemoveUnknownPathIsNoop(t *testing.T) {
	t.Parallel()

	p, reg, rec := newTestProcessor()
	p.OnUevent(blockdev.ActionAdd, fixtures.NewSerialDisk("sda", "ABC123"))
	rec.Reset()

	p.OnUevent(blockdev.ActionRemove, fixtures.NewDisk("sdz", nil))
	p.OnUevent(blockdev.ActionRemove, nil)

	assert.Equal(t, 1, reg.Len())
	assert.Empty(t, rec.All())
}

func TestProcessor_IdentityChangeMovesPath(t *testing.T) {
	t.Parallel()

	p, reg, rec := newTestProcessor()

	// udev has not finished probing: no VPD yet
	p.OnUevent(blockdev.ActionAdd, fixtures.NewDisk("sda", nil))
	_, ok := reg.Get("/dev/sda")
	require.True(t, ok)

	p.OnUevent(blockdev.ActionChange, fixtures.NewSerialDisk("sda", "ABC123"))

	_, ok = reg.Get("/dev/sda")
	assert.False(t, ok)
	d, ok := reg.Get("ABC123")
	require.True(t, ok)
	assert.Equal(t, []string{"/dev/sda"}, d.MemberPaths())

	key, included, known := p.PathState("/dev/sda")
	assert.True(t, known)
	assert.True(t, included)
	assert.Equal(t, "ABC123", key)
	assert.Equal(t, []string{
		drives.NotificationAdded,
		drives.NotificationRemoved,
		drives.NotificationAdded,
	}, rec.Methods())
}

func TestProcessor_IgnoresOtherActions(t *testing.T) {
	t.Parallel()

	p, reg, rec := newTestProcessor()
	p.OnUevent(blockdev.ActionOther, fixtures.NewSerialDisk("sda", "ABC123"))

	assert.Equal(t, 0, reg.Len())
	assert.Empty(t, rec.All())
}

func TestProcessor_Replay(t *testing.T) {
	t.Parallel()

	p, reg, _ := newTestProcessor()
	p.Replay([]blockdev.Uevent{
		{Action: blockdev.ActionAdd, Device: fixtures.NewSATADisk("sda")},
		{Action: blockdev.ActionAdd, Device: fixtures.NewPartition("sda1")},
		{Action: blockdev.ActionAdd, Device: fixtures.NewOpticalDrive("sr0", true)},
	})

	list := reg.List()
	require.Len(t, list, 2)
	for _, d := range list {
		assert.Len(t, d.MemberPaths(), 1)
	}
}
