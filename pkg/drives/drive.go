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
	"slices"
	"sync/atomic"
	"time"

	"github.com/drivekeeper/drivekeeper-core/pkg/blockdev"
	"github.com/drivekeeper/drivekeeper-core/pkg/helpers/syncutil"
	"github.com/google/uuid"
)

// Drive is one physical drive, backed by one or more member device paths.
//
// Membership is written only by the Processor. Housekeeping reads snapshots
// and commits probe results atomically; readers always see a consistent
// Attributes value.
type Drive struct {
	cursor     time.Time
	key        string
	members    []member
	attrs      Attributes
	probe      ProbeState
	nextSeq    uint64
	generation uint64
	mu         syncutil.RWMutex
	instanceID uuid.UUID
	passActive atomic.Bool
	destroyed  bool
}

// MemberChange reports the effect of AddMember.
type MemberChange struct {
	Added             bool
	AttributesChanged bool
}

// NewDrive creates a drive for an identity key with its first member.
func NewDrive(key string, desc *blockdev.Descriptor) *Drive {
	d := &Drive{
		key:        key,
		instanceID: uuid.New(),
	}
	d.members = []member{{path: desc.Path, desc: desc, seq: d.nextSeq}}
	d.nextSeq++
	d.attrs = computeAttributes(d.members, d.probe)
	return d
}

// Key returns the identity key: the VPD, or the first member path when the
// hardware reported none.
func (d *Drive) Key() string {
	return d.key
}

// InstanceID is unique per Drive value. A drive that is destroyed and later
// seen again gets a new one.
func (d *Drive) InstanceID() uuid.UUID {
	return d.instanceID
}

// AddMember inserts path with its descriptor, or refreshes the stored
// descriptor when path is already a member. Refreshing never counts as a
// membership change.
func (d *Drive) AddMember(path string, desc *blockdev.Descriptor) MemberChange {
	d.mu.Lock()
	defer d.mu.Unlock()

	idx := d.indexOf(path)
	if idx >= 0 {
		if *d.members[idx].desc == *desc {
			return MemberChange{}
		}
		d.members[idx].desc = desc
		return MemberChange{AttributesChanged: d.mutated()}
	}

	d.members = append(d.members, member{path: path, desc: desc, seq: d.nextSeq})
	d.nextSeq++
	return MemberChange{Added: true, AttributesChanged: d.mutated()}
}

// RemoveMember drops path. empty is true when no members remain; the caller
// is then responsible for destroying the drive.
func (d *Drive) RemoveMember(path string) (removed, empty bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	idx := d.indexOf(path)
	if idx < 0 {
		return false, len(d.members) == 0
	}

	d.members = slices.Delete(d.members, idx, idx+1)
	d.mutated()
	return true, len(d.members) == 0
}

// Attributes returns the current published snapshot.
func (d *Drive) Attributes() Attributes {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snapshotAttrs()
}

// MemberPaths returns the member paths in the order they were added.
func (d *Drive) MemberPaths() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	paths := make([]string, 0, len(d.members))
	for _, m := range d.members {
		paths = append(paths, m.path)
	}
	return paths
}

// HasMember reports whether path currently backs this drive.
func (d *Drive) HasMember(path string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.indexOf(path) >= 0
}

// HousekeepingCursor is the time of the last successful housekeeping pass,
// zero if there was none.
func (d *Drive) HousekeepingCursor() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cursor
}

// Destroyed reports whether the drive has left the registry.
func (d *Drive) Destroyed() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.destroyed
}

func (d *Drive) markDestroyed() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyed = true
	d.generation++
}

// whileLive runs fn with the current attributes unless the drive has been
// destroyed. Destruction waits for fn, so a change published here can never
// follow the drive's removal.
func (d *Drive) whileLive(fn func(Attributes)) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.destroyed {
		return false
	}
	fn(d.snapshotAttrs())
	return true
}

// ProbeTarget is what a housekeeping probe gets to look at.
type ProbeTarget struct {
	Key        string
	Members    []ProbeMember
	Attributes Attributes
}

// ProbeMember identifies one member device for probing.
type ProbeMember struct {
	Path    string
	SysPath string
}

// snapshot captures the drive for an unlocked probe run. ok is false for a
// destroyed drive.
func (d *Drive) snapshot() (target ProbeTarget, state ProbeState, gen uint64, ok bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.destroyed {
		return ProbeTarget{}, ProbeState{}, 0, false
	}

	target = ProbeTarget{
		Key:        d.key,
		Attributes: d.snapshotAttrs(),
		Members:    make([]ProbeMember, 0, len(d.members)),
	}
	for _, m := range d.members {
		target.Members = append(target.Members, ProbeMember{Path: m.path, SysPath: m.desc.SysPath})
	}
	return target, d.probe, d.generation, true
}

// commit applies probe results taken at generation gen. It refuses when the
// drive changed or was destroyed since the snapshot.
func (d *Drive) commit(gen uint64, state ProbeState, now time.Time) (changed, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.destroyed || d.generation != gen {
		return false, false
	}

	before := d.attrs
	d.probe = state
	d.attrs = computeAttributes(d.members, d.probe)
	d.cursor = now
	return !before.Equal(d.attrs), true
}

// mutated bumps the generation after a membership or descriptor change and
// recomputes attributes. Callers hold the write lock.
func (d *Drive) mutated() (attributesChanged bool) {
	d.generation++
	d.probe.MediaAvailable = blockdev.Unknown

	before := d.attrs
	d.attrs = computeAttributes(d.members, d.probe)
	return !before.Equal(d.attrs)
}

func (d *Drive) indexOf(path string) int {
	return slices.IndexFunc(d.members, func(m member) bool { return m.path == path })
}

func (d *Drive) snapshotAttrs() Attributes {
	attrs := d.attrs
	attrs.Members = slices.Clone(d.attrs.Members)
	return attrs
}
