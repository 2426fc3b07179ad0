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
	"time"

	"github.com/drivekeeper/drivekeeper-core/pkg/blockdev"
	"github.com/drivekeeper/drivekeeper-core/pkg/helpers/syncutil"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// DestroyListener is told when a drive leaves the registry, e.g. so its
// in-flight housekeeping can be cancelled.
type DestroyListener interface {
	DriveDestroyed(d *Drive)
}

// pathState is where a device path stands: mapped to a drive key, or excluded.
type pathState struct {
	key      string
	excluded bool
}

// Processor folds hotplug uevents into the registry. Each event is handled to
// completion before the next one starts.
type Processor struct {
	registry  *Registry
	filter    *Filter
	notifier  Notifier
	paths     map[string]pathState
	listeners []DestroyListener
	malformed rate.Sometimes
	mu        syncutil.Mutex
}

// NewProcessor creates a processor. notifier may be nil.
func NewProcessor(reg *Registry, filter *Filter, notifier Notifier) *Processor {
	if notifier == nil {
		notifier = NotifierFunc(func(Notification) {})
	}
	return &Processor{
		registry:  reg,
		filter:    filter,
		notifier:  notifier,
		paths:     make(map[string]pathState),
		malformed: rate.Sometimes{First: 10, Interval: time.Minute},
	}
}

// AddDestroyListener registers l to hear about destroyed drives.
func (p *Processor) AddDestroyListener(l DestroyListener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, l)
}

// Handle processes one uevent.
func (p *Processor) Handle(ev blockdev.Uevent) {
	p.OnUevent(ev.Action, ev.Device)
}

// Replay applies an inventory snapshot, e.g. from Sysfs.Inventory at startup.
func (p *Processor) Replay(events []blockdev.Uevent) {
	for _, ev := range events {
		p.Handle(ev)
	}
	log.Info().
		Int("sightings", len(events)).
		Int("drives", p.registry.Len()).
		Msg("replayed device inventory")
}

// OnUevent is the entry point for the hotplug stream.
func (p *Processor) OnUevent(action blockdev.Action, dev blockdev.Device) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch action {
	case blockdev.ActionAdd, blockdev.ActionChange:
		p.addOrChange(action, dev)
	case blockdev.ActionRemove:
		p.remove(dev)
	default:
		if dev != nil {
			log.Debug().Str("action", string(action)).Str("name", dev.Name()).Msg("ignoring uevent")
		}
	}
}

// PathState reports whether path is known, and if it is mapped, which drive
// key it maps to. included is false for excluded paths.
func (p *Processor) PathState(path string) (key string, included, known bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.paths[path]
	if !ok {
		return "", false, false
	}
	return st.key, !st.excluded, true
}

func (p *Processor) addOrChange(action blockdev.Action, dev blockdev.Device) {
	verdict := p.filter.Evaluate(dev)

	var path string
	if dev != nil {
		path = blockdev.DevicePath(dev)
	}

	if !verdict.Include {
		if verdict.Reason == ReasonMalformed {
			p.malformed.Do(func() {
				log.Warn().
					Str("action", string(action)).
					Str("path", path).
					Str("detail", verdict.Detail).
					Msg("ignoring malformed device sighting")
			})
		} else {
			log.Debug().
				Str("path", path).
				Str("reason", verdict.Reason).
				Str("detail", verdict.Detail).
				Msg("device excluded")
		}
		if path == "" {
			return
		}
		p.detach(path)
		p.paths[path] = pathState{excluded: true}
		return
	}

	desc := blockdev.NewDescriptor(dev, verdict.VPD)
	key := IdentityKey(desc)

	// the identity can change once udev finishes probing a device
	if st, ok := p.paths[path]; ok && !st.excluded && st.key != key {
		log.Debug().
			Str("path", path).
			Str("old_key", st.key).
			Str("new_key", key).
			Msg("device changed identity")
		p.detach(path)
	}

	drive, created := ResolveIdentity(desc, p.registry)
	p.paths[path] = pathState{key: key}

	if created {
		log.Info().
			Str("key", key).
			Str("path", path).
			Str("instance_id", drive.InstanceID().String()).
			Msg("drive added")
		p.notifier.Notify(newNotification(NotificationAdded, drive, drive.Attributes()))
		return
	}

	change := drive.AddMember(path, desc)
	if change.Added {
		log.Info().Str("key", key).Str("path", path).Msg("drive gained member")
	}
	if change.Added || change.AttributesChanged {
		p.notifier.Notify(newNotification(NotificationChanged, drive, drive.Attributes()))
	}
}

func (p *Processor) remove(dev blockdev.Device) {
	var path string
	if dev != nil {
		path = blockdev.DevicePath(dev)
	}
	if path == "" {
		log.Debug().Msg("remove uevent without a device path")
		return
	}

	if _, ok := p.paths[path]; !ok {
		// common at startup, when removals race the inventory replay
		log.Debug().Str("path", path).Msg("remove uevent for unknown path")
		return
	}

	p.detach(path)
}

// detach forgets path and takes it out of its drive, destroying the drive
// when it was the last member.
func (p *Processor) detach(path string) {
	st, ok := p.paths[path]
	if !ok {
		return
	}
	delete(p.paths, path)
	if st.excluded {
		return
	}

	drive, ok := p.registry.Get(st.key)
	if !ok {
		log.Warn().Str("path", path).Str("key", st.key).Msg("mapped path has no drive")
		return
	}

	last := drive.Attributes()
	removed, empty := drive.RemoveMember(path)
	if !removed {
		log.Warn().Str("path", path).Str("key", st.key).Msg("mapped path missing from drive")
		return
	}

	if !empty {
		log.Info().Str("key", st.key).Str("path", path).Msg("drive lost member")
		p.notifier.Notify(newNotification(NotificationChanged, drive, drive.Attributes()))
		return
	}

	p.destroy(drive, last)
}

// destroy releases the drive's key so a future sighting with the same VPD
// creates a fresh drive. last is the final published state.
func (p *Processor) destroy(drive *Drive, last Attributes) {
	p.registry.Delete(drive)
	drive.markDestroyed()

	for _, l := range p.listeners {
		l.DriveDestroyed(drive)
	}

	log.Info().
		Str("key", drive.Key()).
		Str("instance_id", drive.InstanceID().String()).
		Msg("drive removed")
	p.notifier.Notify(newNotification(NotificationRemoved, drive, last))
}
