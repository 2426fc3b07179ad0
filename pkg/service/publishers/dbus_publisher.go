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

package publishers

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/drivekeeper/drivekeeper-core/pkg/drives"
	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog/log"
)

const (
	DBusName      = "org.drivekeeper.Drives1"
	DBusInterface = "org.drivekeeper.Drives1"
	DBusPath      = dbus.ObjectPath("/org/drivekeeper/Drives1")
)

var errNameTaken = errors.New("bus name already owned")

var dbusSignals = map[string]string{
	drives.NotificationAdded:   "DriveAdded",
	drives.NotificationChanged: "DriveChanged",
	drives.NotificationRemoved: "DriveRemoved",
}

// SignalEmitter is the part of a bus connection the publisher needs.
// *dbus.Conn satisfies it.
type SignalEmitter interface {
	Emit(path dbus.ObjectPath, name string, values ...any) error
	Close() error
}

// DBusPublisher emits a signal on the system bus for every notification.
// Each signal carries the drive object path, key, instance ID and a
// property map.
type DBusPublisher struct {
	conn     SignalEmitter
	connect  func() (SignalEmitter, error)
	stopCh   chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewDBusPublisher() *DBusPublisher {
	return &DBusPublisher{
		connect: connectSystemBus,
		stopCh:  make(chan struct{}),
	}
}

func connectSystemBus() (SignalEmitter, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system bus: %w", err)
	}

	reply, err := conn.RequestName(DBusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to request bus name %s: %w", DBusName, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", DBusName, errNameTaken)
	}

	return conn, nil
}

func (p *DBusPublisher) Start(notifications <-chan drives.Notification) error {
	conn, err := p.connect()
	if err != nil {
		return err
	}
	p.conn = conn
	log.Info().Msgf("dbus publisher: emitting on %s", DBusPath)

	p.wg.Add(1)
	go p.emitNotifications(notifications)
	return nil
}

func (p *DBusPublisher) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		p.wg.Wait()
		if p.conn != nil {
			if err := p.conn.Close(); err != nil {
				log.Debug().Err(err).Msg("dbus publisher: error closing connection")
			}
		}
	})
}

func (p *DBusPublisher) emitNotifications(notifications <-chan drives.Notification) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			return
		case notif, ok := <-notifications:
			if !ok {
				log.Debug().Msg("dbus publisher: notification channel closed")
				return
			}
			p.emit(notif)
		}
	}
}

func (p *DBusPublisher) emit(notif drives.Notification) {
	member, ok := dbusSignals[notif.Method]
	if !ok {
		return
	}
	err := p.conn.Emit(
		DBusPath,
		DBusInterface+"."+member,
		DriveObjectPath(notif.Key),
		notif.Key,
		notif.InstanceID,
		driveProperties(notif.Attributes),
	)
	if err != nil {
		log.Error().Err(err).Str("drive", notif.Key).Msgf("dbus publisher: failed to emit %s", member)
	}
}

// DriveObjectPath maps a drive key to its object path under DBusPath.
// Bytes outside [A-Za-z0-9] are written as _xx hex escapes, so distinct keys
// never share a path. The empty key maps to "_".
func DriveObjectPath(key string) dbus.ObjectPath {
	const hex = "0123456789abcdef"

	var b strings.Builder
	for i := range len(key) {
		c := key[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteByte(c)
		default:
			b.WriteByte('_')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0x0f])
		}
	}
	if b.Len() == 0 {
		b.WriteByte('_')
	}
	return DBusPath + "/drives/" + dbus.ObjectPath(b.String())
}

func driveProperties(attrs drives.Attributes) map[string]dbus.Variant {
	members := attrs.Members
	if members == nil {
		members = []string{}
	}
	return map[string]dbus.Variant{
		"Id":                  dbus.MakeVariant(attrs.ID),
		"Vendor":              dbus.MakeVariant(attrs.Vendor),
		"Model":               dbus.MakeVariant(attrs.Model),
		"Revision":            dbus.MakeVariant(attrs.Revision),
		"Serial":              dbus.MakeVariant(attrs.Serial),
		"WWN":                 dbus.MakeVariant(attrs.WWN),
		"ConnectionBus":       dbus.MakeVariant(attrs.Bus),
		"Size":                dbus.MakeVariant(attrs.Size),
		"Rotational":          dbus.MakeVariant(attrs.Rotational.String()),
		"EjectSafe":           dbus.MakeVariant(attrs.EjectSafe.String()),
		"Busy":                dbus.MakeVariant(attrs.Busy.String()),
		"Removable":           dbus.MakeVariant(attrs.Removable),
		"Ejectable":           dbus.MakeVariant(attrs.Ejectable),
		"Optical":             dbus.MakeVariant(attrs.Optical),
		"MediaAvailable":      dbus.MakeVariant(attrs.MediaAvailable),
		"MediaChangeDetected": dbus.MakeVariant(attrs.MediaChangeDetected),
		"Members":             dbus.MakeVariant(members),
	}
}
