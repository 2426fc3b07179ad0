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

package config

type Publishers struct {
	MQTT []MQTTPublisher `toml:"mqtt,omitempty" validate:"dive"`
	DBus DBusPublisher   `toml:"dbus,omitempty"`
}

type MQTTPublisher struct {
	Enabled *bool    `toml:"enabled,omitempty"`
	Broker  string   `toml:"broker" validate:"required"`
	Topic   string   `toml:"topic" validate:"required"`
	Filter  []string `toml:"filter,omitempty,multiline" validate:"dive,oneof=drives.added drives.changed drives.removed"`
}

type DBusPublisher struct {
	Enabled *bool `toml:"enabled,omitempty"`
}

func (c *Instance) GetMQTTPublishers() []MQTTPublisher {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]MQTTPublisher, len(c.vals.Publishers.MQTT))
	copy(out, c.vals.Publishers.MQTT)
	return out
}

// DBusPublisherEnabled reports whether drive signals are emitted on the
// system bus. Off unless configured.
func (c *Instance) DBusPublisherEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Publishers.DBus.Enabled == nil {
		return false
	}
	return *c.vals.Publishers.DBus.Enabled
}

// IsEnabled reports whether an MQTT publisher entry is active. Entries are
// enabled unless explicitly switched off.
func (p *MQTTPublisher) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}
