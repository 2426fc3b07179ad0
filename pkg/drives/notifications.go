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

// Notification kinds, used as method names by the publishers.
const (
	NotificationAdded   = "drives.added"
	NotificationChanged = "drives.changed"
	NotificationRemoved = "drives.removed"
)

// Notification tells consumers a drive appeared, changed or went away.
type Notification struct {
	Method     string     `json:"-"`
	Key        string     `json:"key"`
	InstanceID string     `json:"instance_id"`
	Attributes Attributes `json:"attributes"`
}

// Notifier receives drive notifications. Implementations must not block.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) {
	f(n)
}

func newNotification(method string, d *Drive, attrs Attributes) Notification {
	return Notification{
		Method:     method,
		Key:        d.Key(),
		InstanceID: d.InstanceID().String(),
		Attributes: attrs,
	}
}
