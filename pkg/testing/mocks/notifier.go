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

package mocks

import (
	"sync"

	"github.com/drivekeeper/drivekeeper-core/pkg/drives"
)

// NotificationRecorder is a drives.Notifier that keeps everything it is sent.
type NotificationRecorder struct {
	notifications []drives.Notification
	mu            sync.Mutex
}

func (r *NotificationRecorder) Notify(n drives.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
}

// All returns a copy of the recorded notifications in arrival order.
func (r *NotificationRecorder) All() []drives.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]drives.Notification, len(r.notifications))
	copy(out, r.notifications)
	return out
}

// Methods returns just the notification methods in arrival order.
func (r *NotificationRecorder) Methods() []string {
	all := r.All()
	out := make([]string, 0, len(all))
	for _, n := range all {
		out = append(out, n.Method)
	}
	return out
}

// Last returns the most recent notification.
func (r *NotificationRecorder) Last() (drives.Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notifications) == 0 {
		return drives.Notification{}, false
	}
	return r.notifications[len(r.notifications)-1], true
}

// Reset forgets everything recorded so far.
func (r *NotificationRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = nil
}
