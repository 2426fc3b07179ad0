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
	"sort"

	"github.com/drivekeeper/drivekeeper-core/pkg/helpers/syncutil"
)

// Registry is the owned map from identity key to live Drive. It is the only
// state shared between the event processor, which creates and deletes
// entries, and the housekeeping scheduler, which lists them.
type Registry struct {
	drives map[string]*Drive
	mu     syncutil.RWMutex
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{drives: make(map[string]*Drive)}
}

// Get returns the live drive for key.
func (r *Registry) Get(key string) (*Drive, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.drives[key]
	return d, ok
}

// GetOrCreate returns the drive for key, calling create to make one when the
// key is unknown. created reports whether create ran.
func (r *Registry) GetOrCreate(key string, create func() *Drive) (d *Drive, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.drives[key]; ok {
		return d, false
	}
	d = create()
	r.drives[key] = d
	return d, true
}

// Delete removes d from the registry, freeing its key for a future drive.
// An entry that has since been replaced by another instance is left alone.
func (r *Registry) Delete(d *Drive) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.drives[d.Key()]; ok && cur == d {
		delete(r.drives, d.Key())
		return true
	}
	return false
}

// List returns the live drives ordered by key.
func (r *Registry) List() []*Drive {
	r.mu.RLock()
	out := make([]*Drive, 0, len(r.drives))
	for _, d := range r.drives {
		out = append(out, d)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Len returns the number of live drives.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.drives)
}
