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
	"sync"
	"testing"

	"github.com/drivekeeper/drivekeeper-core/pkg/blockdev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_GetOrCreate(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	calls := 0
	create := func() *Drive {
		calls++
		return NewDrive("ABC123", desc("/dev/sda", nil))
	}

	a, created := reg.GetOrCreate("ABC123", create)
	require.True(t, created)
	b, created := reg.GetOrCreate("ABC123", create)
	assert.False(t, created)
	assert.Same(t, a, b)
	assert.Equal(t, 1, calls)
}

func TestRegistry_DeleteOnlyMatchingInstance(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	old := NewDrive("ABC123", desc("/dev/sda", nil))
	reg.GetOrCreate("ABC123", func() *Drive { return old })

	assert.True(t, reg.Delete(old))
	assert.False(t, reg.Delete(old))

	replacement, _ := reg.GetOrCreate("ABC123", func() *Drive {
		return NewDrive("ABC123", desc("/dev/sda", nil))
	})
	assert.False(t, reg.Delete(old), "stale instance must not evict its replacement")

	got, ok := reg.Get("ABC123")
	require.True(t, ok)
	assert.Same(t, replacement, got)
}

func TestRegistry_ListSortedByKey(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	for _, key := range []string{"ccc", "aaa", "bbb"} {
		reg.GetOrCreate(key, func() *Drive { return NewDrive(key, desc("/dev/"+key, nil)) })
	}

	list := reg.List()
	require.Len(t, list, 3)
	assert.Equal(t, "aaa", list[0].Key())
	assert.Equal(t, "bbb", list[1].Key())
	assert.Equal(t, "ccc", list[2].Key())
}

func TestResolveIdentity_ConcurrentCallersShareDrive(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	results := make([]*Drive, 16)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = ResolveIdentity(desc("/dev/sda", nil), reg)
		}()
	}
	wg.Wait()

	for _, d := range results {
		assert.Same(t, results[0], d)
	}
	assert.Equal(t, 1, reg.Len())
}

func TestIdentityKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ABC123", IdentityKey(desc("/dev/sda", nil)))
	assert.Equal(t, "/dev/sdb", IdentityKey(desc("/dev/sdb", func(d *blockdev.Descriptor) {
		d.VPD = ""
	})))
}
