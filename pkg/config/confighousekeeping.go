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

import "time"

const (
	DefaultHousekeepingIntervalSecs = 600
	DefaultMinIntervalSecs          = 300
	DefaultProbeTimeoutSecs         = 30
	DefaultMaxConcurrent            = 4
)

type Housekeeping struct {
	IntervalSecs     *int `toml:"interval_secs,omitempty" validate:"omitempty,gte=1"`
	MinIntervalSecs  *int `toml:"min_interval_secs,omitempty" validate:"omitempty,gte=0"`
	ProbeTimeoutSecs *int `toml:"probe_timeout_secs,omitempty" validate:"omitempty,gte=1,lte=3600"`
	MaxConcurrent    *int `toml:"max_concurrent,omitempty" validate:"omitempty,gte=1,lte=64"`
}

func secondsOr(v *int, def int) time.Duration {
	if v == nil {
		return time.Duration(def) * time.Second
	}
	return time.Duration(*v) * time.Second
}

// HousekeepingInterval is how often the scheduler starts a round.
func (c *Instance) HousekeepingInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return secondsOr(c.vals.Housekeeping.IntervalSecs, DefaultHousekeepingIntervalSecs)
}

// HousekeepingMinInterval is the per-drive throttle between passes.
func (c *Instance) HousekeepingMinInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return secondsOr(c.vals.Housekeeping.MinIntervalSecs, DefaultMinIntervalSecs)
}

func (c *Instance) ProbeTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return secondsOr(c.vals.Housekeeping.ProbeTimeoutSecs, DefaultProbeTimeoutSecs)
}

func (c *Instance) HousekeepingMaxConcurrent() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Housekeeping.MaxConcurrent == nil {
		return DefaultMaxConcurrent
	}
	return *c.vals.Housekeeping.MaxConcurrent
}

func (c *Instance) SetHousekeepingInterval(secs int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Housekeeping.IntervalSecs = &secs
}
