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
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const (
	DefaultMinInterval  = 5 * time.Minute
	DefaultProbeTimeout = 30 * time.Second
)

var (
	// ErrCancelled marks a pass that stopped because its context ended.
	ErrCancelled = errors.New("housekeeping cancelled")
	// ErrSuperseded marks a pass whose results went stale because the drive
	// changed or was destroyed while probes ran.
	ErrSuperseded = errors.New("housekeeping superseded")
	// ErrPassInProgress marks a pass refused because another one is running
	// on the same drive.
	ErrPassInProgress = errors.New("housekeeping already in progress")
	// ErrProbeFailed wraps the error of a failing probe.
	ErrProbeFailed = errors.New("housekeeping probe failed")
)

// OutcomeKind tags a housekeeping Outcome.
type OutcomeKind int

const (
	OutcomeCompleted OutcomeKind = iota
	OutcomeCancelled
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCompleted:
		return "completed"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome is the result of one housekeeping pass. Cancellation is its own
// outcome and not a failure.
type Outcome struct {
	err     error
	Kind    OutcomeKind
	Changed bool
}

// Completed is a successful pass. changed reports whether published
// attributes moved.
func Completed(changed bool) Outcome {
	return Outcome{Kind: OutcomeCompleted, Changed: changed}
}

// Cancelled is a pass that made no changes because it was stopped or its
// results were stale.
func Cancelled(cause error) Outcome {
	return Outcome{Kind: OutcomeCancelled, err: cause}
}

// Failed is a pass whose probe reported an error.
func Failed(err error) Outcome {
	return Outcome{Kind: OutcomeFailed, err: err}
}

// Err is nil for a completed pass. Cancelled passes match ErrCancelled,
// failed passes match ErrProbeFailed.
func (o Outcome) Err() error {
	switch o.Kind {
	case OutcomeCompleted:
		return nil
	case OutcomeCancelled:
		if o.err == nil || errors.Is(o.err, ErrCancelled) {
			return ErrCancelled
		}
		return fmt.Errorf("%w: %w", ErrCancelled, o.err)
	default:
		return o.err
	}
}

// Probe is one maintenance check run during housekeeping. It may block on
// device I/O and must return promptly once ctx is done. It records what it
// learns in state, which is discarded unless the whole pass succeeds.
type Probe interface {
	Name() string
	Probe(ctx context.Context, target ProbeTarget, state *ProbeState) error
}

// HousekeeperOptions configure a Housekeeper. Zero values pick defaults.
type HousekeeperOptions struct {
	Clock        clockwork.Clock
	MinInterval  time.Duration
	ProbeTimeout time.Duration
}

// Housekeeper runs probe passes against drives.
type Housekeeper struct {
	clock        clockwork.Clock
	probes       []Probe
	minInterval  time.Duration
	probeTimeout time.Duration
}

// NewHousekeeper returns a housekeeper running probes in order.
func NewHousekeeper(probes []Probe, opts HousekeeperOptions) *Housekeeper {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.MinInterval < 0 {
		opts.MinInterval = 0
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = DefaultProbeTimeout
	}
	return &Housekeeper{
		clock:        opts.Clock,
		probes:       probes,
		minInterval:  opts.MinInterval,
		probeTimeout: opts.ProbeTimeout,
	}
}

// MinInterval is the throttle threshold for RunHousekeeping.
func (h *Housekeeper) MinInterval() time.Duration {
	return h.minInterval
}

// RunHousekeeping runs one pass over d. elapsed is the time since the drive's
// last successful pass; below the minimum interval nothing is probed.
//
// Cancellation is checked before starting, between probes and before the
// commit. The pass is all-or-nothing: only a completed pass updates the
// housekeeping cursor or the attributes. A failed probe never destroys the
// drive.
func (h *Housekeeper) RunHousekeeping(ctx context.Context, d *Drive, elapsed time.Duration) Outcome {
	if ctx.Err() != nil {
		return Cancelled(context.Cause(ctx))
	}

	if elapsed < h.minInterval {
		log.Trace().
			Str("key", d.Key()).
			Dur("elapsed", elapsed).
			Dur("min_interval", h.minInterval).
			Msg("housekeeping throttled")
		return Completed(false)
	}

	if !d.passActive.CompareAndSwap(false, true) {
		return Cancelled(ErrPassInProgress)
	}
	defer d.passActive.Store(false)

	target, state, gen, ok := d.snapshot()
	if !ok {
		return Cancelled(ErrSuperseded)
	}

	for _, p := range h.probes {
		if ctx.Err() != nil {
			return Cancelled(context.Cause(ctx))
		}

		probeCtx, cancel := context.WithTimeout(ctx, h.probeTimeout)
		err := p.Probe(probeCtx, target, &state)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return Cancelled(context.Cause(ctx))
			}
			return Failed(fmt.Errorf("%w: %s: %w", ErrProbeFailed, p.Name(), err))
		}
	}

	if ctx.Err() != nil {
		return Cancelled(context.Cause(ctx))
	}

	changed, ok := d.commit(gen, state, h.clock.Now())
	if !ok {
		return Cancelled(ErrSuperseded)
	}

	log.Debug().
		Str("key", d.Key()).
		Bool("changed", changed).
		Msg("housekeeping completed")

	return Completed(changed)
}
