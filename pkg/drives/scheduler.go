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
	"math"
	"sync"
	"time"

	"github.com/drivekeeper/drivekeeper-core/pkg/helpers/syncutil"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	DefaultHousekeepingInterval = 10 * time.Minute
	DefaultMaxConcurrent        = 4
)

// errDriveDestroyed is the cancellation cause for passes on a removed drive.
var errDriveDestroyed = errors.New("drive destroyed")

// SchedulerOptions configure a Scheduler. Zero values pick defaults.
type SchedulerOptions struct {
	Clock         clockwork.Clock
	Interval      time.Duration
	MaxConcurrent int
}

// Scheduler periodically runs housekeeping on every live drive, off the
// event-processing path. Passes on different drives may overlap; a drive
// never has two passes at once.
type Scheduler struct {
	ctx         context.Context
	clock       clockwork.Clock
	registry    *Registry
	housekeeper *Housekeeper
	notifier    Notifier
	cancel      context.CancelFunc
	done        chan struct{}
	trigger     chan struct{}
	inFlight    map[*Drive]context.CancelCauseFunc
	failures    map[*Drive]*rate.Sometimes
	group       errgroup.Group
	interval    time.Duration
	mu          syncutil.Mutex
	startOnce   sync.Once
	stopOnce    sync.Once
}

// NewScheduler creates a scheduler. notifier may be nil.
func NewScheduler(reg *Registry, hk *Housekeeper, notifier Notifier, opts SchedulerOptions) *Scheduler {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultHousekeepingInterval
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if notifier == nil {
		notifier = NotifierFunc(func(Notification) {})
	}

	s := &Scheduler{
		clock:       opts.Clock,
		registry:    reg,
		housekeeper: hk,
		notifier:    notifier,
		interval:    opts.Interval,
		done:        make(chan struct{}),
		trigger:     make(chan struct{}, 1),
		inFlight:    make(map[*Drive]context.CancelCauseFunc),
		failures:    make(map[*Drive]*rate.Sometimes),
	}
	s.group.SetLimit(opts.MaxConcurrent)
	return s
}

// Start launches the scheduling loop. Passes stop when ctx ends or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.ctx, s.cancel = context.WithCancel(ctx)
		go s.loop()
		log.Debug().Dur("interval", s.interval).Msg("housekeeping scheduler started")
	})
}

// Stop cancels all in-flight passes and waits for them to return.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel == nil {
			return
		}
		s.cancel()
		<-s.done
		_ = s.group.Wait()
		log.Debug().Msg("housekeeping scheduler stopped")
	})
}

// Trigger asks for a housekeeping round as soon as possible. Drives that had
// a pass recently are still throttled by the minimum interval.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// DriveDestroyed cancels the drive's in-flight pass, if any.
func (s *Scheduler) DriveDestroyed(d *Drive) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.failures, d)
	if cancel, ok := s.inFlight[d]; ok {
		cancel(errDriveDestroyed)
		log.Debug().Str("key", d.Key()).Msg("cancelled housekeeping for removed drive")
	}
}

// InFlight returns the number of passes currently running.
func (s *Scheduler) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inFlight)
}

func (s *Scheduler) loop() {
	defer close(s.done)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.Chan():
			s.runRound()
		case <-s.trigger:
			s.runRound()
		}
	}
}

// runRound starts a pass for every live drive that has none running. Drives
// that do not fit under the concurrency limit wait for the next round.
func (s *Scheduler) runRound() {
	for _, d := range s.registry.List() {
		if s.ctx.Err() != nil {
			return
		}

		s.mu.Lock()
		if _, busy := s.inFlight[d]; busy {
			s.mu.Unlock()
			continue
		}
		passCtx, cancel := context.WithCancelCause(s.ctx)
		s.inFlight[d] = cancel
		s.mu.Unlock()

		started := s.group.TryGo(func() error {
			s.runPass(passCtx, d)
			return nil
		})
		if !started {
			s.finish(d)
			log.Debug().Msg("housekeeping concurrency limit reached, deferring remaining drives")
			return
		}
	}
}

func (s *Scheduler) runPass(ctx context.Context, d *Drive) {
	defer s.finish(d)

	elapsed := time.Duration(math.MaxInt64)
	if cursor := d.HousekeepingCursor(); !cursor.IsZero() {
		elapsed = s.clock.Since(cursor)
	}

	outcome := s.housekeeper.RunHousekeeping(ctx, d, elapsed)

	switch outcome.Kind {
	case OutcomeCompleted:
		if outcome.Changed {
			d.whileLive(func(attrs Attributes) {
				s.notifier.Notify(newNotification(NotificationChanged, d, attrs))
			})
		}
	case OutcomeCancelled:
		log.Debug().Err(outcome.Err()).Str("key", d.Key()).Msg("housekeeping cancelled")
	case OutcomeFailed:
		if st := s.failureLog(d); st != nil {
			st.Do(func() {
				log.Warn().Err(outcome.Err()).Str("key", d.Key()).Msg("housekeeping failed")
			})
		}
	}
}

// finish clears the in-flight entry for d and releases its context.
func (s *Scheduler) finish(d *Drive) {
	s.mu.Lock()
	cancel, ok := s.inFlight[d]
	delete(s.inFlight, d)
	s.mu.Unlock()
	if ok {
		cancel(nil)
	}
}

// failureLog returns the failure log limiter for d, or nil once d has been
// destroyed. Drives are marked destroyed before DriveDestroyed runs, so
// checking under s.mu never recreates an entry DriveDestroyed cleared.
func (s *Scheduler) failureLog(d *Drive) *rate.Sometimes {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.Destroyed() {
		return nil
	}
	st, ok := s.failures[d]
	if !ok {
		st = &rate.Sometimes{First: 1, Interval: time.Hour}
		s.failures[d] = st
	}
	return st
}
